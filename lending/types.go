package lending

import (
	"math/big"

	"lendpool/crypto"
)

// Asset captures a registered collateral asset. The weight is fixed at
// registration; a nonzero weight doubles as the existence marker, so an asset
// can never be registered with an effective weight of zero.
type Asset struct {
	// ID is the opaque 20-byte identifier of the asset.
	ID crypto.Address
	// Weight is the percentage of the asset's USD value counted toward
	// borrow capacity, in (0,100].
	Weight uint64
	// Active reports whether the asset currently participates in new
	// operations. Registered assets are never removed, only toggled inert.
	Active bool
}

// Clone returns a deep copy of the asset record.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// RiskParameters groups the pool-level safety limits.
type RiskParameters struct {
	// MaxBorrowRatioPct caps total debt relative to borrow capacity for
	// borrow and withdraw operations, expressed as a percentage.
	MaxBorrowRatioPct uint64
	// LiquidationThresholdPct is the indebtedness percentage above which a
	// position becomes liquidatable. Withdrawals are rejected against
	// MaxBorrowRatioPct proactively; liquidation only triggers once debt
	// overtakes this threshold.
	LiquidationThresholdPct uint64
	// RestitutionAsset denominates any liquidation surplus returned to the
	// liquidated user.
	RestitutionAsset crypto.Address
}

// DefaultRiskParameters mirrors the pool's production settings.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		MaxBorrowRatioPct:       80,
		LiquidationThresholdPct: 80,
	}
}

// LiquidationResult reports the outcome of a successful liquidation. Assets
// and Amounts are parallel slices holding only the nonzero seizures in asset
// registration order.
type LiquidationResult struct {
	User         crypto.Address
	TotalDebtUSD *big.Int
	Assets       []crypto.Address
	Amounts      []*big.Int
	// Restitution is the amount credited back to the user in the
	// restitution asset; zero when the surplus was forfeited or absent.
	Restitution *big.Int
}
