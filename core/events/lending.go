package events

import (
	"math/big"

	"lendpool/crypto"
)

const (
	// TypeLendingDeposited is emitted when a user supplies collateral.
	TypeLendingDeposited = "lending.deposited"
	// TypeLendingWithdrawn is emitted when a user withdraws collateral.
	TypeLendingWithdrawn = "lending.withdrawn"
	// TypeLendingBorrowed is emitted when a user draws pool liquidity.
	TypeLendingBorrowed = "lending.borrowed"
	// TypeLendingRepaid is emitted when a user repays outstanding debt.
	TypeLendingRepaid = "lending.repaid"
	// TypeLendingLiquidated is emitted after a successful liquidation.
	TypeLendingLiquidated = "lending.liquidated"
	// TypeTokenAdded is emitted when a new asset is registered.
	TypeTokenAdded = "lending.tokenAdded"
	// TypePoolFunded is emitted when reserves are funded directly.
	TypePoolFunded = "lending.poolFunded"
	// TypePoolFundsWithdrawn is emitted when the owner drains reserves.
	TypePoolFundsWithdrawn = "lending.poolFundsWithdrawn"
)

type Deposited struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
}

func (Deposited) EventType() string { return TypeLendingDeposited }

type Withdrawn struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
}

func (Withdrawn) EventType() string { return TypeLendingWithdrawn }

type Borrowed struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
}

func (Borrowed) EventType() string { return TypeLendingBorrowed }

type Repaid struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
}

func (Repaid) EventType() string { return TypeLendingRepaid }

// Liquidated records the outcome of a whole-position seizure. Assets and
// Amounts are parallel slices trimmed to the nonzero seizures, in asset
// registration order.
type Liquidated struct {
	User         crypto.Address
	TotalDebtUSD *big.Int
	Assets       []crypto.Address
	Amounts      []*big.Int
}

func (Liquidated) EventType() string { return TypeLendingLiquidated }

type TokenAdded struct {
	Asset  crypto.Address
	Weight uint64
}

func (TokenAdded) EventType() string { return TypeTokenAdded }

type PoolFunded struct {
	From   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
}

func (PoolFunded) EventType() string { return TypePoolFunded }

type PoolFundsWithdrawn struct {
	To     crypto.Address
	Asset  crypto.Address
	Amount *big.Int
}

func (PoolFundsWithdrawn) EventType() string { return TypePoolFundsWithdrawn }
