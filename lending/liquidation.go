package lending

import (
	"math/big"

	"lendpool/core/events"
	"lendpool/crypto"
)

// seizure is one planned collateral grab, recorded before any write happens.
type seizure struct {
	asset   crypto.Address
	amount  *big.Int
	reserve *big.Int // pool reserve prior to the seizure
}

// Liquidate seizes the target's entire position once their indebtedness
// breaches the liquidation threshold. The operation is all-or-nothing: the
// full plan (seizures, shortfall check, restitution) is evaluated before a
// single write is applied, so a failing invariant leaves the ledger
// untouched. Anyone may call it on any sufficiently indebted address.
//
// When the seized collateral value exceeds the debt, the surplus is converted
// into the restitution asset and credited back to the target, but only if the
// pool reserve of that asset covers it. Otherwise the surplus is forfeited to
// the pool; it is neither reverted nor queued for later payout.
func (e *Engine) Liquidate(target crypto.Address) (*LiquidationResult, error) {
	release, err := e.beginMutation()
	if err != nil {
		return nil, err
	}
	defer release()

	debtUSD, err := e.totalDebtUSDLocked(target)
	if err != nil {
		return nil, err
	}
	if debtUSD.Sign() == 0 {
		return nil, ErrNoDebt
	}
	indebtedness, err := e.indebtednessLocked(target)
	if err != nil {
		return nil, err
	}
	if indebtedness.Cmp(new(big.Int).SetUint64(e.params.LiquidationThresholdPct)) <= 0 {
		return nil, ErrHealthy
	}

	assets, err := e.registry.Assets()
	if err != nil {
		return nil, err
	}

	// Plan phase: value and record every nonzero collateral balance in
	// registration order. No writes yet.
	totalCollateralUSD := big.NewInt(0)
	seizures := make([]seizure, 0, len(assets))
	for _, id := range assets {
		collateral, err := e.state.Collateral(target, id)
		if err != nil {
			return nil, err
		}
		if collateral.Sign() == 0 {
			continue
		}
		price, err := e.prices.PriceOf(id)
		if err != nil {
			return nil, err
		}
		reserve, err := e.state.Reserve(id)
		if err != nil {
			return nil, err
		}
		totalCollateralUSD.Add(totalCollateralUSD, usdValue(collateral, price))
		seizures = append(seizures, seizure{asset: id, amount: collateral, reserve: reserve})
	}

	if totalCollateralUSD.Cmp(debtUSD) < 0 {
		return nil, ErrShortfall
	}

	// Restitution plan. The surplus conversion is priced now so an oracle
	// failure still aborts before any mutation.
	restitution := big.NewInt(0)
	surplus := new(big.Int).Sub(totalCollateralUSD, debtUSD)
	if surplus.Sign() > 0 && !e.params.RestitutionAsset.IsZero() {
		price, err := e.prices.PriceOf(e.params.RestitutionAsset)
		if err != nil {
			return nil, err
		}
		units := unitsForUSD(surplus, price)
		available, err := e.state.Reserve(e.params.RestitutionAsset)
		if err != nil {
			return nil, err
		}
		available = new(big.Int).Set(available)
		for _, s := range seizures {
			if s.asset.Equal(e.params.RestitutionAsset) {
				available.Add(available, s.amount)
			}
		}
		if available.Cmp(units) >= 0 {
			restitution = units
		}
		// An insufficient reserve forfeits the surplus outright; it is
		// neither reverted nor queued.
	}

	// Commit phase.
	for _, s := range seizures {
		if err := e.state.SetReserve(s.asset, new(big.Int).Add(s.reserve, s.amount)); err != nil {
			return nil, err
		}
		if err := e.state.SetCollateral(target, s.asset, big.NewInt(0)); err != nil {
			return nil, err
		}
	}
	// Debt is zeroed for every registered asset, including ones the target
	// never touched, as part of the same pass.
	for _, id := range assets {
		if err := e.state.SetDebt(target, id, big.NewInt(0)); err != nil {
			return nil, err
		}
	}
	if restitution.Sign() > 0 {
		reserve, err := e.state.Reserve(e.params.RestitutionAsset)
		if err != nil {
			return nil, err
		}
		if err := e.state.SetReserve(e.params.RestitutionAsset, new(big.Int).Sub(reserve, restitution)); err != nil {
			return nil, err
		}
		if err := e.state.SetCollateral(target, e.params.RestitutionAsset, restitution); err != nil {
			return nil, err
		}
	}

	result := &LiquidationResult{
		User:         target,
		TotalDebtUSD: debtUSD,
		Assets:       make([]crypto.Address, 0, len(seizures)),
		Amounts:      make([]*big.Int, 0, len(seizures)),
		Restitution:  restitution,
	}
	for _, s := range seizures {
		result.Assets = append(result.Assets, s.asset)
		result.Amounts = append(result.Amounts, new(big.Int).Set(s.amount))
	}

	e.emitter.Emit(events.Liquidated{
		User:         target,
		TotalDebtUSD: new(big.Int).Set(debtUSD),
		Assets:       result.Assets,
		Amounts:      result.Amounts,
	})
	return result, nil
}
