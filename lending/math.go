package lending

import "math/big"

var (
	hundred = big.NewInt(100)
	wad     = big.NewInt(1_000_000_000_000_000_000)
)

// usdValue converts a native-unit amount to reference currency at the given
// wad price: amount * price / 1e18.
func usdValue(amount, price *big.Int) *big.Int {
	if amount == nil || price == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, wad)
}

// weightedUSDValue applies the asset's collateral weight on top of usdValue:
// amount * price * weight / (1e18 * 100).
func weightedUSDValue(amount, price *big.Int, weight uint64) *big.Int {
	if amount == nil || price == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(amount, price)
	value.Mul(value, new(big.Int).SetUint64(weight))
	value.Quo(value, wad)
	return value.Quo(value, hundred)
}

// unitsForUSD converts a reference-currency value back into native units at
// the given wad price: usd * 1e18 / price.
func unitsForUSD(usd, price *big.Int) *big.Int {
	if usd == nil || price == nil || price.Sign() == 0 {
		return big.NewInt(0)
	}
	units := new(big.Int).Mul(usd, wad)
	return units.Quo(units, price)
}
