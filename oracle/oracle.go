package oracle

import (
	"errors"
	"math/big"

	"lendpool/crypto"
)

var (
	// ErrZeroQuoteReserve indicates the quote-side reserve of the base
	// trading pair is empty, leaving the base price undefined.
	ErrZeroQuoteReserve = errors.New("oracle: zero quote reserve")
	// ErrZeroBaseReserve indicates the reward asset holds no balance in its
	// pair, leaving the transitive price undefined.
	ErrZeroBaseReserve = errors.New("oracle: zero base reserve")
	// ErrNoPriceRoute indicates the asset has no configured pricing path.
	ErrNoPriceRoute = errors.New("oracle: no price route for asset")
)

// wad is the fixed-point scale used for reference-currency prices: 1e18 = 1.0.
var wad = big.NewInt(1_000_000_000_000_000_000)

// One returns the unit price (1.0) at wad precision.
func One() *big.Int { return new(big.Int).Set(wad) }

// PriceOracle resolves the unit price of an asset quoted in the stable
// reference currency at wad precision. Prices are derived per call and never
// cached; a failed balance read propagates directly to the caller.
type PriceOracle interface {
	PriceOf(asset crypto.Address) (*big.Int, error)
}

// BalanceSource reads the balance an asset's ledger attributes to a holder.
// Trading-pair reserves are read through this interface.
type BalanceSource interface {
	BalanceOf(asset, holder crypto.Address) (*big.Int, error)
}

// Config fixes the pricing routes the router will serve. Any asset outside the
// configured set has no route.
type Config struct {
	// Deterministic switches the router into test-network mode where every
	// asset is priced at exactly 1.0.
	Deterministic bool
	// Stables are quoted at exactly 1.0 without consulting any pair.
	Stables []crypto.Address
	// Base is the volatile asset priced from the Base/QuoteStable reserves
	// held by BasePair.
	Base        crypto.Address
	BasePair    crypto.Address
	QuoteStable crypto.Address
	// Reward is priced transitively: the base price scaled by the ratio of
	// Base to Reward balances held by RewardPair.
	Reward     crypto.Address
	RewardPair crypto.Address
}

// Router resolves prices along the fixed routes in its configuration.
type Router struct {
	cfg      Config
	balances BalanceSource
}

// NewRouter constructs a price router bound to the provided balance source.
func NewRouter(cfg Config, balances BalanceSource) *Router {
	return &Router{cfg: cfg, balances: balances}
}

// PriceOf implements PriceOracle.
func (r *Router) PriceOf(asset crypto.Address) (*big.Int, error) {
	if r.cfg.Deterministic {
		return One(), nil
	}
	for _, stable := range r.cfg.Stables {
		if asset.Equal(stable) {
			return One(), nil
		}
	}
	if asset.Equal(r.cfg.Base) {
		return r.basePrice()
	}
	if asset.Equal(r.cfg.Reward) {
		return r.rewardPrice()
	}
	return nil, ErrNoPriceRoute
}

// basePrice divides the pair's base-side reserve by its stable-side reserve.
func (r *Router) basePrice() (*big.Int, error) {
	baseReserve, err := r.balances.BalanceOf(r.cfg.Base, r.cfg.BasePair)
	if err != nil {
		return nil, err
	}
	quoteReserve, err := r.balances.BalanceOf(r.cfg.QuoteStable, r.cfg.BasePair)
	if err != nil {
		return nil, err
	}
	if quoteReserve == nil || quoteReserve.Sign() == 0 {
		return nil, ErrZeroQuoteReserve
	}
	price := new(big.Int).Mul(baseReserve, wad)
	return price.Quo(price, quoteReserve), nil
}

// rewardPrice resolves the base price first and scales it by the base/reward
// balance ratio held in the reward pair.
func (r *Router) rewardPrice() (*big.Int, error) {
	basePrice, err := r.basePrice()
	if err != nil {
		return nil, err
	}
	rewardBalance, err := r.balances.BalanceOf(r.cfg.Reward, r.cfg.RewardPair)
	if err != nil {
		return nil, err
	}
	if rewardBalance == nil || rewardBalance.Sign() == 0 {
		return nil, ErrZeroBaseReserve
	}
	baseBalance, err := r.balances.BalanceOf(r.cfg.Base, r.cfg.RewardPair)
	if err != nil {
		return nil, err
	}
	price := new(big.Int).Mul(basePrice, baseBalance)
	return price.Quo(price, rewardBalance), nil
}
