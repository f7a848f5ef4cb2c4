package oracle

import (
	"errors"
	"math/big"
	"testing"

	"lendpool/crypto"
)

func makeAddress(prefix crypto.AddressPrefix, b byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = b
	return crypto.NewAddress(prefix, buf)
}

// pairBalances is a fixed ledger of (asset, holder) balances.
type pairBalances map[[2]byte]*big.Int

func (p pairBalances) set(asset, holder crypto.Address, amount int64) {
	p[[2]byte{asset.Bytes()[19], holder.Bytes()[19]}] = big.NewInt(amount)
}

func (p pairBalances) BalanceOf(asset, holder crypto.Address) (*big.Int, error) {
	if amount, ok := p[[2]byte{asset.Bytes()[19], holder.Bytes()[19]}]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

type routerFixture struct {
	cfg      Config
	balances pairBalances
	stable   crypto.Address
	second   crypto.Address
	base     crypto.Address
	reward   crypto.Address
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		balances: make(pairBalances),
		stable:   makeAddress(crypto.AssetPrefix, 0x01),
		second:   makeAddress(crypto.AssetPrefix, 0x02),
		base:     makeAddress(crypto.AssetPrefix, 0x03),
		reward:   makeAddress(crypto.AssetPrefix, 0x04),
	}
	f.cfg = Config{
		Stables:     []crypto.Address{f.stable, f.second},
		Base:        f.base,
		BasePair:    makeAddress(crypto.AccountPrefix, 0x10),
		QuoteStable: f.stable,
		Reward:      f.reward,
		RewardPair:  makeAddress(crypto.AccountPrefix, 0x11),
	}
	return f
}

func (f *routerFixture) router() *Router {
	return NewRouter(f.cfg, f.balances)
}

func TestDeterministicModePricesEverythingAtOne(t *testing.T) {
	f := newRouterFixture()
	f.cfg.Deterministic = true
	router := f.router()

	unknown := makeAddress(crypto.AssetPrefix, 0x7F)
	for _, asset := range []crypto.Address{f.stable, f.base, f.reward, unknown} {
		price, err := router.PriceOf(asset)
		if err != nil {
			t.Fatalf("price of %s: %v", asset, err)
		}
		if price.Cmp(One()) != 0 {
			t.Fatalf("price of %s: got %s want %s", asset, price, One())
		}
	}
}

func TestStablesPricedAtOne(t *testing.T) {
	f := newRouterFixture()
	router := f.router()

	for _, asset := range []crypto.Address{f.stable, f.second} {
		price, err := router.PriceOf(asset)
		if err != nil {
			t.Fatalf("price of %s: %v", asset, err)
		}
		if price.Cmp(One()) != 0 {
			t.Fatalf("price of %s: got %s", asset, price)
		}
	}
}

func TestBasePriceFromPairReserves(t *testing.T) {
	f := newRouterFixture()
	// 3000 base against 1500 stable in the pair: price 2.0.
	f.balances.set(f.base, f.cfg.BasePair, 3_000)
	f.balances.set(f.stable, f.cfg.BasePair, 1_500)
	router := f.router()

	price, err := router.PriceOf(f.base)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(2), One())
	if price.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", price, want)
	}
}

func TestBasePriceZeroQuoteReserve(t *testing.T) {
	f := newRouterFixture()
	f.balances.set(f.base, f.cfg.BasePair, 3_000)
	router := f.router()

	if _, err := router.PriceOf(f.base); !errors.Is(err, ErrZeroQuoteReserve) {
		t.Fatalf("expected ErrZeroQuoteReserve, got %v", err)
	}
}

func TestRewardPriceTransitive(t *testing.T) {
	f := newRouterFixture()
	// Base priced at 2.0 via its own pair.
	f.balances.set(f.base, f.cfg.BasePair, 3_000)
	f.balances.set(f.stable, f.cfg.BasePair, 1_500)
	// Reward pair holds 500 base against 2000 reward: reward = 2.0 * 500/2000.
	f.balances.set(f.base, f.cfg.RewardPair, 500)
	f.balances.set(f.reward, f.cfg.RewardPair, 2_000)
	router := f.router()

	price, err := router.PriceOf(f.reward)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	want := new(big.Int).Quo(One(), big.NewInt(2))
	if price.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", price, want)
	}
}

func TestRewardPriceZeroBaseReserve(t *testing.T) {
	f := newRouterFixture()
	f.balances.set(f.base, f.cfg.BasePair, 3_000)
	f.balances.set(f.stable, f.cfg.BasePair, 1_500)
	f.balances.set(f.base, f.cfg.RewardPair, 500)
	router := f.router()

	if _, err := router.PriceOf(f.reward); !errors.Is(err, ErrZeroBaseReserve) {
		t.Fatalf("expected ErrZeroBaseReserve, got %v", err)
	}
}

func TestRewardPricePropagatesBaseFailure(t *testing.T) {
	f := newRouterFixture()
	f.balances.set(f.base, f.cfg.RewardPair, 500)
	f.balances.set(f.reward, f.cfg.RewardPair, 2_000)
	router := f.router()

	if _, err := router.PriceOf(f.reward); !errors.Is(err, ErrZeroQuoteReserve) {
		t.Fatalf("expected ErrZeroQuoteReserve, got %v", err)
	}
}

func TestUnroutedAsset(t *testing.T) {
	f := newRouterFixture()
	router := f.router()

	unknown := makeAddress(crypto.AssetPrefix, 0x7F)
	if _, err := router.PriceOf(unknown); !errors.Is(err, ErrNoPriceRoute) {
		t.Fatalf("expected ErrNoPriceRoute, got %v", err)
	}
}
