package lending

import (
	"math/big"
	"sync"

	"lendpool/core/events"
	"lendpool/crypto"
	"lendpool/oracle"
)

const moduleName = "lending"

// Engine enforces the supply/borrow/repay/withdraw invariants against the
// ledger state, the price oracle and the asset registry. Every mutating
// operation runs as one indivisible unit: the in-flight guard rejects
// re-entrant calls from transfer callbacks, and the lock gives read-only
// queries a consistent snapshot while a mutation is applying.
type Engine struct {
	mu    sync.RWMutex
	guard opGuard

	state     State
	registry  *Registry
	prices    oracle.PriceOracle
	transfers Transfers
	params    RiskParameters
	owner     crypto.Address
	pauses    PauseView
	emitter   events.Emitter
}

// NewEngine constructs an engine over its collaborators.
func NewEngine(state State, registry *Registry, prices oracle.PriceOracle, transfers Transfers, params RiskParameters) *Engine {
	return &Engine{
		state:     state,
		registry:  registry,
		prices:    prices,
		transfers: transfers,
		params:    params,
		emitter:   events.NoopEmitter{},
	}
}

// SetOwner configures the address allowed to register assets and withdraw
// pool funds.
func (e *Engine) SetOwner(owner crypto.Address) {
	if e == nil {
		return
	}
	e.owner = owner
}

// SetPauses wires the operator pause switches.
func (e *Engine) SetPauses(p PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter wires the event sink notified after committed mutations.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// Params returns the configured risk parameters.
func (e *Engine) Params() RiskParameters {
	if e == nil {
		return RiskParameters{}
	}
	return e.params
}

// Registry exposes the asset registry backing the engine.
func (e *Engine) Registry() *Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// beginMutation runs the pause and reentrancy guards and takes the write
// lock. The returned release func must be deferred on every exit path.
func (e *Engine) beginMutation() (func(), error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := guardPaused(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		e.guard.exit()
	}, nil
}

// RegisterAsset adds a new supported asset. Owner-gated.
func (e *Engine) RegisterAsset(caller, id crypto.Address, weight uint64) error {
	release, err := e.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.registry.RegisterAsset(id, weight); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenAdded{Asset: id, Weight: weight})
	return nil
}

// Deposit pulls amount from the user and credits it as collateral.
func (e *Engine) Deposit(user, asset crypto.Address, amount *big.Int) error {
	release, err := e.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.registry.RequireSupported(asset); err != nil {
		return err
	}
	provider, err := e.providerFor(asset)
	if err != nil {
		return err
	}
	collateral, err := e.state.Collateral(user, asset)
	if err != nil {
		return err
	}

	if err := provider.Pull(user, amount); err != nil {
		return err
	}
	if err := e.state.SetCollateral(user, asset, new(big.Int).Add(collateral, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.Deposited{User: user, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// Withdraw releases collateral back to the user, provided the position stays
// below the maximum loan-to-value ratio after the removal. The check is
// stricter than the liquidation trigger on purpose: it keeps users below the
// ratio proactively instead of merely above the liquidation threshold.
func (e *Engine) Withdraw(user, asset crypto.Address, amount *big.Int) error {
	release, err := e.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.registry.RequireSupported(asset); err != nil {
		return err
	}
	collateral, err := e.state.Collateral(user, asset)
	if err != nil {
		return err
	}
	if collateral.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	assetRecord, err := e.registry.Asset(asset)
	if err != nil {
		return err
	}
	price, err := e.prices.PriceOf(asset)
	if err != nil {
		return err
	}
	capacity, err := e.borrowCapacityLocked(user)
	if err != nil {
		return err
	}
	debtUSD, err := e.totalDebtUSDLocked(user)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(capacity, weightedUSDValue(amount, price, assetRecord.Weight))
	required := new(big.Int).Mul(debtUSD, hundred)
	required.Quo(required, new(big.Int).SetUint64(e.params.MaxBorrowRatioPct))
	if remaining.Cmp(required) < 0 {
		return ErrExceedsLTV
	}

	provider, err := e.providerFor(asset)
	if err != nil {
		return err
	}
	if err := provider.Push(user, amount); err != nil {
		return err
	}
	if err := e.state.SetCollateral(user, asset, new(big.Int).Sub(collateral, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.Withdrawn{User: user, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// Borrow draws pool reserves against the user's weighted collateral value.
func (e *Engine) Borrow(user, asset crypto.Address, amount *big.Int) error {
	release, err := e.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.registry.RequireSupported(asset); err != nil {
		return err
	}
	reserve, err := e.state.Reserve(asset)
	if err != nil {
		return err
	}
	if reserve.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}

	price, err := e.prices.PriceOf(asset)
	if err != nil {
		return err
	}
	capacity, err := e.borrowCapacityLocked(user)
	if err != nil {
		return err
	}
	debtUSD, err := e.totalDebtUSDLocked(user)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(debtUSD, usdValue(amount, price))
	limit := new(big.Int).Mul(capacity, new(big.Int).SetUint64(e.params.MaxBorrowRatioPct))
	limit.Quo(limit, hundred)
	if projected.Cmp(limit) > 0 {
		return ErrExceedsBorrowCapacity
	}

	debt, err := e.state.Debt(user, asset)
	if err != nil {
		return err
	}
	provider, err := e.providerFor(asset)
	if err != nil {
		return err
	}
	if err := provider.Push(user, amount); err != nil {
		return err
	}
	if err := e.state.SetDebt(user, asset, new(big.Int).Add(debt, amount)); err != nil {
		return err
	}
	if err := e.state.SetReserve(asset, new(big.Int).Sub(reserve, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.Borrowed{User: user, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// Repay pulls amount from the user, clears that much debt and returns the
// funds to the pool reserve.
func (e *Engine) Repay(user, asset crypto.Address, amount *big.Int) error {
	release, err := e.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.registry.RequireSupported(asset); err != nil {
		return err
	}
	debt, err := e.state.Debt(user, asset)
	if err != nil {
		return err
	}
	if debt.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	reserve, err := e.state.Reserve(asset)
	if err != nil {
		return err
	}

	provider, err := e.providerFor(asset)
	if err != nil {
		return err
	}
	if err := provider.Pull(user, amount); err != nil {
		return err
	}
	if err := e.state.SetDebt(user, asset, new(big.Int).Sub(debt, amount)); err != nil {
		return err
	}
	if err := e.state.SetReserve(asset, new(big.Int).Add(reserve, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.Repaid{User: user, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// FundPool credits pool reserves independent of any user position. Funding is
// permissionless.
func (e *Engine) FundPool(from, asset crypto.Address, amount *big.Int) error {
	release, err := e.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.registry.RequireSupported(asset); err != nil {
		return err
	}
	reserve, err := e.state.Reserve(asset)
	if err != nil {
		return err
	}
	provider, err := e.providerFor(asset)
	if err != nil {
		return err
	}
	if err := provider.Pull(from, amount); err != nil {
		return err
	}
	if err := e.state.SetReserve(asset, new(big.Int).Add(reserve, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.PoolFunded{From: from, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// WithdrawPoolFunds drains pool reserves to the recipient. Owner-gated.
func (e *Engine) WithdrawPoolFunds(caller, to, asset crypto.Address, amount *big.Int) error {
	release, err := e.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.registry.RequireSupported(asset); err != nil {
		return err
	}
	reserve, err := e.state.Reserve(asset)
	if err != nil {
		return err
	}
	if reserve.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}
	provider, err := e.providerFor(asset)
	if err != nil {
		return err
	}
	if err := provider.Push(to, amount); err != nil {
		return err
	}
	if err := e.state.SetReserve(asset, new(big.Int).Sub(reserve, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.PoolFundsWithdrawn{To: to, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// BorrowCapacity sums the weighted USD value of the user's collateral across
// every registered asset. Recomputed from live prices on every call; two
// sequential calls may legitimately differ.
func (e *Engine) BorrowCapacity(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.borrowCapacityLocked(user)
}

// TotalDebtUSD sums the USD value of the user's debt across every registered
// asset.
func (e *Engine) TotalDebtUSD(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalDebtUSDLocked(user)
}

// Indebtedness reports debt relative to capacity as a percentage. The value
// is not clamped to 100: it exceeds 100 when debt surpasses capacity, which
// is exactly the signal the liquidation path triggers on.
func (e *Engine) Indebtedness(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.indebtednessLocked(user)
}

func (e *Engine) borrowCapacityLocked(user crypto.Address) (*big.Int, error) {
	assets, err := e.registry.Assets()
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, id := range assets {
		collateral, err := e.state.Collateral(user, id)
		if err != nil {
			return nil, err
		}
		// Zero collateral contributes nothing; skip the price lookup.
		if collateral.Sign() == 0 {
			continue
		}
		record, err := e.registry.Asset(id)
		if err != nil {
			return nil, err
		}
		price, err := e.prices.PriceOf(id)
		if err != nil {
			return nil, err
		}
		total.Add(total, weightedUSDValue(collateral, price, record.Weight))
	}
	return total, nil
}

func (e *Engine) totalDebtUSDLocked(user crypto.Address) (*big.Int, error) {
	assets, err := e.registry.Assets()
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, id := range assets {
		debt, err := e.state.Debt(user, id)
		if err != nil {
			return nil, err
		}
		if debt.Sign() == 0 {
			continue
		}
		price, err := e.prices.PriceOf(id)
		if err != nil {
			return nil, err
		}
		total.Add(total, usdValue(debt, price))
	}
	return total, nil
}

func (e *Engine) indebtednessLocked(user crypto.Address) (*big.Int, error) {
	capacity, err := e.borrowCapacityLocked(user)
	if err != nil {
		return nil, err
	}
	if capacity.Sign() == 0 {
		return big.NewInt(0), nil
	}
	debtUSD, err := e.totalDebtUSDLocked(user)
	if err != nil {
		return nil, err
	}
	ratio := new(big.Int).Mul(debtUSD, hundred)
	return ratio.Quo(ratio, capacity), nil
}

func (e *Engine) providerFor(asset crypto.Address) (TransferProvider, error) {
	if e.transfers == nil {
		return nil, ErrNoTransferProvider
	}
	provider, err := e.transfers.ProviderFor(asset)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, ErrNoTransferProvider
	}
	return provider, nil
}

func (e *Engine) requireOwner(caller crypto.Address) error {
	if e.owner.IsZero() || !caller.Equal(e.owner) {
		return ErrNotOwner
	}
	return nil
}
