package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"lendpool/crypto"
	"lendpool/lending"
	"lendpool/storage"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the payer's
	// balance.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")

	balancePrefix = []byte("bank/bal/")
)

// Bank tracks per-asset account balances in the key-value store and hands out
// transfer providers the lending engine moves funds through. It doubles as
// the balance source the price oracle reads trading-pair reserves from.
type Bank struct {
	db   storage.Database
	pool crypto.Address
}

// NewBank constructs a bank whose pool custody account is poolAddr.
func NewBank(db storage.Database, poolAddr crypto.Address) *Bank {
	return &Bank{db: db, pool: poolAddr}
}

// BalanceOf reports the holder's balance of the asset. Missing entries read
// as zero.
func (b *Bank) BalanceOf(asset, holder crypto.Address) (*big.Int, error) {
	raw, err := b.db.Get(balanceKey(asset, holder))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(raw, amount); err != nil {
		return nil, fmt.Errorf("bank: decode balance: %w", err)
	}
	return amount, nil
}

// Mint credits freshly issued units to the holder. Used to bootstrap pair
// reserves and test accounts.
func (b *Bank) Mint(asset, holder crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("bank: mint amount must be positive")
	}
	balance, err := b.BalanceOf(asset, holder)
	if err != nil {
		return err
	}
	return b.setBalance(asset, holder, new(big.Int).Add(balance, amount))
}

// Transfer moves amount between two holders of the asset.
func (b *Bank) Transfer(asset, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("bank: transfer amount must be positive")
	}
	fromBalance, err := b.BalanceOf(asset, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	// A self-transfer must not re-credit the stale recipient read.
	if from.Equal(to) {
		return nil
	}
	toBalance, err := b.BalanceOf(asset, to)
	if err != nil {
		return err
	}
	if err := b.setBalance(asset, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return b.setBalance(asset, to, new(big.Int).Add(toBalance, amount))
}

// ProviderFor implements lending.Transfers.
func (b *Bank) ProviderFor(asset crypto.Address) (lending.TransferProvider, error) {
	return &assetProvider{bank: b, asset: asset}, nil
}

func (b *Bank) setBalance(asset, holder crypto.Address, amount *big.Int) error {
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return fmt.Errorf("bank: encode balance: %w", err)
	}
	return b.db.Put(balanceKey(asset, holder), encoded)
}

// assetProvider adapts the bank to the engine's per-asset transfer contract.
type assetProvider struct {
	bank  *Bank
	asset crypto.Address
}

func (p *assetProvider) Pull(holder crypto.Address, amount *big.Int) error {
	return p.bank.Transfer(p.asset, holder, p.bank.pool, amount)
}

func (p *assetProvider) Push(recipient crypto.Address, amount *big.Int) error {
	return p.bank.Transfer(p.asset, p.bank.pool, recipient, amount)
}

func (p *assetProvider) BalanceOf(holder crypto.Address) (*big.Int, error) {
	return p.bank.BalanceOf(p.asset, holder)
}

func balanceKey(asset, holder crypto.Address) []byte {
	buf := make([]byte, 0, len(balancePrefix)+40)
	buf = append(buf, balancePrefix...)
	buf = append(buf, asset.Bytes()...)
	buf = append(buf, holder.Bytes()...)
	return buf
}
