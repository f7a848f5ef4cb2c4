package bank

import (
	"errors"
	"math/big"
	"testing"

	"lendpool/crypto"
	"lendpool/storage"
)

func makeAddress(prefix crypto.AddressPrefix, b byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = b
	return crypto.NewAddress(prefix, buf)
}

func TestMintAndBalance(t *testing.T) {
	pool := makeAddress(crypto.AccountPrefix, 0x01)
	bank := NewBank(storage.NewMemDB(), pool)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)
	holder := makeAddress(crypto.AccountPrefix, 0x10)

	balance, err := bank.BalanceOf(asset, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", balance)
	}

	if err := bank.Mint(asset, holder, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := bank.Mint(asset, holder, big.NewInt(250)); err != nil {
		t.Fatalf("mint again: %v", err)
	}
	balance, err = bank.BalanceOf(asset, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}

	if err := bank.Mint(asset, holder, big.NewInt(0)); err == nil {
		t.Fatal("expected zero mint to fail")
	}
}

func TestTransfer(t *testing.T) {
	pool := makeAddress(crypto.AccountPrefix, 0x01)
	bank := NewBank(storage.NewMemDB(), pool)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)
	alice := makeAddress(crypto.AccountPrefix, 0x10)
	bob := makeAddress(crypto.AccountPrefix, 0x11)

	if err := bank.Mint(asset, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := bank.Transfer(asset, alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBalance, err := bank.BalanceOf(asset, alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	bobBalance, err := bank.BalanceOf(asset, bob)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if aliceBalance.Cmp(big.NewInt(40)) != 0 || bobBalance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected balances: alice=%s bob=%s", aliceBalance, bobBalance)
	}

	if err := bank.Transfer(asset, alice, bob, big.NewInt(41)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestSelfTransferConservesBalance(t *testing.T) {
	pool := makeAddress(crypto.AccountPrefix, 0x01)
	bank := NewBank(storage.NewMemDB(), pool)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)

	if err := bank.Mint(asset, pool, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := bank.Transfer(asset, pool, pool, big.NewInt(100)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	balance, err := bank.BalanceOf(asset, pool)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("self-transfer changed the balance: %s", balance)
	}

	// The balance check still applies to self-transfers.
	if err := bank.Transfer(asset, pool, pool, big.NewInt(101)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// A pull into custody by the custody account itself must not create
	// collateral-backing funds out of the pool's own balance.
	provider, err := bank.ProviderFor(asset)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if err := provider.Pull(pool, big.NewInt(100)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	balance, err = bank.BalanceOf(asset, pool)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("custody pull minted funds: %s", balance)
	}
}

func TestProviderMovesFundsThroughPool(t *testing.T) {
	pool := makeAddress(crypto.AccountPrefix, 0x01)
	bank := NewBank(storage.NewMemDB(), pool)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)
	user := makeAddress(crypto.AccountPrefix, 0x10)

	if err := bank.Mint(asset, user, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	provider, err := bank.ProviderFor(asset)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}

	if err := provider.Pull(user, big.NewInt(70)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	poolBalance, err := bank.BalanceOf(asset, pool)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if poolBalance.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("unexpected pool balance: %s", poolBalance)
	}

	if err := provider.Push(user, big.NewInt(30)); err != nil {
		t.Fatalf("push: %v", err)
	}
	userBalance, err := provider.BalanceOf(user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if userBalance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected user balance: %s", userBalance)
	}

	// Pull beyond the user's balance surfaces the bank's sentinel.
	if err := provider.Pull(user, big.NewInt(61)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}
