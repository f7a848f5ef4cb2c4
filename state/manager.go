package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"lendpool/crypto"
	"lendpool/lending"
	"lendpool/storage"
)

var errNegativeAmount = errors.New("state: amount must not be negative")

// Manager persists the lending ledger in the underlying key-value store. It
// implements lending.State: missing entries read as zero and records are
// RLP-encoded under byte-prefix keys.
type Manager struct {
	db storage.Database
}

// NewManager binds a ledger manager to the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedAsset struct {
	ID     [20]byte
	Weight uint64
	Active bool
}

type storedAssetIndex struct {
	IDs [][20]byte
}

func (m *Manager) Collateral(user, asset crypto.Address) (*big.Int, error) {
	return m.amountAt(positionKey(collateralPrefix, user, asset))
}

func (m *Manager) SetCollateral(user, asset crypto.Address, amount *big.Int) error {
	return m.putAmount(positionKey(collateralPrefix, user, asset), amount)
}

func (m *Manager) Debt(user, asset crypto.Address) (*big.Int, error) {
	return m.amountAt(positionKey(debtPrefix, user, asset))
}

func (m *Manager) SetDebt(user, asset crypto.Address, amount *big.Int) error {
	return m.putAmount(positionKey(debtPrefix, user, asset), amount)
}

func (m *Manager) Reserve(asset crypto.Address) (*big.Int, error) {
	return m.amountAt(assetKey(reservePrefix, asset))
}

func (m *Manager) SetReserve(asset crypto.Address, amount *big.Int) error {
	return m.putAmount(assetKey(reservePrefix, asset), amount)
}

// Asset returns nil for identifiers that were never registered.
func (m *Manager) Asset(id crypto.Address) (*lending.Asset, error) {
	raw, err := m.db.Get(assetKey(assetPrefix, id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAsset
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode asset: %w", err)
	}
	return &lending.Asset{
		ID:     crypto.NewAddress(crypto.AssetPrefix, stored.ID[:]),
		Weight: stored.Weight,
		Active: stored.Active,
	}, nil
}

// PutAsset stores the record and appends the identifier to the ordered index
// on first registration.
func (m *Manager) PutAsset(asset *lending.Asset) error {
	if asset == nil {
		return fmt.Errorf("state: asset must not be nil")
	}
	var stored storedAsset
	copy(stored.ID[:], asset.ID.Bytes())
	stored.Weight = asset.Weight
	stored.Active = asset.Active
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("state: encode asset: %w", err)
	}
	if err := m.db.Put(assetKey(assetPrefix, asset.ID), encoded); err != nil {
		return err
	}
	// The record and the index are two separate writes with no batch, and the
	// index drives liquidation ordering. Membership in the index, not record
	// existence, decides whether to append, so re-putting the record repairs
	// an index write that failed between the two Puts.
	index, err := m.assetIndex()
	if err != nil {
		return err
	}
	for _, id := range index.IDs {
		if id == stored.ID {
			return nil
		}
	}
	index.IDs = append(index.IDs, stored.ID)
	encodedIndex, err := rlp.EncodeToBytes(&index)
	if err != nil {
		return fmt.Errorf("state: encode asset index: %w", err)
	}
	return m.db.Put(assetIndexKey, encodedIndex)
}

// AssetList returns registered identifiers in registration order.
func (m *Manager) AssetList() ([]crypto.Address, error) {
	index, err := m.assetIndex()
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(index.IDs))
	for _, id := range index.IDs {
		buf := make([]byte, 20)
		copy(buf, id[:])
		out = append(out, crypto.NewAddress(crypto.AssetPrefix, buf))
	}
	return out, nil
}

func (m *Manager) assetIndex() (storedAssetIndex, error) {
	var index storedAssetIndex
	raw, err := m.db.Get(assetIndexKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return index, nil
	}
	if err != nil {
		return index, err
	}
	if err := rlp.DecodeBytes(raw, &index); err != nil {
		return index, fmt.Errorf("state: decode asset index: %w", err)
	}
	return index, nil
}

func (m *Manager) amountAt(key []byte) (*big.Int, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(raw, amount); err != nil {
		return nil, fmt.Errorf("state: decode amount: %w", err)
	}
	return amount, nil
}

func (m *Manager) putAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return errNegativeAmount
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return fmt.Errorf("state: encode amount: %w", err)
	}
	return m.db.Put(key, encoded)
}
