package lending

import (
	"math/big"

	"lendpool/crypto"
)

// State is the authoritative ledger the engine mutates. It is a dumb keyed
// store: all validation lives in the engine, and missing entries read as zero.
// Implementations must never return negative amounts.
type State interface {
	Collateral(user, asset crypto.Address) (*big.Int, error)
	SetCollateral(user, asset crypto.Address, amount *big.Int) error

	Debt(user, asset crypto.Address) (*big.Int, error)
	SetDebt(user, asset crypto.Address, amount *big.Int) error

	Reserve(asset crypto.Address) (*big.Int, error)
	SetReserve(asset crypto.Address, amount *big.Int) error

	// Asset returns nil when the identifier has never been registered.
	Asset(id crypto.Address) (*Asset, error)
	PutAsset(asset *Asset) error
	// AssetList returns all registered identifiers in registration order.
	AssetList() ([]crypto.Address, error)
}
