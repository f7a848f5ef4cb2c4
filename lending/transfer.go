package lending

import (
	"math/big"

	"lendpool/crypto"
)

// TransferProvider moves units of a single asset between the pool's custody
// and external holders. Native-currency and token semantics (attached value
// versus allowance-gated pulls) are implementation concerns; the engine only
// sees success or failure, and any failure aborts the enclosing operation.
type TransferProvider interface {
	// Pull moves amount from the holder into pool custody.
	Pull(holder crypto.Address, amount *big.Int) error
	// Push moves amount from pool custody to the recipient.
	Push(recipient crypto.Address, amount *big.Int) error
	// BalanceOf reports the holder's balance of this asset.
	BalanceOf(holder crypto.Address) (*big.Int, error)
}

// Transfers resolves the transfer provider responsible for an asset.
type Transfers interface {
	ProviderFor(asset crypto.Address) (TransferProvider, error)
}
