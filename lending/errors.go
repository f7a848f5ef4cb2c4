package lending

import "errors"

var (
	// Input validation.
	ErrInvalidWeight    = errors.New("lending: weight must be in (0,100]")
	ErrAssetExists      = errors.New("lending: asset already registered")
	ErrUnsupportedAsset = errors.New("lending: asset not supported")
	ErrZeroAmount       = errors.New("lending: amount must be positive")

	// Insufficient resources.
	ErrInsufficientBalance = errors.New("lending: insufficient balance")
	ErrInsufficientReserve = errors.New("lending: insufficient pool reserve")

	// Policy rejections.
	ErrExceedsBorrowCapacity = errors.New("lending: borrow exceeds capacity")
	ErrExceedsLTV            = errors.New("lending: withdrawal exceeds max loan-to-value")

	// Liquidation.
	ErrNoDebt    = errors.New("lending: no outstanding debt")
	ErrHealthy   = errors.New("lending: position not eligible for liquidation")
	ErrShortfall = errors.New("lending: collateral value below outstanding debt")

	// Engine guards.
	ErrReentrantCall = errors.New("lending: reentrant call rejected")
	ErrNotOwner      = errors.New("lending: caller is not the pool owner")
	ErrModulePaused  = errors.New("lending: module paused")

	// Wiring.
	ErrNilState           = errors.New("lending: state not configured")
	ErrNoTransferProvider = errors.New("lending: no transfer provider for asset")
)
