package lending

import "lendpool/crypto"

// Registry maintains the append-only set of supported assets on top of the
// ledger state. Iteration order equals registration order, which the
// liquidation path relies on for deterministic output.
type Registry struct {
	state State
}

// NewRegistry binds a registry to the ledger state.
func NewRegistry(state State) *Registry {
	return &Registry{state: state}
}

// RegisterAsset appends a new asset with an immutable collateral weight.
// Existence is checked through the stored weight: a record with weight zero
// has never been registered, which is why zero is rejected as a weight before
// the existence check runs.
func (r *Registry) RegisterAsset(id crypto.Address, weight uint64) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if weight == 0 || weight > 100 {
		return ErrInvalidWeight
	}
	existing, err := r.state.Asset(id)
	if err != nil {
		return err
	}
	if existing != nil && existing.Weight != 0 {
		return ErrAssetExists
	}
	return r.state.PutAsset(&Asset{ID: id, Weight: weight, Active: true})
}

// RequireSupported fails unless the asset is registered and active.
func (r *Registry) RequireSupported(id crypto.Address) error {
	asset, err := r.asset(id)
	if err != nil {
		return err
	}
	if !asset.Active {
		return ErrUnsupportedAsset
	}
	return nil
}

// SetAssetActive toggles an asset inert or active. The weight is untouched.
func (r *Registry) SetAssetActive(id crypto.Address, active bool) error {
	asset, err := r.asset(id)
	if err != nil {
		return err
	}
	asset.Active = active
	return r.state.PutAsset(asset)
}

// Asset returns the stored record for a registered asset.
func (r *Registry) Asset(id crypto.Address) (*Asset, error) {
	return r.asset(id)
}

// Assets enumerates all registered identifiers in registration order.
func (r *Registry) Assets() ([]crypto.Address, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	return r.state.AssetList()
}

func (r *Registry) asset(id crypto.Address) (*Asset, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	asset, err := r.state.Asset(id)
	if err != nil {
		return nil, err
	}
	if asset == nil || asset.Weight == 0 {
		return nil, ErrUnsupportedAsset
	}
	return asset, nil
}
