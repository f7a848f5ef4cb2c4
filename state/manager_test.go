package state

import (
	"errors"
	"math/big"
	"testing"

	"lendpool/crypto"
	"lendpool/lending"
	"lendpool/storage"
)

func makeAddress(prefix crypto.AddressPrefix, b byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = b
	return crypto.NewAddress(prefix, buf)
}

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestAmountsReadZeroWhenMissing(t *testing.T) {
	m := newTestManager()
	user := makeAddress(crypto.AccountPrefix, 0x10)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)

	for name, read := range map[string]func() (*big.Int, error){
		"collateral": func() (*big.Int, error) { return m.Collateral(user, asset) },
		"debt":       func() (*big.Int, error) { return m.Debt(user, asset) },
		"reserve":    func() (*big.Int, error) { return m.Reserve(asset) },
	} {
		amount, err := read()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if amount.Sign() != 0 {
			t.Fatalf("%s: expected zero, got %s", name, amount)
		}
	}
}

func TestAmountRoundTrips(t *testing.T) {
	m := newTestManager()
	user := makeAddress(crypto.AccountPrefix, 0x10)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)

	big18 := new(big.Int)
	big18.SetString("123456789012345678901234567890", 10)

	if err := m.SetCollateral(user, asset, big18); err != nil {
		t.Fatalf("set collateral: %v", err)
	}
	if err := m.SetDebt(user, asset, big.NewInt(77)); err != nil {
		t.Fatalf("set debt: %v", err)
	}
	if err := m.SetReserve(asset, big.NewInt(42)); err != nil {
		t.Fatalf("set reserve: %v", err)
	}

	collateral, err := m.Collateral(user, asset)
	if err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if collateral.Cmp(big18) != 0 {
		t.Fatalf("collateral: got %s want %s", collateral, big18)
	}
	debt, err := m.Debt(user, asset)
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if debt.Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("debt: got %s", debt)
	}
	reserve, err := m.Reserve(asset)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reserve.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("reserve: got %s", reserve)
	}
}

func TestBucketsDoNotCollide(t *testing.T) {
	m := newTestManager()
	user := makeAddress(crypto.AccountPrefix, 0x10)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)

	if err := m.SetCollateral(user, asset, big.NewInt(1)); err != nil {
		t.Fatalf("set collateral: %v", err)
	}
	if err := m.SetDebt(user, asset, big.NewInt(2)); err != nil {
		t.Fatalf("set debt: %v", err)
	}
	collateral, err := m.Collateral(user, asset)
	if err != nil {
		t.Fatalf("collateral: %v", err)
	}
	debt, err := m.Debt(user, asset)
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if collateral.Cmp(big.NewInt(1)) != 0 || debt.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("buckets collided: collateral=%s debt=%s", collateral, debt)
	}
}

func TestNegativeAmountRejected(t *testing.T) {
	m := newTestManager()
	user := makeAddress(crypto.AccountPrefix, 0x10)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)

	if err := m.SetCollateral(user, asset, big.NewInt(-1)); !errors.Is(err, errNegativeAmount) {
		t.Fatalf("expected errNegativeAmount, got %v", err)
	}
}

func TestNilAmountStoresZero(t *testing.T) {
	m := newTestManager()
	asset := makeAddress(crypto.AssetPrefix, 0xA0)

	if err := m.SetReserve(asset, nil); err != nil {
		t.Fatalf("set reserve: %v", err)
	}
	reserve, err := m.Reserve(asset)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reserve.Sign() != 0 {
		t.Fatalf("expected zero, got %s", reserve)
	}
}

func TestAssetRoundTripAndIndex(t *testing.T) {
	m := newTestManager()
	first := makeAddress(crypto.AssetPrefix, 0xA1)
	second := makeAddress(crypto.AssetPrefix, 0xA0)

	missing, err := m.Asset(first)
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unregistered asset, got %+v", missing)
	}

	if err := m.PutAsset(&lending.Asset{ID: first, Weight: 70, Active: true}); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := m.PutAsset(&lending.Asset{ID: second, Weight: 100, Active: true}); err != nil {
		t.Fatalf("put second: %v", err)
	}

	record, err := m.Asset(first)
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if record.Weight != 70 || !record.Active || !record.ID.Equal(first) {
		t.Fatalf("unexpected record: %+v", record)
	}

	list, err := m.AssetList()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || !list[0].Equal(first) || !list[1].Equal(second) {
		t.Fatalf("unexpected index order: %v", list)
	}
}

// faultDB fails Puts for a chosen key once, simulating a crash between the
// asset record write and the index write.
type faultDB struct {
	storage.Database
	failKey string
	failed  bool
}

func (db *faultDB) Put(key, value []byte) error {
	if !db.failed && string(key) == db.failKey {
		db.failed = true
		return errors.New("write failed")
	}
	return db.Database.Put(key, value)
}

func TestPutAssetRepairsPartialRegistration(t *testing.T) {
	db := &faultDB{Database: storage.NewMemDB(), failKey: "lend/assets"}
	m := NewManager(db)
	asset := makeAddress(crypto.AssetPrefix, 0xA0)

	// First attempt persists the record but the index write fails.
	if err := m.PutAsset(&lending.Asset{ID: asset, Weight: 50, Active: true}); err == nil {
		t.Fatal("expected index write failure")
	}
	list, err := m.AssetList()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("index should be empty after failed registration: %v", list)
	}

	// Re-putting the same record appends the missing index entry.
	if err := m.PutAsset(&lending.Asset{ID: asset, Weight: 50, Active: true}); err != nil {
		t.Fatalf("re-put: %v", err)
	}
	list, err = m.AssetList()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !list[0].Equal(asset) {
		t.Fatalf("index not repaired: %v", list)
	}
}

func TestPutAssetUpdateKeepsIndexStable(t *testing.T) {
	m := newTestManager()
	asset := makeAddress(crypto.AssetPrefix, 0xA0)

	if err := m.PutAsset(&lending.Asset{ID: asset, Weight: 50, Active: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Toggling a field re-puts the same identifier; the index must not grow.
	if err := m.PutAsset(&lending.Asset{ID: asset, Weight: 50, Active: false}); err != nil {
		t.Fatalf("re-put: %v", err)
	}
	list, err := m.AssetList()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("index duplicated: %v", list)
	}
	record, err := m.Asset(asset)
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if record.Active {
		t.Fatal("update not applied")
	}
}
