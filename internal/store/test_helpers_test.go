package store

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/roach88/limitidx/internal/order"
)

// createTestStore creates a new SQLite store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBadger creates an in-memory Badger store.
func createTestBadger(t *testing.T) *Badger {
	t.Helper()
	b, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger() failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// testInput returns a canonical identity tuple; seed varies the maker amount.
func testInput(seed int64) order.IdentityInput {
	in := order.IdentityInput{
		MakerAddress: "0x1111111111111111111111111111111111111111",
		TakerAddress: "0x2222222222222222222222222222222222222222",
		MakerAsset:   "0x3333333333333333333333333333333333333333",
		TakerAsset:   "0x4444444444444444444444444444444444444444",
		MakerAmount:  big.NewInt(seed),
		TakerAmount:  big.NewInt(200),
		Expiration:   big.NewInt(9999),
	}
	return in
}

// createTestRecord returns a record at the given version.
func createTestRecord(t *testing.T, seed int64, count uint64, remaining int64) order.Record {
	t.Helper()
	id, in, err := order.Derive(testInput(seed))
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	rec := order.NewRecord(id, in)
	rec.UpdatesCount = count
	rec.RemainingAmount = big.NewInt(remaining)
	return rec
}
