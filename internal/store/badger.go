package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/roach88/limitidx/internal/order"
)

var (
	badgerOrderPrefix = []byte("order:")
	badgerSchemeKey   = []byte("meta:identity_scheme")
)

// Badger is an embedded key-value RecordStore.
// Keys are "order:<id>"; values are the JSON form of order.Record.
type Badger struct {
	db *badger.DB
}

var (
	_ RecordStore = (*Badger)(nil)
	_ Lister      = (*Badger)(nil)
)

// OpenBadger opens (or creates) a Badger database in dir.
// An empty dir opens an in-memory database.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	b := &Badger{db: db}
	if err := b.checkScheme(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) checkScheme() error {
	return b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerSchemeKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set(badgerSchemeKey, []byte(order.IdentityScheme))
		}
		if err != nil {
			return fmt.Errorf("read identity scheme: %w", err)
		}

		stored, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read identity scheme: %w", err)
		}
		if string(stored) != order.IdentityScheme {
			return &SchemeMismatchError{Stored: string(stored), Want: order.IdentityScheme}
		}
		return nil
	})
}

// Load returns the record stored under key.
func (b *Badger) Load(_ context.Context, key string) (order.Record, bool, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return order.Record{}, false, nil
	}
	if err != nil {
		return order.Record{}, false, b.unavailable("load", key, err)
	}

	rec, err := unmarshalRecord(data)
	if err != nil {
		return order.Record{}, false, b.unavailable("load", key, err)
	}
	return rec, true, nil
}

// Save writes rec under key in one transaction.
// A concurrent writer to the same key surfaces as ErrConflict.
func (b *Badger) Save(_ context.Context, key string, rec order.Record) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		prev, found, err := badgerGet(txn, key)
		if err != nil {
			return b.unavailable("save", key, err)
		}
		if err := checkVersion(prev.UpdatesCount, found, rec.UpdatesCount); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}

		next := rec
		if found {
			next = writeOnce(prev, rec)
		}
		data, err := marshalRecord(next)
		if err != nil {
			return err
		}
		if err := txn.Set(badgerKey(key), data); err != nil {
			return b.unavailable("save", key, err)
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("save %s: %w", key, ErrConflict)
	}
	if err != nil && !errors.Is(err, ErrConflict) && !IsUnavailable(err) {
		return b.unavailable("save", key, err)
	}
	return err
}

// List returns up to limit records ordered by key. limit <= 0 means no limit.
func (b *Badger) List(_ context.Context, limit int) ([]order.Record, error) {
	records := []order.Record{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerOrderPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := unmarshalRecord(data)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, b.unavailable("list", "", err)
	}
	return records, nil
}

func badgerGet(txn *badger.Txn, key string) (order.Record, bool, error) {
	item, err := txn.Get(badgerKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return order.Record{}, false, nil
	}
	if err != nil {
		return order.Record{}, false, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return order.Record{}, false, err
	}
	rec, err := unmarshalRecord(data)
	if err != nil {
		return order.Record{}, false, err
	}
	return rec, true, nil
}

func badgerKey(id string) []byte {
	return append(append([]byte(nil), badgerOrderPrefix...), id...)
}

func (b *Badger) unavailable(op, key string, err error) error {
	return &UnavailableError{Backend: "badger", Op: op, Key: key, Err: err}
}
