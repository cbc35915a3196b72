// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package journal

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// keys sort by receive time: "tip:<20-digit unix nanos>:<entry id>"
const badgerPrefix = "tip:"

// Badger is a journal backed by an embedded Badger key-value store.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens the store directory at path.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", path, err)
	}
	return &Badger{db: db}, nil
}

func badgerKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", badgerPrefix, e.ReceivedAt.UnixNano(), e.ID))
}

func (b *Badger) Append(_ context.Context, e Entry) error {
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(e), buf)
	})
}

func (b *Badger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)
	var out []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration starts from the largest key with the prefix
		for it.Seek([]byte(badgerPrefix + "\xff")); it.Valid() && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list tips: %w", err)
	}
	return out, nil
}

func (b *Badger) Close() error { return b.db.Close() }
