// Copyright (C) 2024 kvreduce authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package store implements the two persistent ordered key-value
// stores rooted in the working directory (the Index and the
// ResultTable), plus the IndexGuard coordination gate. Both stores are
// backed by a single embedded github.com/dgraph-io/badger/v3 database
// per root; badger gives ascending byte-order iteration over raw keys
// for free, which is exactly the ordering guarantee the design
// requires of both stores.
package store

import (
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"

	"github.com/kvreduce/kvreduce/kverrors"
)

// DB is a thin handle around one badger database, concurrency-safe to
// share across goroutines as-is (badger transactions are the unit of
// isolation, not the DB handle).
type DB struct {
	bdb *badger.DB
}

// Open creates or opens a badger database at path. Block compression
// is enabled (zstd, via klauspost/compress under badger's hood) since
// both the Index and the ResultTable store many small, repetitive
// records.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating store directory %s: %s", kverrors.ErrIO, path, err)
	}
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithLogger(nil)
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening store at %s: %s", kverrors.ErrIO, path, err)
	}
	return &DB{bdb: bdb}, nil
}

// Close releases the underlying badger database.
func (d *DB) Close() error {
	if err := d.bdb.Close(); err != nil {
		return fmt.Errorf("%w: closing store: %s", kverrors.ErrIO, err)
	}
	return nil
}

// set stores a single key/value pair in its own transaction.
func (d *DB) set(key, value []byte) error {
	err := d.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("%w: writing key: %s", kverrors.ErrIO, err)
	}
	return nil
}

// get returns the value stored at key, or (nil, false) if absent.
func (d *DB) get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := d.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading key: %s", kverrors.ErrIO, err)
	}
	return out, out != nil, nil
}

// Order selects ascending or descending iteration.
type Order int

const (
	Asc Order = iota
	Desc
)

// iterate walks every (key, value) pair in the requested order,
// stopping early if fn returns a non-nil error.
func (d *DB) iterate(order Order, fn func(key, value []byte) error) error {
	return d.bdb.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = order == Desc
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// batch is an all-or-nothing set of writes against the database.
type batch struct {
	wb *badger.WriteBatch
}

func (d *DB) newBatch() *batch {
	return &batch{wb: d.bdb.NewWriteBatch()}
}

func (b *batch) set(key, value []byte) error {
	if err := b.wb.Set(key, value); err != nil {
		return fmt.Errorf("%w: staging write: %s", kverrors.ErrIO, err)
	}
	return nil
}

func (b *batch) commit() error {
	if err := b.wb.Flush(); err != nil {
		return fmt.Errorf("%w: committing batch: %s", kverrors.ErrIO, err)
	}
	return nil
}

func (b *batch) cancel() {
	b.wb.Cancel()
}
