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

package store

import (
	"path/filepath"
	"sync/atomic"

	"github.com/kvreduce/kvreduce/combine"
	"github.com/kvreduce/kvreduce/container"
)

// Index is the persistent ordered key -> MapContainer store rooted at
// {root}/index, plus the part-file directory it shares with every
// container it holds ({root} itself).
type Index struct {
	db        *DB
	root      string
	totalKeys int64
}

// OpenIndex opens (creating if absent) the index store under root.
// Part files for every key live directly under root, alongside the
// index/ and results/ subdirectories the two stores use for their own
// badger files.
func OpenIndex(root string) (*Index, error) {
	db, err := Open(filepath.Join(root, "index"))
	if err != nil {
		return nil, err
	}
	return &Index{db: db, root: root}, nil
}

// Close releases the index's underlying store.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Root returns the working-directory root that part files are written
// under.
func (ix *Index) Root() string {
	return ix.root
}

// TotalKeys returns the number of distinct keys ever merged into the
// index.
func (ix *Index) TotalKeys() int64 {
	return atomic.LoadInt64(&ix.totalKeys)
}

// Get returns the deserialized container for key, or (nil, false) if
// the key has never been merged into the index.
func (ix *Index) Get(key []byte) (*container.Container, bool, error) {
	raw, ok, err := ix.db.get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	c, err := container.Decode(raw)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Merge drains bucket and, for every (key, in-memory container) pair
// it held, combines it with whatever the index already has on disk
// for that key (if anything), flushing to a part file once the
// combined container's buffered size reaches flushSize. All resulting
// containers are written back in one atomic batch; part-file appends
// happen individually, before the batch commit, exactly as the design
// requires. Merge is the unit of work the indexer dispatches onto the
// shared pool, one call per non-empty bucket.
func (ix *Index) Merge(bucket *combine.Bucket, flushSize, maxPartSize int) error {
	drained := bucket.Drain()
	if len(drained) == 0 {
		return nil
	}

	type pending struct {
		key []byte
		c   *container.Container
	}
	results := make([]pending, 0, len(drained))

	for key, mem := range drained {
		stored, existed, err := ix.Get([]byte(key))
		if err != nil {
			return err
		}

		merged := mem
		if existed {
			merged = container.New([]byte(key))
			merged.Values = append(merged.Values, mem.Values...)
			merged.BufferedSize = mem.BufferedSize
			merged.TransferData(stored)
		} else {
			atomic.AddInt64(&ix.totalKeys, 1)
		}

		if merged.BufferedSize >= flushSize {
			if err := merged.FlushToFilePart(ix.root, maxPartSize); err != nil {
				return err
			}
		}

		results = append(results, pending{key: []byte(key), c: merged})
	}

	b := ix.db.newBatch()
	for _, r := range results {
		if err := b.set(r.key, r.c.Encode()); err != nil {
			b.cancel()
			return err
		}
	}
	return b.commit()
}

// Iter walks every (key, container) pair in the index in ascending key
// order, stopping early if fn returns a non-nil error.
func (ix *Index) Iter(fn func(key []byte, c *container.Container) error) error {
	return ix.db.iterate(Asc, func(key, value []byte) error {
		c, err := container.Decode(value)
		if err != nil {
			return err
		}
		return fn(key, c)
	})
}
