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

// Package combine implements the partitioned in-memory combiner: raw
// (key, value) pairs are hashed into one of P buckets and aggregated
// there under a per-bucket lock, mirroring
// SnellerInc-sneller/cmd/snellerd/splitter.go's siphash-based
// hash(key) mod N partitioning, generalized from "which node serves
// this blob" to "which bucket aggregates this key".
package combine

import (
	"sync"

	"github.com/kvreduce/kvreduce/container"
)

// Bucket is one in-memory partition: a map from raw key bytes to the
// container accumulating that key's values, guarded by an RWMutex
// (mostly-write during combining, read-only to detect emptiness).
type Bucket struct {
	mu         sync.RWMutex
	containers map[string]*container.Container
}

func newBucket() *Bucket {
	return &Bucket{containers: make(map[string]*container.Container)}
}

// Empty reports whether the bucket currently holds no containers.
func (b *Bucket) Empty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.containers) == 0
}

// add appends value to the container for key, creating one if this is
// the bucket's first value for that key.
func (b *Bucket) add(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.containers[key]
	if !ok {
		c = container.New([]byte(key))
		b.containers[key] = c
	}
	c.AddValue(value)
}

// Drain removes and returns every (key, container) pair currently in
// the bucket, leaving it empty. This is how the indexer takes
// ownership of a bucket's contents for merging into the index.
func (b *Bucket) Drain() map[string]*container.Container {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.containers
	b.containers = make(map[string]*container.Container)
	return out
}
