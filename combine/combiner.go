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

package combine

import (
	"github.com/dchest/siphash"

	"github.com/kvreduce/kvreduce/script"
)

// Two arbitrary fixed keys for the partition hash. They need not be
// secret or even hard to guess: the hash only has to be deterministic
// within a run and spread keys evenly over P buckets, the same
// non-cryptographic role siphash plays in splitter.partition.
const (
	hashKey0 = 0x5d1ec810
	hashKey1 = 0xfebed702
)

// Combiner owns the P in-memory buckets that raw map output is
// partitioned into.
type Combiner struct {
	buckets []*Bucket
}

// New creates a Combiner with p buckets.
func New(p int) *Combiner {
	c := &Combiner{buckets: make([]*Bucket, p)}
	for i := range c.buckets {
		c.buckets[i] = newBucket()
	}
	return c
}

// Buckets returns the combiner's P buckets, in partition order.
func (c *Combiner) Buckets() []*Bucket {
	return c.buckets
}

// Combine partitions every result by hash(key) mod P and appends its
// value into the chosen bucket's container for that key.
func (c *Combiner) Combine(results []script.MapResult) {
	p := uint64(len(c.buckets))
	for _, r := range results {
		h := siphash.Hash(hashKey0, hashKey1, []byte(r.Key))
		c.buckets[h%p].add(r.Key, r.Value)
	}
}
