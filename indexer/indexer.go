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

// Package indexer implements the long-lived coordinator that drains
// the mapper's output into the partitioned combiner and periodically
// merges the combiner's buckets into the on-disk index, gated by the
// IndexGuard so the mapper pauses new submissions for the duration of
// a flush cycle.
package indexer

import (
	"sync"

	"github.com/kvreduce/kvreduce/combine"
	"github.com/kvreduce/kvreduce/pool"
	"github.com/kvreduce/kvreduce/script"
	"github.com/kvreduce/kvreduce/store"
)

// Config carries the tuning knobs the indexer needs, already validated
// and scaled to bytes by the caller.
type Config struct {
	Partitions  int
	IndexEvery  int
	FlushSize   int
	MaxPartSize int
}

// Indexer owns the partitioned combiner and drives indexing cycles
// against an Index.
type Indexer struct {
	combiner *combine.Combiner
	index    *store.Index
	guard    *store.IndexGuard
	pool     *pool.Pool
	cfg      Config
	logf     func(string, ...interface{})
}

// New builds an Indexer with cfg.Partitions buckets.
func New(index *store.Index, guard *store.IndexGuard, workers *pool.Pool, cfg Config, logf func(string, ...interface{})) *Indexer {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Indexer{
		combiner: combine.New(cfg.Partitions),
		index:    index,
		guard:    guard,
		pool:     workers,
		cfg:      cfg,
		logf:     logf,
	}
}

// Run drains inbound until it is closed, combining every batch and
// triggering a flush cycle every IndexEvery batches, then performs one
// final flush of whatever remains before returning. It returns the
// first error encountered by any merge task.
//
// Once a fatal error is recorded, Run stops combining and flushing but
// keeps reading and discarding from inbound until the mapper closes
// it, so the mapper's pool workers never block forever sending into a
// full channel.
func (ix *Indexer) Run(inbound <-chan []script.MapResult) error {
	var firstErr error
	count := 0
	for batch := range inbound {
		if firstErr != nil {
			continue
		}
		ix.combiner.Combine(batch)
		count++
		if count >= ix.cfg.IndexEvery {
			if err := ix.flushCycle(); err != nil {
				firstErr = err
				continue
			}
			count = 0
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return ix.finalFlush()
}

// flushCycle merges every non-empty bucket under the IndexGuard,
// waiting on a barrier of arity len(nonEmpty)+1 before releasing the
// guard.
func (ix *Indexer) flushCycle() error {
	nonEmpty := nonEmptyBuckets(ix.combiner.Buckets())
	if len(nonEmpty) == 0 {
		return nil
	}

	ix.guard.StartIndexing()
	defer ix.guard.FinishIndexing()

	b := newBarrier(len(nonEmpty) + 1)
	var once sync.Once
	var firstErr error
	record := func(err error) {
		if err != nil {
			once.Do(func() { firstErr = err })
		}
	}

	for _, bucket := range nonEmpty {
		bucket := bucket
		ix.pool.Execute(func(interface{}) error {
			defer b.arrive()
			err := ix.index.Merge(bucket, ix.cfg.FlushSize, ix.cfg.MaxPartSize)
			record(err)
			return err
		})
	}
	b.arrive() // the indexer coordinator's own arrival
	b.wait()

	ix.logf("indexer: flush cycle merged %d buckets", len(nonEmpty))
	return firstErr
}

// finalFlush merges whatever buckets are still non-empty once the
// mapper is done producing input. No barrier or guard is needed: there
// is no further mapping to pause.
func (ix *Indexer) finalFlush() error {
	nonEmpty := nonEmptyBuckets(ix.combiner.Buckets())
	if len(nonEmpty) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(len(nonEmpty))
	var once sync.Once
	var firstErr error

	for _, bucket := range nonEmpty {
		bucket := bucket
		ix.pool.Execute(func(interface{}) error {
			defer wg.Done()
			err := ix.index.Merge(bucket, ix.cfg.FlushSize, ix.cfg.MaxPartSize)
			if err != nil {
				once.Do(func() { firstErr = err })
			}
			return err
		})
	}
	wg.Wait()

	ix.logf("indexer: final flush merged %d buckets", len(nonEmpty))
	return firstErr
}

func nonEmptyBuckets(buckets []*combine.Bucket) []*combine.Bucket {
	out := make([]*combine.Bucket, 0, len(buckets))
	for _, b := range buckets {
		if !b.Empty() {
			out = append(out, b)
		}
	}
	return out
}
