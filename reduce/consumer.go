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

package reduce

import (
	"fmt"

	"github.com/kvreduce/kvreduce/container"
	"github.com/kvreduce/kvreduce/kverrors"
	"github.com/kvreduce/kvreduce/store"
)

// Consumer walks a finalized Index in ascending key order and emits a
// Reduction stream describing how to reduce each key's values.
type Consumer struct {
	index *store.Index
}

// NewConsumer builds a Consumer over index. Index must not be mutated
// concurrently with Run: mapping and indexing must be fully complete.
func NewConsumer(index *store.Index) *Consumer {
	return &Consumer{index: index}
}

// Run iterates the index and sends one Reduction message per step of
// each key's §4.7 lifecycle onto out, closing out when done. It
// returns the first error encountered, including a missing part file
// at read time.
func (c *Consumer) Run(out chan<- Reduction) error {
	defer close(out)
	return c.index.Iter(func(key []byte, ct *container.Container) error {
		return c.emitKey(string(key), ct, out)
	})
}

func (c *Consumer) emitKey(key string, ct *container.Container, out chan<- Reduction) error {
	switch ct.State() {
	case container.NoData:
		return nil

	case container.IndexOnly:
		out <- Reduction{Kind: KindKeyInit, Key: key, TotalParts: 1}
		out <- Reduction{Kind: KindFilePartInit, Key: key}
		out <- Reduction{Kind: KindFileLineInit, Key: key, Part: 0, Lines: 1}
		out <- Reduction{Kind: KindFileLine, Key: key, Part: 0, Source: FromIndex, Values: ct.Values}
		return nil

	case container.FileOnly:
		out <- Reduction{Kind: KindKeyInit, Key: key, TotalParts: ct.TotalParts}
		out <- Reduction{Kind: KindFilePartInit, Key: key}
		return c.emitFileParts(key, ct, out)

	case container.IndexAndFile:
		out <- Reduction{Kind: KindKeyInit, Key: key, TotalParts: ct.TotalParts + 1}
		out <- Reduction{Kind: KindFilePartInit, Key: key}
		if err := c.emitFileParts(key, ct, out); err != nil {
			return err
		}
		synthetic := ct.TotalParts
		out <- Reduction{Kind: KindFileLineInit, Key: key, Part: synthetic, Lines: 1}
		out <- Reduction{Kind: KindFileLine, Key: key, Part: synthetic, Source: FromIndex, Values: ct.Values}
		return nil
	}
	return nil
}

func (c *Consumer) emitFileParts(key string, ct *container.Container, out chan<- Reduction) error {
	for _, p := range ct.Parts() {
		batches, err := container.ReadPartLines(c.index.Root(), ct.EncodedKey, p)
		if err != nil {
			return fmt.Errorf("%w: temp directory modified while running: %s", kverrors.ErrIO, err)
		}
		out <- Reduction{Kind: KindFileLineInit, Key: key, Part: p, Lines: len(batches)}
		for _, values := range batches {
			out <- Reduction{Kind: KindFileLine, Key: key, Part: p, Source: FromFile, Values: values}
		}
	}
	return nil
}
