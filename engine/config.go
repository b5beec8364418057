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

// Package engine wires the pipeline stages (script, store, combine,
// indexer, mapper, reduce, pool) into the end-to-end run described by
// the design: map the input, index the combined output, then consume
// and reduce the finalized index into a sorted result table.
package engine

import (
	"fmt"

	"github.com/kvreduce/kvreduce/kverrors"
	"github.com/kvreduce/kvreduce/store"
)

// Config carries every option the core pipeline needs, already
// resolved to absolute byte sizes and a working-directory path (Run
// creates the directory when it opens the index); the CLI layer owns
// parsing, KiB scaling, and choosing and removing that directory.
type Config struct {
	Code            string
	Root            string
	ReadBufferSize  int
	KeyFlushSize    int
	MaxFilePartSize int
	IndexEvery      int
	Workers         int
	Order           store.Order
	Logf            func(string, ...interface{})
}

// Validate rejects zero-valued size/count options and missing paths,
// per §6's "zero values fail validation."
func (c Config) Validate() error {
	switch {
	case c.Code == "":
		return fmt.Errorf("%w: code path is required", kverrors.ErrValidation)
	case c.Root == "":
		return fmt.Errorf("%w: working directory root is required", kverrors.ErrValidation)
	case c.ReadBufferSize <= 0:
		return fmt.Errorf("%w: read-buffer-size must be > 0", kverrors.ErrValidation)
	case c.KeyFlushSize <= 0:
		return fmt.Errorf("%w: key-flush-size must be > 0", kverrors.ErrValidation)
	case c.MaxFilePartSize <= 0:
		return fmt.Errorf("%w: max-file-part-size must be > 0", kverrors.ErrValidation)
	case c.IndexEvery <= 0:
		return fmt.Errorf("%w: index-every must be > 0", kverrors.ErrValidation)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0", kverrors.ErrValidation)
	}
	return nil
}
