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

package engine

import (
	"io"

	"github.com/kvreduce/kvreduce/indexer"
	"github.com/kvreduce/kvreduce/kverrors"
	"github.com/kvreduce/kvreduce/mapper"
	"github.com/kvreduce/kvreduce/pool"
	"github.com/kvreduce/kvreduce/reduce"
	"github.com/kvreduce/kvreduce/script"
	"github.com/kvreduce/kvreduce/store"
)

// Run validates cfg, loads the user code, and drives the full
// map -> index -> consume -> reduce pipeline against r, writing
// results into the ResultTable it returns. The working directory
// cfg.Root is created when the index is opened, after validation;
// callers are responsible for removing or retaining it after Run.
func Run(r io.Reader, cfg Config) (*store.ResultTable, error) {
	if err := cfg.Validate(); err != nil {
		return nil, kverrors.Stage("validate", err)
	}

	program, err := script.Load(cfg.Code)
	if err != nil {
		return nil, kverrors.Stage("validate", err)
	}
	if err := program.Validate(); err != nil {
		return nil, kverrors.Stage("validate", err)
	}

	ix, err := store.OpenIndex(cfg.Root)
	if err != nil {
		return nil, kverrors.Stage("index", err)
	}
	defer ix.Close()

	rt, err := store.OpenResultTable(cfg.Root)
	if err != nil {
		return nil, kverrors.Stage("index", err)
	}
	// Closed on every error path below; the caller owns rt.Close() once
	// Run returns it successfully.
	closeRT := true
	defer func() {
		if closeRT {
			rt.Close()
		}
	}()

	workers := pool.New(cfg.Workers, func() (interface{}, error) { return program.NewContext() })
	defer workers.Close()

	guard := store.NewIndexGuard()

	// Effectively unbounded, per the design: large enough that the
	// IndexGuard, not channel capacity, is what throttles the mapper.
	inboundCap := cfg.Workers*cfg.IndexEvery*2 + 16
	inbound := make(chan []script.MapResult, inboundCap)

	m := mapper.New(workers, guard, mapper.Config{ReadBufferSize: cfg.ReadBufferSize}, cfg.Logf)
	idx := indexer.New(ix, guard, workers, indexer.Config{
		Partitions:  cfg.Workers,
		IndexEvery:  cfg.IndexEvery,
		FlushSize:   cfg.KeyFlushSize,
		MaxPartSize: cfg.MaxFilePartSize,
	}, cfg.Logf)

	mapErrCh := make(chan error, 1)
	indexErrCh := make(chan error, 1)
	go func() { mapErrCh <- m.Run(r, inbound) }()
	go func() { indexErrCh <- idx.Run(inbound) }()

	mapErr := <-mapErrCh
	indexErr := <-indexErrCh
	if mapErr != nil {
		return nil, kverrors.Stage("map", mapErr)
	}
	if indexErr != nil {
		return nil, kverrors.Stage("index", indexErr)
	}

	// Bounded (capacity = workers) per the design, to apply
	// backpressure onto the consumer when reduction lags.
	reductions := make(chan reduce.Reduction, cfg.Workers)
	consumer := reduce.NewConsumer(ix)
	reducer := reduce.NewReducer(workers, rt)

	consumeErrCh := make(chan error, 1)
	reduceErrCh := make(chan error, 1)
	go func() { consumeErrCh <- consumer.Run(reductions) }()
	go func() { reduceErrCh <- reducer.Run(reductions) }()

	consumeErr := <-consumeErrCh
	reduceErr := <-reduceErrCh
	if consumeErr != nil {
		return nil, kverrors.Stage("consume", consumeErr)
	}
	if reduceErr != nil {
		return nil, kverrors.Stage("reduce", reduceErr)
	}

	closeRT = false
	return rt, nil
}
