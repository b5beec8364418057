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
	"sync"

	"github.com/kvreduce/kvreduce/kverrors"
	"github.com/kvreduce/kvreduce/pool"
	"github.com/kvreduce/kvreduce/script"
	"github.com/kvreduce/kvreduce/store"
)

// Reducer drives the hierarchical line -> part -> key reduce over a
// Reduction stream, dispatching one pool task per FileLine message and
// writing each key's final value into the ResultTable as soon as its
// last part completes.
type Reducer struct {
	pool    *pool.Pool
	results *store.ResultTable
	tr      *tracker

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewReducer builds a Reducer that submits reduce tasks to workers and
// writes finished keys into results.
func NewReducer(workers *pool.Pool, results *store.ResultTable) *Reducer {
	return &Reducer{pool: workers, results: results, tr: newTracker()}
}

// Run drains in until it is closed, dispatching FileLine messages to
// the pool and applying KeyInit/FilePartInit/FileLineInit directly
// against the tracker. It waits for every dispatched task to finish
// before returning the first error any of them produced.
func (r *Reducer) Run(in <-chan Reduction) error {
	for msg := range in {
		switch msg.Kind {
		case KindKeyInit:
			r.tr.initKey(msg.Key, msg.TotalParts)
		case KindFilePartInit:
			r.tr.initParts(msg.Key)
		case KindFileLineInit:
			r.tr.initPart(msg.Key, msg.Part, msg.Lines)
		case KindFileLine:
			msg := msg
			r.wg.Add(1)
			r.pool.Execute(func(ctx interface{}) error {
				defer r.wg.Done()
				return r.reduceLine(ctx, msg)
			})
		}
	}
	r.wg.Wait()
	return r.err
}

func (r *Reducer) reduceLine(ctx interface{}, msg Reduction) error {
	sc, ok := ctx.(*script.Context)
	if !ok {
		err := fmt.Errorf("%w: reducer worker has no scripting context", kverrors.ErrUserCode)
		r.fail(err)
		return err
	}

	r1, err := sc.RunReduce(msg.Key, msg.Values, false)
	if err != nil {
		r.fail(err)
		return err
	}

	v2, partDone := r.tr.recordLine(msg.Key, msg.Part, r1)
	if !partDone {
		return nil
	}

	r2, err := sc.RunReduce(msg.Key, v2, true)
	if err != nil {
		r.fail(err)
		return err
	}

	partResults, keyDone := r.tr.recordPart(msg.Key, r2)
	if !keyDone {
		return nil
	}

	r3, err := sc.RunReduce(msg.Key, partResults, true)
	if err != nil {
		r.fail(err)
		return err
	}

	if err := r.results.Add([]byte(msg.Key), r3); err != nil {
		r.fail(err)
		return err
	}
	return nil
}

func (r *Reducer) fail(err error) {
	r.errOnce.Do(func() { r.err = err })
}
