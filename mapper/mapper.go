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

// Package mapper reads the input stream, chunks it into fixed-size
// tasks, and drives them through the worker pool, sending every map
// task's output to the indexer's inbound channel.
package mapper

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kvreduce/kvreduce/kverrors"
	"github.com/kvreduce/kvreduce/pool"
	"github.com/kvreduce/kvreduce/script"
	"github.com/kvreduce/kvreduce/store"
)

// Config carries the tuning knobs the mapper needs, already validated
// and scaled to bytes by the caller.
type Config struct {
	ReadBufferSize int
}

// Mapper reads lines from an input stream and submits map tasks to the
// shared worker pool.
type Mapper struct {
	pool    *pool.Pool
	guard   *store.IndexGuard
	cfg     Config
	logf    func(string, ...interface{})
	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// New builds a Mapper that submits its tasks to workers, waiting on
// guard before each submission.
func New(workers *pool.Pool, guard *store.IndexGuard, cfg Config, logf func(string, ...interface{})) *Mapper {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Mapper{pool: workers, guard: guard, cfg: cfg, logf: logf}
}

// Run reads r line by line, accumulating into a chunk until it reaches
// ReadBufferSize bytes, then submits one map task per chunk (plus a
// final task for any trailing partial chunk at EOF). Every successful
// task sends its MapResult batch to outbound; a failed task sends
// nothing and records its error. Run closes outbound once every
// submitted task has completed. It returns the first error any map
// task produced.
func (m *Mapper) Run(r io.Reader, outbound chan<- []script.MapResult) error {
	defer close(outbound)

	reader := bufio.NewReader(r)
	var chunk strings.Builder
	lineNumber := 0

	submit := func(endingLine int, text string) {
		m.guard.WaitWhileIndexing()
		m.wg.Add(1)
		m.pool.Execute(func(ctx interface{}) error {
			defer m.wg.Done()
			sc, ok := ctx.(*script.Context)
			if !ok {
				err := fmt.Errorf("%w: mapper worker has no scripting context", kverrors.ErrUserCode)
				m.fail(err)
				return err
			}
			results, err := sc.RunMap(endingLine, text)
			if err != nil {
				m.fail(err)
				return err
			}
			outbound <- results
			return nil
		})
	}

	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			lineNumber++
			chunk.WriteString(line)
			if chunk.Len() >= m.cfg.ReadBufferSize {
				text := chunk.String()
				chunk.Reset()
				submit(lineNumber, text)
			}
		}
		if readErr == io.EOF {
			if chunk.Len() > 0 {
				submit(lineNumber, chunk.String())
			}
			break
		}
		if readErr != nil {
			m.fail(fmt.Errorf("%w: reading input: %s", kverrors.ErrIO, readErr))
			break
		}
	}

	m.wg.Wait()
	m.logf("mapper: read %d lines", lineNumber)
	return m.err
}

func (m *Mapper) fail(err error) {
	m.errOnce.Do(func() { m.err = err })
}
