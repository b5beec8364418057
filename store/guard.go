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

import "sync"

// IndexGuard is a binary gate the mapper waits on before submitting
// new map tasks, so that steady-state memory is bounded by pausing
// new work while the indexer is mid-flush. It only blocks submission;
// map tasks already running are unaffected.
type IndexGuard struct {
	mu       sync.Mutex
	cond     *sync.Cond
	indexing bool
}

// NewIndexGuard returns a guard in the "not indexing" state.
func NewIndexGuard() *IndexGuard {
	g := &IndexGuard{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// StartIndexing marks the guard as indexing and wakes any waiters so
// they can observe the new state (they will simply re-block).
func (g *IndexGuard) StartIndexing() {
	g.mu.Lock()
	g.indexing = true
	g.mu.Unlock()
	g.cond.Broadcast()
}

// FinishIndexing clears the indexing state and releases every waiter.
func (g *IndexGuard) FinishIndexing() {
	g.mu.Lock()
	g.indexing = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

// WaitWhileIndexing blocks the caller for as long as the guard is in
// the indexing state.
func (g *IndexGuard) WaitWhileIndexing() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.indexing {
		g.cond.Wait()
	}
}
