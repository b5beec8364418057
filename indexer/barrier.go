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

package indexer

import "sync"

// barrier gives each indexing cycle a fresh rendezvous point of a
// known arity: one party per dispatched merge task, plus the indexer
// coordinator itself. The cycle is over once every party has arrived.
type barrier struct {
	wg sync.WaitGroup
}

func newBarrier(parties int) *barrier {
	b := &barrier{}
	b.wg.Add(parties)
	return b
}

func (b *barrier) arrive() {
	b.wg.Done()
}

func (b *barrier) wait() {
	b.wg.Wait()
}
