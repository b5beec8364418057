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
	"sync"

	"golang.org/x/exp/maps"
)

type keyState struct {
	remainingParts int
	partResults    []string
}

type partState struct {
	remainingLines int
	lineResults    []string
}

// tracker is the reducer's bookkeeping for in-flight keys: one
// coarse mutex guarding both the per-key and per-part maps, since
// entries are short-lived and the traffic is dominated by the pool
// workers' task bodies rather than by tracker access itself.
type tracker struct {
	mu    sync.Mutex
	keys  map[string]*keyState
	parts map[string]map[int]*partState
}

func newTracker() *tracker {
	return &tracker{
		keys:  make(map[string]*keyState),
		parts: make(map[string]map[int]*partState),
	}
}

func (t *tracker) initKey(key string, totalParts int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys[key] = &keyState{remainingParts: totalParts}
}

func (t *tracker) initParts(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parts[key] = make(map[int]*partState)
}

func (t *tracker) initPart(key string, part, lines int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parts[key][part] = &partState{remainingLines: lines}
}

// recordLine appends r1 to part's line results and decrements its
// remaining count. Once it reaches zero, it returns the concatenation
// of every part currently present for key (order unspecified, per the
// design's rereduce contract) and partDone=true.
func (t *tracker) recordLine(key string, part int, r1 string) (v2 []string, partDone bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.parts[key][part]
	p.lineResults = append(p.lineResults, r1)
	p.remainingLines--
	if p.remainingLines > 0 {
		return nil, false
	}

	for _, ps := range maps.Values(t.parts[key]) {
		v2 = append(v2, ps.lineResults...)
	}
	return v2, true
}

// recordPart appends r2 to the key's part results and decrements its
// remaining count. Once it reaches zero, both the key and part entries
// are removed atomically and the final part results are returned with
// keyDone=true.
func (t *tracker) recordPart(key string, r2 string) (partResults []string, keyDone bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := t.keys[key]
	k.partResults = append(k.partResults, r2)
	k.remainingParts--
	if k.remainingParts > 0 {
		return nil, false
	}

	partResults = k.partResults
	delete(t.keys, key)
	delete(t.parts, key)
	return partResults, true
}
