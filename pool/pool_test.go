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

package pool

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestJoinWaitsForAllTasks(t *testing.T) {
	p := New(4, nil)
	defer p.Close()

	var n int64
	for i := 0; i < 100; i++ {
		p.Execute(func(interface{}) error {
			atomic.AddInt64(&n, 1)
			return nil
		})
	}
	p.Join()
	if got := atomic.LoadInt64(&n); got != 100 {
		t.Fatalf("expected 100 completed tasks, got %d", got)
	}
}

func TestErrRecordsFirstFailure(t *testing.T) {
	p := New(2, nil)
	defer p.Close()

	boom := errors.New("boom")
	p.Execute(func(interface{}) error { return boom })
	p.Join()
	if p.Err() != boom {
		t.Fatalf("expected recorded error, got %v", p.Err())
	}
}

func TestPerWorkerContextIsReusedWithinAWorker(t *testing.T) {
	var built int64
	newCtx := func() (interface{}, error) {
		return atomic.AddInt64(&built, 1), nil
	}
	p := New(1, newCtx)
	defer p.Close()

	seen := make([]int64, 5)
	for i := 0; i < 5; i++ {
		i := i
		p.Execute(func(ctx interface{}) error {
			seen[i] = ctx.(int64)
			return nil
		})
	}
	p.Join()
	for _, v := range seen {
		if v != 1 {
			t.Fatalf("expected single-worker context to be reused, saw id %d in %v", v, seen)
		}
	}
}
