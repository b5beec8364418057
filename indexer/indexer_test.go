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

import (
	"testing"

	"github.com/kvreduce/kvreduce/pool"
	"github.com/kvreduce/kvreduce/script"
	"github.com/kvreduce/kvreduce/store"
)

func TestRunFlushesOnIndexEveryAndAtClose(t *testing.T) {
	root := t.TempDir()
	ix, err := store.OpenIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()

	guard := store.NewIndexGuard()
	workers := pool.New(4, nil)
	defer workers.Close()

	idx := New(ix, guard, workers, Config{
		Partitions:  4,
		IndexEvery:  2,
		FlushSize:   64 * 1024,
		MaxPartSize: 2048 * 1024,
	}, nil)

	inbound := make(chan []script.MapResult, 8)
	inbound <- []script.MapResult{{Key: "k", Value: "v1"}}
	inbound <- []script.MapResult{{Key: "k", Value: "v2"}} // triggers a flush cycle
	inbound <- []script.MapResult{{Key: "k", Value: "v3"}} // left for final flush
	close(inbound)

	if err := idx.Run(inbound); err != nil {
		t.Fatal(err)
	}
	if err := workers.Err(); err != nil {
		t.Fatal(err)
	}

	got, ok, err := ix.Get([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("expected key present after run, ok=%v err=%v", ok, err)
	}
	if len(got.Values) != 3 {
		t.Fatalf("expected all 3 values accounted for, got %v", got.Values)
	}
}

func TestRunReturnsEmptyIndexWhenInboundIsEmpty(t *testing.T) {
	root := t.TempDir()
	ix, err := store.OpenIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()

	guard := store.NewIndexGuard()
	workers := pool.New(2, nil)
	defer workers.Close()

	idx := New(ix, guard, workers, Config{Partitions: 2, IndexEvery: 100, FlushSize: 1024, MaxPartSize: 1024}, nil)

	inbound := make(chan []script.MapResult)
	close(inbound)
	if err := idx.Run(inbound); err != nil {
		t.Fatal(err)
	}
	if ix.TotalKeys() != 0 {
		t.Fatalf("expected 0 keys, got %d", ix.TotalKeys())
	}
}
