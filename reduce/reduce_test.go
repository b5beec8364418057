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
	"os"
	"path/filepath"
	"testing"

	"github.com/kvreduce/kvreduce/combine"
	"github.com/kvreduce/kvreduce/pool"
	"github.com/kvreduce/kvreduce/script"
	"github.com/kvreduce/kvreduce/store"
)

const sumProgram = `
function map(key, value) { emit(key, value); }
function reduce(key, values, rereduce) {
	var total = 0;
	for (var i = 0; i < values.length; i++) total += parseInt(values[i], 10);
	return String(total);
}
`

func loadSumProgram(t *testing.T) *script.Program {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "program.js")
	if err := os.WriteFile(path, []byte(sumProgram), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := script.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func toResults(key string, values ...string) []script.MapResult {
	out := make([]script.MapResult, len(values))
	for i, v := range values {
		out[i] = script.MapResult{Key: key, Value: v}
	}
	return out
}

func runPipeline(t *testing.T, ix *store.Index, rt *store.ResultTable, workers *pool.Pool) {
	t.Helper()
	reductions := make(chan Reduction, 4)
	errs := make(chan error, 2)

	go func() {
		errs <- NewConsumer(ix).Run(reductions)
	}()
	go func() {
		errs <- NewReducer(workers, rt).Run(reductions)
	}()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
}

func getResult(t *testing.T, rt *store.ResultTable, key string) string {
	t.Helper()
	var got string
	found := false
	err := rt.Iter(store.Asc, func(k []byte, v string) error {
		if string(k) == key {
			got = v
			found = true
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatalf("expected result for key %q", key)
	}
	return got
}

func TestReduceIndexOnlyKey(t *testing.T) {
	root := t.TempDir()
	ix, err := store.OpenIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()
	rt, err := store.OpenResultTable(root)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	c := combine.New(1)
	c.Combine(toResults("the", "1", "1", "1"))
	if err := ix.Merge(c.Buckets()[0], 64*1024, 2048*1024); err != nil {
		t.Fatal(err)
	}

	program := loadSumProgram(t)
	workers := pool.New(2, func() (interface{}, error) { return program.NewContext() })
	defer workers.Close()

	runPipeline(t, ix, rt, workers)

	if got := getResult(t, rt, "the"); got != "3" {
		t.Fatalf("expected 3, got %q", got)
	}
}

func TestReduceSpillsAcrossPartsThenRereduces(t *testing.T) {
	root := t.TempDir()
	ix, err := store.OpenIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()
	rt, err := store.OpenResultTable(root)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	// Tiny flush/part thresholds force several flushes across several
	// merge cycles, producing a FileOnly or IndexAndFile container with
	// more than one part.
	for i := 0; i < 50; i++ {
		c := combine.New(1)
		c.Combine(toResults("k", "1"))
		if err := ix.Merge(c.Buckets()[0], 4, 16); err != nil {
			t.Fatal(err)
		}
	}

	got, ok, err := ix.Get([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("expected key present, ok=%v err=%v", ok, err)
	}
	if got.TotalParts < 2 {
		t.Fatalf("expected at least 2 parts from repeated small flushes, got %d", got.TotalParts)
	}

	program := loadSumProgram(t)
	workers := pool.New(2, func() (interface{}, error) { return program.NewContext() })
	defer workers.Close()

	runPipeline(t, ix, rt, workers)

	if got := getResult(t, rt, "k"); got != "50" {
		t.Fatalf("expected 50, got %q", got)
	}
}

func TestConsumerFailsOnMissingPartFile(t *testing.T) {
	root := t.TempDir()
	ix, err := store.OpenIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()

	c := combine.New(1)
	c.Combine(toResults("k", "1"))
	if err := ix.Merge(c.Buckets()[0], 1, 1024); err != nil {
		t.Fatal(err)
	}
	got, ok, err := ix.Get([]byte("k"))
	if err != nil || !ok {
		t.Fatal("expected key present")
	}
	if got.TotalParts == 0 {
		t.Fatal("expected the tiny flush threshold to force a part file")
	}
	path, err := got.PartFilePath(root, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	reductions := make(chan Reduction, 4)
	go func() {
		for range reductions {
		}
	}()
	err = NewConsumer(ix).Run(reductions)
	if err == nil {
		t.Fatal("expected an error for the missing part file")
	}
}
