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

package mapper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kvreduce/kvreduce/pool"
	"github.com/kvreduce/kvreduce/script"
	"github.com/kvreduce/kvreduce/store"
)

const wordCountProgram = `
function map(key, value) {
	var words = value.split(" ");
	for (var i = 0; i < words.length; i++) {
		if (words[i] !== "") emit(words[i], "1");
	}
}
function reduce(key, values, rereduce) {
	var total = 0;
	for (var i = 0; i < values.length; i++) total += parseInt(values[i], 10);
	return String(total);
}
`

func loadProgram(t *testing.T, src string) *script.Program {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "program.js")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := script.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newPool(t *testing.T, program *script.Program) *pool.Pool {
	t.Helper()
	p := pool.New(2, func() (interface{}, error) { return program.NewContext() })
	t.Cleanup(p.Close)
	return p
}

func drain(ch <-chan []script.MapResult) []script.MapResult {
	var all []script.MapResult
	for batch := range ch {
		all = append(all, batch...)
	}
	return all
}

func TestRunSubmitsOneTaskPerReadBufferChunk(t *testing.T) {
	program := loadProgram(t, wordCountProgram)
	workers := newPool(t, program)
	guard := store.NewIndexGuard()

	m := New(workers, guard, Config{ReadBufferSize: 8}, nil)

	input := strings.NewReader("aa bb\ncc dd\nee ff\n")
	outbound := make(chan []script.MapResult, 16)

	if err := m.Run(input, outbound); err != nil {
		t.Fatal(err)
	}
	if err := workers.Err(); err != nil {
		t.Fatal(err)
	}

	results := drain(outbound)
	got := map[string]int{}
	for _, r := range results {
		got[r.Key]++
	}
	for _, w := range []string{"aa", "bb", "cc", "dd", "ee", "ff"} {
		if got[w] != 1 {
			t.Fatalf("expected word %q emitted once, got %d (all=%v)", w, got[w], results)
		}
	}
}

func TestRunFlushesTrailingPartialChunkAtEOF(t *testing.T) {
	program := loadProgram(t, wordCountProgram)
	workers := newPool(t, program)
	guard := store.NewIndexGuard()

	m := New(workers, guard, Config{ReadBufferSize: 1 << 20}, nil)

	input := strings.NewReader("only one line\n")
	outbound := make(chan []script.MapResult, 16)

	if err := m.Run(input, outbound); err != nil {
		t.Fatal(err)
	}

	results := drain(outbound)
	if len(results) != 3 {
		t.Fatalf("expected 3 emitted words, got %v", results)
	}
}

func TestRunSkipsEmptyLinesButCountsThemForNumbering(t *testing.T) {
	const numberingProgram = `
function map(key, value) { emit(value, key); }
function reduce(key, values, rereduce) { return values[0]; }
`
	program := loadProgram(t, numberingProgram)
	workers := newPool(t, program)
	guard := store.NewIndexGuard()

	m := New(workers, guard, Config{ReadBufferSize: 1 << 20}, nil)

	input := strings.NewReader("\na\n\nb\n")
	outbound := make(chan []script.MapResult, 16)

	if err := m.Run(input, outbound); err != nil {
		t.Fatal(err)
	}

	results := drain(outbound)
	lines := map[string]string{}
	for _, r := range results {
		lines[r.Key] = r.Value
	}
	if lines["a"] != "2" {
		t.Fatalf("expected a to be numbered line 2, got %q", lines["a"])
	}
	if lines["b"] != "4" {
		t.Fatalf("expected b to be numbered line 4, got %q", lines["b"])
	}
}

func TestRunReturnsErrorFromMapTask(t *testing.T) {
	const brokenProgram = `
function map(key, value) { throw new Error("boom"); }
function reduce(key, values, rereduce) { return values[0]; }
`
	program := loadProgram(t, brokenProgram)
	workers := newPool(t, program)
	guard := store.NewIndexGuard()

	m := New(workers, guard, Config{ReadBufferSize: 1 << 20}, nil)

	input := strings.NewReader("line one\n")
	outbound := make(chan []script.MapResult, 16)

	err := m.Run(input, outbound)
	if err == nil {
		t.Fatal("expected an error from the failing map task")
	}
}
