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

// Package script embeds the user-supplied map/reduce pair in a
// JavaScript runtime (github.com/dop251/goja) and exposes exactly the
// operations the core pipeline invokes on it: validate, run_map, and
// run_reduce. The runtime is not safe for concurrent use from more
// than one goroutine at a time, so callers must obtain one Context per
// worker (see package pool's per-worker affine context) and never
// share a Context across goroutines.
package script

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/kvreduce/kvreduce/kverrors"
)

// MapResult is the (key, value) pair produced by one emit() call from
// user code.
type MapResult struct {
	Key   string
	Value string
}

// Program holds the compiled user code, ready to be instantiated into
// any number of per-worker Contexts.
type Program struct {
	src  string
	name string
	prog *goja.Program
}

// Load reads and compiles the user code file at path.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading user code %s: %s", kverrors.ErrValidation, path, err)
	}
	prog, err := goja.Compile(path, string(data), true)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling user code %s: %s", kverrors.ErrValidation, path, err)
	}
	return &Program{src: string(data), name: path, prog: prog}, nil
}

// Validate fails unless both map and reduce are defined as callable
// functions.
func (p *Program) Validate() error {
	ctx, err := p.NewContext()
	if err != nil {
		return err
	}
	if ctx.mapFn == nil {
		return fmt.Errorf("%w: user code %s does not define map()", kverrors.ErrValidation, p.name)
	}
	if ctx.reduceFn == nil {
		return fmt.Errorf("%w: user code %s does not define reduce()", kverrors.ErrValidation, p.name)
	}
	return nil
}

// Context is one worker's private instantiation of the user code: its
// own goja.Runtime, its own bound map/reduce callables, and the emit
// collector for the map call currently in flight on this worker.
type Context struct {
	vm        *goja.Runtime
	mapFn     goja.Callable
	reduceFn  goja.Callable
	collector *[]MapResult
}

// NewContext builds a fresh, independent VM with the user code
// evaluated into it. Building one of these is the "thread-affine
// context" a pool worker creates lazily on first use and keeps for its
// lifetime.
func (p *Program) NewContext() (*Context, error) {
	vm := goja.New()
	c := &Context{vm: vm}

	if err := vm.Set("emit", func(k, v goja.Value) {
		if c.collector == nil {
			return
		}
		*c.collector = append(*c.collector, MapResult{
			Key:   stringify(k),
			Value: stringify(v),
		})
	}); err != nil {
		return nil, fmt.Errorf("%w: binding emit: %s", kverrors.ErrUserCode, err)
	}

	if _, err := vm.RunProgram(p.prog); err != nil {
		return nil, fmt.Errorf("%w: evaluating user code %s: %s", kverrors.ErrUserCode, p.name, err)
	}

	if fn, ok := goja.AssertFunction(vm.Get("map")); ok {
		c.mapFn = fn
	}
	if fn, ok := goja.AssertFunction(vm.Get("reduce")); ok {
		c.reduceFn = fn
	}
	return c, nil
}

// stringify canonicalizes a value returned to Go from user code: a
// native JS string is used as-is, undefined and null become the empty
// string, and anything else is coerced to its JSON form.
func stringify(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	if s, ok := v.Export().(string); ok {
		return s
	}
	data, err := json.Marshal(v.Export())
	if err != nil {
		return v.String()
	}
	return string(data)
}

// RunMap splits chunk on '\n' and calls map(str(lineNumber), line) once
// per non-empty line, where lineNumber for the line ending the chunk is
// lastLineNumber and earlier lines in the chunk count down from there
// (empty lines are skipped but still count toward the numbering). It
// returns every MapResult produced by emit() across the whole chunk, in
// emission order.
func (c *Context) RunMap(lastLineNumber int, chunk string) ([]MapResult, error) {
	if c.mapFn == nil {
		return nil, fmt.Errorf("%w: map() is not defined", kverrors.ErrValidation)
	}

	lines := strings.Split(chunk, "\n")
	if strings.HasSuffix(chunk, "\n") {
		lines = lines[:len(lines)-1]
	}
	firstLineNumber := lastLineNumber - len(lines) + 1

	var collected []MapResult
	c.collector = &collected
	defer func() { c.collector = nil }()

	for i, line := range lines {
		if line == "" {
			continue
		}
		lineNumber := firstLineNumber + i
		_, err := c.mapFn(goja.Undefined(), c.vm.ToValue(strconv.Itoa(lineNumber)), c.vm.ToValue(line))
		if err != nil {
			return nil, fmt.Errorf("%w: map(%d, ...): %s", kverrors.ErrUserCode, lineNumber, err)
		}
	}
	return collected, nil
}

// RunReduce calls reduce(key, values, rereduce) and stringifies a
// non-string return the same way emitted values are stringified.
// values reach user code as JS strings, so on rereduce a structured
// value returned by an earlier reduce arrives as its JSON text.
func (c *Context) RunReduce(key string, values []string, rereduce bool) (string, error) {
	if c.reduceFn == nil {
		return "", fmt.Errorf("%w: reduce() is not defined", kverrors.ErrValidation)
	}
	jsValues := make([]interface{}, len(values))
	for i, v := range values {
		jsValues[i] = v
	}
	ret, err := c.reduceFn(goja.Undefined(), c.vm.ToValue(key), c.vm.ToValue(jsValues), c.vm.ToValue(rereduce))
	if err != nil {
		return "", fmt.Errorf("%w: reduce(%q, ..., rereduce=%v): %s", kverrors.ErrUserCode, key, rereduce, err)
	}
	return stringify(ret), nil
}
