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

// Package pool implements the shared worker pool consumed by the
// mapper, the indexer's merge tasks, and the reducer. Workers pull
// tasks from a queue guarded by a condition variable, taking the most
// recently submitted task first; a task that needs to call
// into the embedded scripting runtime is handed a per-worker context
// that is built lazily on first use and reused for the life of the
// worker goroutine, since the runtime is not safe to share across
// concurrently-running goroutines.
package pool

import "sync"

// Task is a unit of work submitted to the pool. ctx is the calling
// worker's affine context (nil if the pool was built without a
// NewContext factory).
type Task func(ctx interface{}) error

// Pool is a fixed-size worker pool with no priority and no
// cancellation: an idle worker takes the most recently submitted
// pending task (LIFO), and Join blocks until every task submitted so
// far has completed.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	tasks    []Task
	closed   bool
	wg       sync.WaitGroup
	newCtx   func() (interface{}, error)
	errOnce  sync.Once
	firstErr error
}

// New starts workers goroutines, each building its scripting context
// lazily via newCtx on first use (newCtx may be nil if no task needs
// one).
func New(workers int, newCtx func() (interface{}, error)) *Pool {
	p := &Pool{newCtx: newCtx}
	p.cond = sync.NewCond(&p.mu)

	var started sync.WaitGroup
	started.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(&started)
	}
	started.Wait()
	return p
}

func (p *Pool) worker(started *sync.WaitGroup) {
	started.Done()
	var ctx interface{}

	for {
		p.mu.Lock()
		for !p.closed && len(p.tasks) == 0 {
			p.cond.Wait()
		}
		if p.closed && len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		n := len(p.tasks)
		task := p.tasks[n-1]
		p.tasks = p.tasks[:n-1]
		p.mu.Unlock()

		if ctx == nil && p.newCtx != nil {
			c, err := p.newCtx()
			if err != nil {
				p.fail(err)
				p.wg.Done()
				continue
			}
			ctx = c
		}
		if err := task(ctx); err != nil {
			p.fail(err)
		}
		p.wg.Done()
	}
}

// Execute submits a task. It does not block on worker availability:
// the task is appended to the queue and a worker is woken to pick it
// up. Submission backpressure (per the design's mapper suspension
// point) is applied by callers choosing not to submit faster than the
// pool retires work, not by Execute itself blocking.
func (p *Pool) Execute(t Task) {
	p.wg.Add(1)
	p.mu.Lock()
	p.tasks = append(p.tasks, t)
	p.cond.Signal()
	p.mu.Unlock()
}

// Join blocks until every task submitted so far has completed.
func (p *Pool) Join() {
	p.wg.Wait()
}

// Close stops accepting new work and lets idle workers exit once the
// queue drains. It does not wait for in-flight tasks; call Join first.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Pool) fail(err error) {
	p.errOnce.Do(func() { p.firstErr = err })
}

// Err returns the first error returned by any task, or nil.
func (p *Pool) Err() error {
	return p.firstErr
}
