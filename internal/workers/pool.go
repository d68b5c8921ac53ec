// Package workers runs batches of independent tasks over a fixed set of
// goroutines. Every task is handed the identity of the worker slot running
// it, so callers can key reusable per-slot state without touching thread
// identity.
package workers

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Task is one unit of batch work. The slot argument is in [0, Size).
type Task func(slot int) error

type job struct {
	fn  Task
	run *runState
}

type task struct {
	fn     Task
	weight int64
}

// runState tracks one Run call: its barrier and the first error produced.
type runState struct {
	wg  sync.WaitGroup
	mu  sync.Mutex
	err error
}

func (r *runState) fail(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// Pool is a fixed-size worker pool executing one batch of tasks at a time.
// Tasks are collected with Submit and dispatched by Run in descending
// weight order, so the heaviest work starts first. Submit and Run must be
// called from a single goroutine.
type Pool struct {
	size    int
	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.Mutex
	pending []task
	closed  bool
}

// NewPool starts size worker goroutines. Sizes below one are clamped.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size: size,
		jobs: make(chan job),
	}
	for slot := range size {
		p.wg.Go(func() {
			p.worker(slot)
		})
	}
	return p
}

// Size returns the number of worker slots.
func (p *Pool) Size() int { return p.size }

// Submit queues one task for the next Run. The weight only informs dispatch
// order; heavier tasks are handed to workers first.
func (p *Pool) Submit(weight int64, fn Task) {
	p.pending = append(p.pending, task{fn: fn, weight: weight})
}

// Run dispatches every submitted task and blocks until all of them have
// completed. The first task error is returned; later tasks still run to
// completion, there is no cancellation inside a batch.
func (p *Pool) Run() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("pool is closed")
	}
	if len(p.pending) == 0 {
		return nil
	}

	slices.SortStableFunc(p.pending, func(a, b task) int {
		return cmp.Compare(b.weight, a.weight)
	})

	run := &runState{}
	run.wg.Add(len(p.pending))
	for _, t := range p.pending {
		p.jobs <- job{fn: t.fn, run: run}
	}
	p.pending = p.pending[:0]

	run.wg.Wait()
	return run.err
}

// Close stops the workers after the current batch and waits for them to
// exit. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) worker(slot int) {
	for j := range p.jobs {
		p.execute(slot, j)
	}
}

// execute runs one task, converting panics into batch errors so Run can
// never hang on its barrier.
func (p *Pool) execute(slot int, j job) {
	defer j.run.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			j.run.fail(fmt.Errorf("panic in worker task: %v", r))
		}
	}()
	if err := j.fn(slot); err != nil {
		j.run.fail(err)
	}
}
