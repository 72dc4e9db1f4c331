// Package worker runs independent fetches on a fixed number of goroutines
// fed by a bounded queue. Results keep submission order.
package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned for work refused or skipped after the pool stopped.
var ErrStopped = errors.New("worker pool stopped")

const (
	DefaultWorkers = 4
	DefaultQueue   = 64
)

// Task is one unit of work.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the slot of one submitted task.
type Result[T any] struct {
	Value T
	Err   error
}

type Options struct {
	Workers int
	Queue   int
	// Fatal decides whether an error stops the pool. Nil treats every
	// error as fatal.
	Fatal func(error) bool
}

type job[T any] struct {
	idx int
	fn  Task[T]
}

// Pool is a fixed-size pool. Submit and Wait must be called from a single
// goroutine.
type Pool[T any] struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	jobs   chan job[T]
	fatal  func(error) bool
	wg     sync.WaitGroup

	mu      sync.Mutex
	results []Result[T]
	cause   error

	closeOnce sync.Once
}

func New[T any](ctx context.Context, o Options) *Pool[T] {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Queue <= 0 {
		o.Queue = DefaultQueue
	}
	if o.Fatal == nil {
		o.Fatal = func(error) bool { return true }
	}
	ctx, cancel := context.WithCancelCause(ctx)
	p := &Pool[T]{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job[T], o.Queue),
		fatal:  o.Fatal,
	}
	p.wg.Add(o.Workers)
	for range o.Workers {
		go p.run()
	}
	return p
}

func (p *Pool[T]) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		if err := p.ctx.Err(); err != nil {
			p.set(j.idx, Result[T]{Err: p.stopErr()})
			continue
		}
		v, err := j.fn(p.ctx)
		p.set(j.idx, Result[T]{Value: v, Err: err})
		if err != nil && p.fatal(err) {
			p.stop(err)
		}
	}
}

func (p *Pool[T]) set(idx int, r Result[T]) {
	p.mu.Lock()
	p.results[idx] = r
	p.mu.Unlock()
}

func (p *Pool[T]) stop(err error) {
	p.mu.Lock()
	if p.cause == nil {
		p.cause = err
	}
	p.mu.Unlock()
	p.cancel(err)
}

func (p *Pool[T]) stopErr() error {
	return errors.Join(ErrStopped, context.Cause(p.ctx))
}

// Submit queues fn, blocking while the queue is full. It fails with
// ErrStopped once a fatal error occurred or the parent context ended.
func (p *Pool[T]) Submit(fn Task[T]) error {
	if p.ctx.Err() != nil {
		return p.stopErr()
	}
	p.mu.Lock()
	idx := len(p.results)
	p.results = append(p.results, Result[T]{})
	p.mu.Unlock()

	select {
	case p.jobs <- job[T]{idx: idx, fn: fn}:
		return nil
	case <-p.ctx.Done():
		err := p.stopErr()
		p.set(idx, Result[T]{Err: err})
		return err
	}
}

// Wait closes the queue, joins all workers and returns the results in
// submission order together with the first fatal error, if any.
func (p *Pool[T]) Wait() ([]Result[T], error) {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
	parent := context.Cause(p.ctx)
	p.cancel(nil)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cause == nil && parent != nil {
		return p.results, parent
	}
	return p.results, p.cause
}

// Map runs fn over items on a new pool and returns the values in item
// order. The first fatal error is returned together with the partial
// results.
func Map[I, T any](ctx context.Context, o Options, items []I, fn func(context.Context, I) (T, error)) ([]Result[T], error) {
	p := New[T](ctx, o)
	for _, it := range items {
		if err := p.Submit(func(ctx context.Context) (T, error) { return fn(ctx, it) }); err != nil {
			break
		}
	}
	return p.Wait()
}
