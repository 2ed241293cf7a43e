// Package workerpool runs blocking calls (PDF parsing, transcript fetches) on
// a fixed set of goroutines so request handlers only ever wait on a future.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/markdave123-py/studyvault/internal/logger"
)

var ErrPoolClosed = errors.New("worker pool closed")

type job struct {
	ctx context.Context
	run func(ctx context.Context)
}

// Pool is a bounded worker pool with a bounded job queue.
type Pool struct {
	log  *logger.Logger
	jobs chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New constructs the pool and starts numWorkers goroutines reading from a
// queue of queueSize jobs.
func New(log *logger.Logger, numWorkers, queueSize int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < numWorkers {
		queueSize = numWorkers
	}
	p := &Pool{
		log:  log.With("service", "WorkerPool"),
		jobs: make(chan job, queueSize),
	}
	for w := 1; w <= numWorkers; w++ {
		p.wg.Add(1)
		go p.worker(w)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.log.Debug("running job", "worker", id)
		j.run(j.ctx)
	}
}

// Close stops accepting work and waits for queued jobs to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) enqueue(ctx context.Context, j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Future holds the eventual result of a submitted job.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Await blocks until the job finishes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn on the pool. A panic inside fn is returned as an error.
// Jobs whose context is already done when a worker picks them up are not run.
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	j := job{
		ctx: ctx,
		run: func(ctx context.Context) {
			defer close(f.done)
			if err := ctx.Err(); err != nil {
				f.err = err
				return
			}
			defer func() {
				if r := recover(); r != nil {
					f.err = fmt.Errorf("worker panic: %v", r)
				}
			}()
			f.val, f.err = fn(ctx)
		},
	}
	if err := p.enqueue(ctx, j); err != nil {
		f.err = err
		close(f.done)
	}
	return f
}

// Do submits fn and waits for it.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	return Submit(ctx, p, fn).Await(ctx)
}
