package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrPoolClosed is returned for work submitted after Shutdown.
var ErrPoolClosed = errors.New("async: pool is shut down")

// Pool runs blocking work on a fixed number of goroutines so callers on the
// request path never block an event loop of their own. Results travel back
// over a per-call channel.
type Pool struct {
	name    string
	logger  *slog.Logger
	workers int

	ch   chan job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx     context.Context
	run     func(context.Context)
	abandon func(error)
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan job, n)
		}
	}
}

func NewPool(name string, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		name:    name,
		logger:  logger,
		workers: 2,
		ch:      make(chan job, 64),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("worker started", "pool", p.name, "worker_id", workerID)
				for j := range p.ch {
					if err := j.ctx.Err(); err != nil {
						j.abandon(err)
						continue
					}
					p.exec(workerID, j)
				}
				p.logger.Debug("worker stopped", "pool", p.name, "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (p *Pool) exec(workerID int, j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "pool", p.name, "worker_id", workerID, "panic", r)
			j.abandon(fmt.Errorf("async: task panicked: %v", r))
		}
	}()
	j.run(j.ctx)
}

func (p *Pool) submit(ctx context.Context, j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.ch <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type result[T any] struct {
	val T
	err error
}

// Run executes fn on a pool worker and waits for its result or for ctx.
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	out := make(chan result[T], 1)
	j := job{
		ctx: ctx,
		run: func(ctx context.Context) {
			v, err := fn(ctx)
			out <- result[T]{val: v, err: err}
		},
		abandon: func(err error) {
			select {
			case out <- result[T]{err: err}:
			default:
			}
		},
	}
	if err := p.submit(ctx, j); err != nil {
		return zero, err
	}
	select {
	case r := <-out:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Do is Run for work without a result value.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := Run(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Shutdown stops accepting work and waits for queued tasks to drain.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("shutdown interrupted by context", "pool", p.name)
	case <-done:
		p.logger.Info("pool drained, shutdown complete", "pool", p.name)
	}
}
