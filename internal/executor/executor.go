// Package executor runs background queue tasks on a fixed set of workers.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/szibis/logrelay/internal/logging"
	"github.com/szibis/logrelay/internal/queue"
)

var (
	// ErrClosed is returned by Submit after Shutdown has started.
	ErrClosed = errors.New("executor: closed")
	// ErrSaturated is returned by Submit when the backlog is full.
	ErrSaturated = errors.New("executor: backlog full")
)

const defaultBacklog = 64

// Config configures a Pool.
type Config struct {
	// Name labels metrics and log lines.
	Name string
	// Workers is the number of goroutines running tasks. Defaults to NumCPU.
	Workers int
	// Backlog is the number of tasks that may wait for a worker.
	Backlog int
	// OnError receives every non-nil task error. Defaults to logging at ERROR.
	OnError func(error)
}

// Pool is a bounded worker pool implementing queue.Executor.
type Pool struct {
	name    string
	workers int
	tasks   chan queue.Task
	onError func(error)
	log     *logging.Component

	ctx    context.Context
	cancel context.CancelFunc
	g      errgroup.Group
	done   chan struct{}

	// mu guards closed against concurrent Submit and Shutdown so that no
	// send races the close of tasks.
	mu     sync.RWMutex
	closed bool
}

var _ queue.Executor = (*Pool)(nil)

// New starts a pool.
func New(cfg Config) *Pool {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = defaultBacklog
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:    cfg.Name,
		workers: cfg.Workers,
		tasks:   make(chan queue.Task, cfg.Backlog),
		onError: cfg.OnError,
		log:     logging.With("component", "executor", "executor", cfg.Name),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if p.onError == nil {
		p.onError = func(err error) {
			p.log.Error("task failed", logging.F("error", err.Error()))
		}
	}

	executorWorkers.WithLabelValues(p.name).Set(float64(p.workers))
	for i := 0; i < p.workers; i++ {
		p.g.Go(p.worker)
	}
	go func() {
		_ = p.g.Wait()
		close(p.done)
	}()

	p.log.Info("executor started", logging.F("workers", p.workers, "backlog", cfg.Backlog))
	return p
}

// Submit enqueues t without waiting for a worker.
func (p *Pool) Submit(t queue.Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		executorTasksTotal.WithLabelValues(p.name, resultRejected).Inc()
		return ErrClosed
	}
	select {
	case p.tasks <- t:
		executorBacklog.WithLabelValues(p.name).Set(float64(len(p.tasks)))
		return nil
	default:
		executorTasksTotal.WithLabelValues(p.name, resultRejected).Inc()
		return ErrSaturated
	}
}

func (p *Pool) worker() error {
	for t := range p.tasks {
		executorBacklog.WithLabelValues(p.name).Set(float64(len(p.tasks)))
		p.run(t)
	}
	return nil
}

func (p *Pool) run(t queue.Task) {
	executorRunning.WithLabelValues(p.name).Inc()
	defer executorRunning.WithLabelValues(p.name).Dec()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
		}()
		return t(p.ctx)
	}()

	if err != nil {
		executorTasksTotal.WithLabelValues(p.name, resultFailed).Inc()
		p.onError(err)
		return
	}
	executorTasksTotal.WithLabelValues(p.name, resultCompleted).Inc()
}

// Shutdown stops intake and waits for queued and running tasks. When ctx
// ends first, running tasks see their context cancelled and Shutdown waits
// for them to return before reporting ctx.Err().
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		p.cancel()
		p.log.Info("executor stopped")
		return nil
	case <-ctx.Done():
	}

	p.cancel()
	<-p.done
	p.log.Warn("executor stopped before backlog drained", logging.F("error", ctx.Err().Error()))
	return ctx.Err()
}

// Inline runs each task synchronously on the submitting goroutine.
type Inline struct {
	// OnError receives task errors; nil discards them.
	OnError func(error)
}

var _ queue.Executor = Inline{}

// Submit runs t with a background context.
func (e Inline) Submit(t queue.Task) error {
	if err := t(context.Background()); err != nil && e.OnError != nil {
		e.OnError(err)
	}
	return nil
}
