// Package worker runs a dynamic set of crawl tasks with bounded concurrency.
// Tasks may submit further tasks; Wait returns once the set drains.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/meteo-crawler/internal/metrics"
)

// Task is one unit of work. The context is the one passed to Submit.
type Task func(ctx context.Context) error

// Pool tracks in-flight tasks. A Pool with zero width runs each task inline
// inside Submit, which turns recursive submission into a depth-first walk.
type Pool struct {
	sem    *semaphore.Weighted
	logger *zap.Logger

	mu        sync.Mutex
	nextID    uint64
	inFlight  map[uint64]string
	errs      []error
	completed int
	failed    int

	notify chan struct{}
}

// New returns a pool running at most width tasks at once.
func New(width int, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		logger:   logger.Named("pool"),
		inFlight: make(map[uint64]string),
		notify:   make(chan struct{}, 1),
	}
	if width > 0 {
		p.sem = semaphore.NewWeighted(int64(width))
	}
	return p
}

// Submit schedules task under name. It never blocks on pool capacity.
func (p *Pool) Submit(ctx context.Context, name string, task Task) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.inFlight[id] = name
	p.mu.Unlock()
	metrics.IncTasksInFlight()

	if p.sem == nil {
		p.finish(id, name, p.run(ctx, name, task))
		return
	}

	go func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.finish(id, name, fmt.Errorf("task %s: %w", name, err))
			return
		}
		err := p.run(ctx, name, task)
		p.sem.Release(1)
		p.finish(id, name, err)
	}()
}

func (p *Pool) run(ctx context.Context, name string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	p.logger.Debug("task started", zap.String("task", name))
	if err := task(ctx); err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	return nil
}

func (p *Pool) finish(id uint64, name string, err error) {
	p.mu.Lock()
	delete(p.inFlight, id)
	if err != nil {
		p.failed++
		p.errs = append(p.errs, err)
	} else {
		p.completed++
	}
	remaining := len(p.inFlight)
	p.mu.Unlock()
	metrics.DecTasksInFlight()

	if err != nil {
		p.logger.Error("task failed", zap.String("task", name), zap.Error(err))
	} else {
		p.logger.Debug("task done", zap.String("task", name), zap.Int("in_flight", remaining))
	}

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// inFlightNames returns the names of tasks submitted and not yet finished.
func (p *Pool) inFlightNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.inFlight))
	for _, n := range p.inFlight {
		names = append(names, n)
	}
	return names
}

// Wait blocks until no task is in flight or ctx ends. It returns the joined
// errors of the tasks that failed since the previous Wait.
func (p *Pool) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		n := len(p.inFlight)
		p.mu.Unlock()
		if n == 0 {
			break
		}
		select {
		case <-p.notify:
		case <-ctx.Done():
			return fmt.Errorf("wait for %d tasks: %w", n, ctx.Err())
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err := errors.Join(p.errs...)
	p.errs = nil
	return err
}

// counts reports how many tasks succeeded and failed so far.
func (p *Pool) counts() (completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.failed
}
