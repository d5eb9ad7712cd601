// Package worker runs submitted tasks on a fixed number of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/erenuysaldev/Erotify/internal/logger"
)

var ErrPoolStopped = errors.New("worker pool stopped")

// TaskFunc is the body of a task. It must return promptly once ctx is done.
type TaskFunc func(ctx context.Context) error

// Task is a handle to one submitted unit of work.
type Task struct {
	err    error
	ctx    context.Context
	cancel context.CancelFunc
	fn     TaskFunc
	done   chan struct{}
	ID     string
}

// Done is closed once the task has finished or was skipped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel stops the task. A queued task is skipped; a running one sees its
// context cancelled.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Task) finish(err error) {
	t.err = err
	t.cancel()
	close(t.done)
}

// Pool executes tasks in submission order with at most Workers running at once.
// The backlog is unbounded, so Submit never blocks.
type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	g       *errgroup.Group
	logger  *logger.Logger
	cond    *sync.Cond
	queue   []*Task
	mu      sync.Mutex
	active  atomic.Int64
	workers int
	stopped bool
}

func NewPool(workers int, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		ctx:     ctx,
		cancel:  cancel,
		g:       &errgroup.Group{},
		logger:  log.WithComponent("worker"),
		workers: workers,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.logger.Info("Starting worker pool", "workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.g.Go(p.loop)
	}
}

// Submit enqueues fn under id and returns its handle.
func (p *Pool) Submit(id string, fn TaskFunc) (*Task, error) {
	ctx, cancel := context.WithCancel(p.ctx)
	task := &Task{
		ID:     id,
		ctx:    ctx,
		cancel: cancel,
		fn:     fn,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		cancel()
		return nil, ErrPoolStopped
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return task, nil
}

// Pending returns the number of queued tasks not yet picked up.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Active returns the number of tasks currently running.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Stop cancels every task, queued or running, and waits for the workers to
// exit or ctx to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.logger.Info("Stopping worker pool")

	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.cancel()

	done := make(chan error, 1)
	go func() { done <- p.g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) next() *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil
	}
	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return task
}

func (p *Pool) loop() error {
	for {
		task := p.next()
		if task == nil {
			return nil
		}
		p.run(task)
	}
}

func (p *Pool) run(task *Task) {
	if err := task.ctx.Err(); err != nil {
		p.logger.Debug("Skipping cancelled task", "task_id", task.ID)
		task.finish(err)
		return
	}

	p.active.Add(1)
	defer p.active.Add(-1)

	var err error
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic in task", "task_id", task.ID, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
		task.finish(err)
	}()

	err = task.fn(task.ctx)
}
