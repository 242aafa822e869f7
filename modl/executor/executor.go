// Package executor provides a bounded worker pool for offloading blocking
// panel calls from latency-sensitive dispatch threads.
package executor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/df-mc/atomic"
)

const (
	// DefaultWorkers is the worker cap when none is configured.
	DefaultWorkers = 4

	// idleTimeout is how long a worker waits for the next task before
	// exiting. Workers are spawned back on demand, so the pool shrinks to
	// zero when the server is quiet.
	idleTimeout = 60 * time.Second
)

// Executor runs tasks on at most N background workers. Tasks are handed
// directly to an idle worker; there is no queue. When every worker is
// busy the submitting goroutine runs the task itself, which bounds
// concurrency and memory without silently dropping work under burst load.
type Executor struct {
	log *slog.Logger

	tasks   chan func()   // direct handoff, unbuffered
	slots   chan struct{} // worker semaphore
	closed  atomic.Bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New creates an executor with the given worker cap. A cap of zero or
// less falls back to DefaultWorkers.
func New(log *slog.Logger, workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Executor{
		log:     log,
		tasks:   make(chan func()),
		slots:   make(chan struct{}, workers),
		closeCh: make(chan struct{}),
	}
}

// Execute runs the task on the pool. After shutdown has begun, or when
// all workers are busy and the cap is reached, the task runs on the
// calling goroutine instead.
func (e *Executor) Execute(task func()) {
	if e.closed.Load() {
		e.run(task)
		return
	}

	// Hand off to an already idle worker if one is waiting.
	select {
	case e.tasks <- task:
		return
	default:
	}

	// Otherwise spawn a worker if the cap allows, or run in place.
	select {
	case e.slots <- struct{}{}:
		e.wg.Add(1)
		go e.worker(task)
	default:
		e.run(task)
	}
}

// worker runs its initial task, then serves further handoffs until it has
// idled for idleTimeout or the pool is stopped.
func (e *Executor) worker(task func()) {
	defer func() {
		<-e.slots
		e.wg.Done()
	}()

	e.run(task)

	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-e.closeCh:
			return
		case t := <-e.tasks:
			e.run(t)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(idleTimeout)
		case <-idle.C:
			return
		}
	}
}

// run executes a task, keeping panics away from whichever goroutine
// submitted it.
func (e *Executor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic in executor task", "panic", r)
		}
	}()
	task()
}

// Stop stops the pool and waits up to grace for running tasks to finish.
func (e *Executor) Stop(grace time.Duration) {
	if !e.closed.CAS(false, true) {
		return
	}
	close(e.closeCh)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		e.log.Warn("executor stopped before all tasks finished", "grace", grace)
	}
}
