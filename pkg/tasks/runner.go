// Package tasks provides the fire-and-forget runner used for best-effort
// side effects. Failures are logged through the structured logger and
// never reach the primary operation's result.
package tasks

import (
	"sync"
	"sync/atomic"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/telemetry"
)

const (
	defaultWorkers  = 2
	defaultCapacity = 1024
)

type task struct {
	name string
	fn   func() error
}

// Runner executes submitted tasks on a fixed worker pool over a bounded
// queue. Submission never blocks; overflow drops the task and counts it.
type Runner struct {
	ch chan task
	wg sync.WaitGroup

	// mu orders submissions against Close: a send may not overlap the
	// channel close.
	mu      sync.RWMutex
	closed  bool
	dropped uint64
}

// NewRunner starts a runner with the given worker count and queue
// capacity; non-positive values fall back to defaults.
func NewRunner(workers, capacity int) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	r := &Runner{ch: make(chan task, capacity)}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for t := range r.ch {
		if err := t.fn(); err != nil {
			logger.Error("background_task_failed", "task", t.name, "error", err)
		}
	}
}

// Submit enqueues fn without blocking. Returns false when the runner is
// closed or the queue is full; the task is dropped and counted.
func (r *Runner) Submit(name string, fn func() error) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.ch <- task{name: name, fn: fn}:
		return true
	default:
		atomic.AddUint64(&r.dropped, 1)
		telemetry.TasksDroppedTotal.Inc()
		logger.Warn("background_task_dropped", "task", name)
		return false
	}
}

// Dropped reports how many tasks were discarded due to a full queue.
func (r *Runner) Dropped() uint64 { return atomic.LoadUint64(&r.dropped) }

// Close stops accepting tasks and waits for in-flight ones to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	r.wg.Wait()
}
