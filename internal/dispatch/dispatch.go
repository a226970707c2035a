// Package dispatch hands submitted executions to a pool of runner
// workers with fire-and-forget semantics.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mwhitley/crucible/internal/runner"
)

var ErrStopped = errors.New("dispatcher stopped")

// Dispatcher fans execution IDs out to runner workers. Enqueue never
// blocks the caller; a full queue is reported as an error instead.
type Dispatcher struct {
	runner  *runner.Runner
	jobs    chan string
	workers int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New creates a Dispatcher with the given worker count and queue depth.
func New(r *runner.Runner, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner:  r,
		jobs:    make(chan string, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	log.Printf("dispatcher started (%d workers)", d.workers)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case id, ok := <-d.jobs:
			if !ok {
				return
			}
			// Runs finish on their own clock (the wall-clock limit
			// bounds them); Stop does not abort work in flight.
			d.runner.Execute(context.Background(), id)
		}
	}
}

// Enqueue submits an execution for asynchronous processing.
func (d *Dispatcher) Enqueue(executionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.jobs <- executionID:
		return nil
	default:
		return fmt.Errorf("dispatch queue full (%d pending)", cap(d.jobs))
	}
}

// Stop drains in-flight work and shuts the pool down. Queued but
// unstarted jobs are abandoned; their records stay pending.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
