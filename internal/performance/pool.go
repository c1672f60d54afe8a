// Package performance provides concurrency utilities for the engine.
package performance

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs submitted tasks on a fixed set of goroutines. The
// monitor uses it to fetch prices for many symbols concurrently, so one
// slow symbol cannot starve a cycle.
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   atomic.Bool
	tasksDone atomic.Uint64
}

// NewWorkerPool creates a worker pool. Zero workers defaults to
// runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*16),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the workers. Starting a running pool is a no-op.
func (p *WorkerPool) Start() {
	if p.running.Swap(true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			task()
			p.tasksDone.Add(1)
		}
	}
}

// Submit queues a task. It returns false when the pool is stopped or the
// queue is full.
func (p *WorkerPool) Submit(task func()) bool {
	if !p.running.Load() {
		return false
	}
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop stops the pool and waits for in-flight tasks to finish. Stopping a
// stopped pool is a no-op.
func (p *WorkerPool) Stop() {
	if !p.running.Swap(false) {
		return
	}
	p.cancel()
	p.wg.Wait()
}

// TasksDone returns the number of completed tasks.
func (p *WorkerPool) TasksDone() uint64 {
	return p.tasksDone.Load()
}
