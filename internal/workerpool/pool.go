// Package workerpool runs tasks on a fixed set of goroutines fed from a
// single FIFO queue.
//
// The queue is guarded by one mutex and a condition variable. Stop lets the
// executors drain every task that was accepted before it was called, then
// waits for them to exit. Running tasks are never interrupted; callers that
// need a task to finish early must unblock it themselves (for example by
// closing the socket it is reading from).
package workerpool

import (
	"errors"
	"sync"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("workerpool: stopped")

// Task is a unit of work.
type Task func()

// Pool is a fixed-size worker pool.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	stopped bool
	active  int
	size    int
	wg      sync.WaitGroup
}

// New starts a pool with size executors. A size below one is raised to one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

// Submit appends t to the queue and wakes one idle executor.
func (p *Pool) Submit(t Task) error {
	if t == nil {
		return errors.New("workerpool: nil task")
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.queue = append(p.queue, t)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Stop refuses further submissions, lets queued tasks run, and returns once
// every executor has exited. It is safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// Pending reports the number of tasks waiting for an executor.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Active reports the number of tasks currently running.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Size reports the number of executors.
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) run() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// stopped and drained
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		t()

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}
