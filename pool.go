package sheetsql

import (
	"sync"
	"sync/atomic"
	"time"
)

// PoolStats is a snapshot of the worker pool
type PoolStats struct {
	Workers    int
	Queued     int
	Completed  int64
	CallerRuns int64
}

// workerPool runs statements on a bounded set of goroutines. minWorkers
// workers live as long as the pool; extra workers up to maxWorkers start when
// the queue is full and exit after keepAlive without work. When the queue is
// full and no worker can be added, the task runs on the submitting goroutine.
type workerPool struct {
	tasks     chan func()
	min, max  int
	keepAlive time.Duration

	// mu guards closing tasks against concurrent sends
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	workers    atomic.Int32
	completed  atomic.Int64
	callerRuns atomic.Int64
}

func newWorkerPool(cfg PoolConfig) *workerPool {
	p := &workerPool{
		tasks:     make(chan func(), cfg.QueueCapacity),
		min:       cfg.MinWorkers,
		max:       cfg.MaxWorkers,
		keepAlive: cfg.KeepAlive,
	}
	for range p.min {
		p.workers.Add(1)
		p.wg.Add(1)
		go p.work(nil, true)
	}
	return p
}

// submit schedules task. It reports false if the pool is closed.
func (p *workerPool) submit(task func()) bool {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return false
	}
	select {
	case p.tasks <- task:
		p.mu.RUnlock()
		return true
	default:
	}
	if p.tryGrow() {
		p.wg.Add(1)
		go p.work(task, false)
		p.mu.RUnlock()
		return true
	}
	p.mu.RUnlock()

	p.callerRuns.Add(1)
	p.run(task)
	return true
}

func (p *workerPool) tryGrow() bool {
	for {
		n := p.workers.Load()
		if int(n) >= p.max {
			return false
		}
		if p.workers.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (p *workerPool) work(first func(), core bool) {
	defer p.wg.Done()
	defer p.workers.Add(-1)

	if first != nil {
		p.run(first)
	}
	if core {
		for task := range p.tasks {
			p.run(task)
		}
		return
	}

	idle := time.NewTimer(p.keepAlive)
	defer idle.Stop()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
			idle.Reset(p.keepAlive)
		case <-idle.C:
			return
		}
	}
}

func (p *workerPool) run(task func()) {
	defer p.completed.Add(1)
	task()
}

func (p *workerPool) stats() PoolStats {
	return PoolStats{
		Workers:    int(p.workers.Load()),
		Queued:     len(p.tasks),
		Completed:  p.completed.Load(),
		CallerRuns: p.callerRuns.Load(),
	}
}

// close stops accepting tasks, lets queued tasks finish and waits for the
// workers to exit.
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
