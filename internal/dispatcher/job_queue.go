// Package dispatcher runs background tasks on a fixed set of workers fed by
// a bounded queue.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/styxgzi/nervesx-bot/internal/logging"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

var queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "nervesx_pool_queue_depth",
	Help: "Tasks waiting in the worker pool queue",
})

var tasksDone = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_pool_tasks_total",
	Help: "Worker pool tasks by outcome",
}, []string{"outcome"})

// Task is one unit of background work. ctx is cancelled when the pool is
// stopped without finishing its queue.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool drains a bounded channel with N workers, pausing Delay after each
// task.
type Pool struct {
	tasks   chan Task
	workers int
	delay   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewPool(workers, queueSize int, delay time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runLoop(i)
	}
	logging.Info("[POOL] started %d workers (queue %d, delay %s)", p.workers, cap(p.tasks), p.delay)
}

// Submit enqueues t without blocking.
func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolStopped
	}
	select {
	case p.tasks <- t:
		queueDepth.Inc()
		return nil
	default:
		tasksDone.WithLabelValues("rejected").Inc()
		return ErrQueueFull
	}
}

func (p *Pool) runLoop(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		queueDepth.Dec()
		p.execute(id, t)
		if p.delay <= 0 {
			continue
		}
		select {
		case <-time.After(p.delay):
		case <-p.ctx.Done():
		}
	}
}

func (p *Pool) execute(id int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			tasksDone.WithLabelValues("panic").Inc()
			logging.Error("[POOL] worker %d: task %s panicked: %v", id, t.Name, r)
		}
	}()
	t.Run(p.ctx)
	tasksDone.WithLabelValues("done").Inc()
}

// Stop refuses new tasks and waits for the queue to drain. If ctx ends
// first, running tasks are cancelled and ctx.Err is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	started := p.started
	p.mu.Unlock()

	if !started {
		p.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
