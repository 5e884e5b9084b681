package worker

import (
	"sync"
)

type Handler = func(workerIndex int, job interface{})

// Pool is a fixed-size goroutine pool fed from one shared buffered channel.
// Jobs submitted after Stop are dropped rather than run.
type Pool struct {
	jobs    chan interface{}
	workers int
	handler Handler

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPool(queueSize, workers int) *Pool {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		jobs:    make(chan interface{}, queueSize),
		workers: workers,
		quit:    make(chan struct{}),
	}
}

// SetHandler must be called before Start.
func (p *Pool) SetHandler(h Handler) {
	p.handler = h
}

// Submit queues a job. Blocks while the buffer is full so producers are
// backpressured instead of dropping work.
func (p *Pool) Submit(job interface{}) {
	select {
	case <-p.quit:
	case p.jobs <- job:
	}
}

// Pending reports how many submitted jobs have not been picked up yet.
func (p *Pool) Pending() int {
	return len(p.jobs)
}

func (p *Pool) Start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func(index int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobs:
					p.handler(index, job)
				case <-p.quit:
					return
				}
			}
		}(i)
	}
}

// Stop terminates the workers and waits for in-flight handlers to return.
// Jobs still sitting in the buffer are abandoned.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}
