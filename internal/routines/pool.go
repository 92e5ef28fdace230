// Package routines provides a fixed-size goroutine pool.
package routines

import "sync"

// Pool runs queued functions on a fixed number of goroutines.
// Queued functions are executed in submission order per goroutine.
type Pool struct {
	ch     chan func()
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex
}

func NewPool(routines uint) *Pool {
	p := Pool{
		ch: make(chan func()),
	}

	p.wg.Add(int(routines))

	for i := uint(0); i < routines; i++ {
		go func() {
			defer p.wg.Done()

			for fn := range p.ch {
				fn()
			}
		}()
	}

	return &p
}

// Queue submits fn for execution.
// It blocks until a goroutine in the pool accepted the function.
// Queue panics when it is called after Wait().
func (p *Pool) Queue(fn func()) {
	p.ch <- fn
}

// Wait stops the pool and blocks until all queued functions terminated.
// It can be called multiple times.
func (p *Pool) Wait() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
