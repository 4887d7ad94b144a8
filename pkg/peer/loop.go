package peer

import (
	"sync"
	"sync/atomic"
)

// Loop runs posted functions one by one on a single goroutine.
// The mailbox is unbounded, so posting never blocks, even from
// a function that is running on the loop.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	started atomic.Bool
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Post queues fn and returns immediately.
// Returns false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it.
// Must not be called from the loop itself.
func (l *Loop) Do(fn func()) bool {
	ok := make(chan struct{})
	if !l.Post(func() { fn(); close(ok) }) {
		return false
	}
	select {
	case <-ok:
		return true
	case <-l.done:
		return false
	}
}

// Flush waits until everything posted before it has been run.
func (l *Loop) Flush() { l.Do(func() {}) }

// Start runs the loop in a new goroutine.
func (l *Loop) Start() {
	if l.started.CompareAndSwap(false, true) {
		go l.run()
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.wake:
			l.drain()
		case <-l.quit:
			l.drain()
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// Stop runs what's left in the mailbox and terminates the loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()

	close(l.quit)
	if l.started.Load() {
		<-l.done
	}
}
