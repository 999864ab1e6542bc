// Package dispatch provides the single logical execution context that view
// models mutate their state on. Callbacks arriving from cache writers or
// network goroutines are posted to a Dispatcher instead of running in place.
package dispatch

import (
	"context"
	"sync"
)

// Dispatcher runs closures on its execution context, in submission order.
type Dispatcher interface {
	Dispatch(fn func())
}

// Func adapts a function to a Dispatcher (e.g. a tea.Program bridge).
type Func func(fn func())

func (f Func) Dispatch(fn func()) { f(fn) }

// Inline runs closures on the calling goroutine. Only suitable when every
// caller already runs on the owning context.
type Inline struct{}

func (Inline) Dispatch(fn func()) { fn() }

// Loop is a serial executor backed by one goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

// NewLoop creates a loop. Call Run to start draining it.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Dispatch enqueues fn. Safe to call from any goroutine, including from
// closures running on the loop. Closures dispatched after Stop are dropped.
func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.wake:
		}
	}
}

// Stop discards queued closures and makes Run return.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Sync runs fn on the loop and waits for it to finish. It returns false if
// the loop stopped before fn ran. Run must have been started, and Sync must
// not be called from the loop itself.
func (l *Loop) Sync(fn func()) bool {
	ran := make(chan struct{})
	l.Dispatch(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return true
	case <-l.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Queue collects closures for an owner that drains them from its own event
// loop (a tea.Program's Update, for instance). notify is called after each
// enqueue, from the dispatching goroutine, and must not block on the owner.
type Queue struct {
	mu     sync.Mutex
	queue  []func()
	notify func()
}

// NewQueue creates a queue. notify may be nil and set later with SetNotify.
func NewQueue(notify func()) *Queue {
	return &Queue{notify: notify}
}

// SetNotify replaces the wake-up hook.
func (q *Queue) SetNotify(notify func()) {
	q.mu.Lock()
	q.notify = notify
	q.mu.Unlock()
}

// Dispatch enqueues fn. Safe to call from any goroutine.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	q.queue = append(q.queue, fn)
	notify := q.notify
	q.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Drain runs queued closures in order, including ones they enqueue, and
// returns how many ran. Must be called on the owner's context.
func (q *Queue) Drain() int {
	ran := 0
	for {
		q.mu.Lock()
		batch := q.queue
		q.queue = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return ran
		}
		for _, fn := range batch {
			fn()
			ran++
		}
	}
}

// Len returns the number of pending closures.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
