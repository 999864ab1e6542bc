package datacache

import (
	"sync"
	"sync/atomic"

	"github.com/mmcdole/lectern/internal/domain"
)

// pendingEmission is a snapshot waiting to be delivered
type pendingEmission struct {
	version uint64
	state   domain.ChildContentsState
	err     error
}

// subscription delivers emissions for one parent to one observer.
// The observer is invoked without any cache lock held, so it may call back
// into the cache (Apply, Cancel, ObserveChildContents).
//
// Deliveries are serial and never go back in time: a snapshot read at an
// older index version than one already delivered is dropped. Emissions raised
// while the observer is running are queued and delivered after it returns.
type subscription struct {
	cache    *Cache
	id       uint64
	parentID domain.ContentID
	observer domain.ChildContentsObserver

	cancelled atomic.Bool
	completed atomic.Bool // Set once the terminal error is queued

	mu         sync.Mutex
	pending    []pendingEmission
	delivering bool
	delivered  uint64 // Version of the last delivered snapshot
}

// ObserveChildContents emits the current children of parentID and re-emits
// after every Apply that touches them. An error emission ends the subscription.
func (c *Cache) ObserveChildContents(parentID domain.ContentID, observer domain.ChildContentsObserver) domain.Subscription {
	c.subMu.Lock()
	c.nextID++
	sub := &subscription{cache: c, id: c.nextID, parentID: parentID, observer: observer}
	c.subs[sub.id] = sub
	c.subMu.Unlock()

	sub.emit()
	return sub
}

// Cancel stops delivery. Safe to call more than once.
func (s *subscription) Cancel() {
	s.cancelled.Store(true)
	s.cache.removeSubscription(s.id)
}

func (s *subscription) emit() {
	if s.cancelled.Load() || s.completed.Load() {
		return
	}

	state, version, err := s.cache.versionedChildContents(s.parentID)
	if err != nil {
		// Errors complete the stream; only one terminal emission is queued
		if !s.completed.CompareAndSwap(false, true) {
			return
		}
		s.cache.removeSubscription(s.id)
	}
	s.enqueue(pendingEmission{version: version, state: state, err: err})
}

// enqueue queues e and delivers the queue unless another goroutine, or an
// observer further up this stack, is already delivering it.
func (s *subscription) enqueue(e pendingEmission) {
	s.mu.Lock()
	s.pending = append(s.pending, e)
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		if next.version < s.delivered {
			continue
		}
		s.delivered = next.version
		s.mu.Unlock()

		if !s.cancelled.Load() {
			s.observer(next.state, next.err)
		}

		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

func (c *Cache) removeSubscription(id uint64) {
	c.subMu.Lock()
	delete(c.subs, id)
	c.subMu.Unlock()
}

// notify re-emits to subscribers whose parent is in touched.
func (c *Cache) notify(touched map[domain.ContentID]bool) {
	c.subMu.Lock()
	var targets []*subscription
	for _, sub := range c.subs {
		if touched[sub.parentID] {
			targets = append(targets, sub)
		}
	}
	c.subMu.Unlock()

	for _, sub := range targets {
		sub.emit()
	}
}

// Subscribers returns the number of live subscriptions.
func (c *Cache) Subscribers() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subs)
}
