package correlate

import (
	"sync"
	"time"
)

// DefaultResolveTimeout is how long an unanswered request is tracked before
// its bookkeeping is dropped.
const DefaultResolveTimeout = 30 * time.Second

// entry tracks one outstanding request.
type entry[T any] struct {
	future chan T
	timer  *time.Timer
}

// Store correlates asynchronous request/response pairs across a message
// boundary. Each Create allocates a strictly increasing id that the caller
// embeds in its outgoing message; the matching inbound message settles the
// future via Resolve. Entries that never receive a response are dropped after
// the resolve timeout so the table cannot grow without bound.
//
// A Store is safe for concurrent use. Construct one instance per logical
// request/response channel.
type Store[T any] struct {
	mu       sync.Mutex
	timeout  time.Duration
	lastID   uint64
	pending  map[uint64]*entry[T]
	onExpire func(id uint64)
}

// New creates a store with the default resolve timeout.
func New[T any]() *Store[T] {
	return NewWithTimeout[T](DefaultResolveTimeout)
}

// NewWithTimeout creates a store with a custom resolve timeout. Short
// timeouts are intended for tests.
func NewWithTimeout[T any](timeout time.Duration) *Store[T] {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Store[T]{
		timeout: timeout,
		pending: make(map[uint64]*entry[T]),
	}
}

// Create allocates a new request id and returns it together with the future
// the caller awaits. Ids start at 1 and are never reused within one store
// instance.
//
// If no response arrives within the resolve timeout the entry is removed but
// the returned channel is left permanently unsettled; callers must apply
// their own downstream deadline (select on a context) if they need a
// terminal outcome.
func (s *Store[T]) Create() (uint64, <-chan T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	id := s.lastID
	e := &entry[T]{future: make(chan T, 1)}
	e.timer = time.AfterFunc(s.timeout, func() {
		s.expire(id, e)
	})
	s.pending[id] = e
	return id, e.future
}

// Get returns the future for a still-pending request id, or false if the id
// is unknown, already resolved, or already expired.
func (s *Store[T]) Get(id uint64) (<-chan T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[id]
	if !ok {
		return nil, false
	}
	return e.future, true
}

// Resolve delivers value to the request's future, cancels its cleanup timer
// and removes the entry. It reports whether a pending entry existed: false
// means the id was never issued, already resolved, or timed out. Late or
// spurious responses are expected under message loss, so callers should log
// a false return and discard the value rather than treat it as fatal.
func (s *Store[T]) Resolve(id uint64, value T) bool {
	s.mu.Lock()
	e, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	e.timer.Stop()
	e.future <- value
	return true
}

// SetExpiryHook installs a callback invoked after an unanswered entry is
// removed by the resolve timeout. Install it before the first Create.
func (s *Store[T]) SetExpiryHook(fn func(id uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// expire removes an unanswered entry. The identity check keeps a stale timer
// from deleting a different entry stored under the same id.
func (s *Store[T]) expire(id uint64, e *entry[T]) {
	s.mu.Lock()
	cur, ok := s.pending[id]
	removed := ok && cur == e
	if removed {
		delete(s.pending, id)
	}
	hook := s.onExpire
	s.mu.Unlock()

	if removed && hook != nil {
		hook(id)
	}
}

// Len returns the number of outstanding requests.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops all cleanup timers and drops every pending entry, firing the
// expiry hook for each dropped id. Futures held by callers are left
// unsettled, matching the expiry behavior.
func (s *Store[T]) Close() {
	s.mu.Lock()
	dropped := make([]uint64, 0, len(s.pending))
	for id, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, id)
		dropped = append(dropped, id)
	}
	hook := s.onExpire
	s.mu.Unlock()

	if hook == nil {
		return
	}
	for _, id := range dropped {
		hook(id)
	}
}
