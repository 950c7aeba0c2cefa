package hardware

import (
	"sync"
	"sync/atomic"
)

// Token identifies a subscription. Tokens are unique across all events.
type Token uint64

var lastToken atomic.Uint64

type subscriber[T any] struct {
	token Token
	fn    func(T)
}

// Event is a registry of subscribers for one kind of notification.
// Delivery is synchronous and iterates a snapshot of the subscribers, so
// handlers may subscribe or unsubscribe while an event is delivered. A
// subscriber added during delivery does not receive the event in flight.
type Event[T any] struct {
	mu   sync.Mutex
	subs []subscriber[T]
}

// Subscribe registers fn and returns the token that unregisters it.
func (e *Event[T]) Subscribe(fn func(T)) Token {
	t := Token(lastToken.Add(1))
	e.mu.Lock()
	e.subs = append(e.subs, subscriber[T]{token: t, fn: fn})
	e.mu.Unlock()
	return t
}

// Unsubscribe removes the subscription. It reports false if the token was
// not registered with e.
func (e *Event[T]) Unsubscribe(t Token) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.token == t {
			subs := make([]subscriber[T], 0, len(e.subs)-1)
			subs = append(subs, e.subs[:i]...)
			e.subs = append(subs, e.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of subscribers.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Event[T]) notify(v T) {
	e.mu.Lock()
	subs := e.subs
	e.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}
