package gateway

import "sync"

// Session-change events delivered to OnSessionChange listeners.
const (
	EventSignedIn       = "SIGNED_IN"
	EventTokenRefreshed = "TOKEN_REFRESHED"
	EventSignedOut      = "SIGNED_OUT"
)

// Subscription represents a registered session-change listener. Unsubscribe
// is safe to call more than once; only the first call detaches the listener.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// OnSessionChange registers fn to be called on every session transition:
// sign-in, background token refresh, and sign-out. The callback receives the
// event name and the new session (nil on sign-out). Callbacks run on the
// goroutine that triggered the transition and must not block.
func (c *Client) OnSessionChange(fn func(event string, s *Session)) Subscription {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return &subscription{cancel: func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}}
}

// emit delivers a session-change event to every registered listener.
func (c *Client) emit(event string, s *Session) {
	c.mu.Lock()
	fns := make([]func(string, *Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(event, s)
	}
}
