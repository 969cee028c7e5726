// Package session owns the portal's authentication state: the current
// backend session, its user, the derived admin capability, and the loading
// flag the route guard waits on. It is the only writer of that state; the
// guard and handlers read it through State and Subscribe.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mellanby-hall/portal/internal/gateway"
)

// AdminRole is the profile role value that grants admin access.
const AdminRole = "admin"

// AuthState is the aggregate auth snapshot exposed to the rest of the
// application. IsAdmin is never true while Session is nil.
type AuthState struct {
	Session *gateway.Session
	User    *gateway.User
	IsAdmin bool
	Loading bool
}

// Gateway is the slice of the backend client the store depends on.
type Gateway interface {
	CurrentSession(ctx context.Context) (*gateway.Session, error)
	SignOut(ctx context.Context) error
	ProfileRole(ctx context.Context, userID string) (string, error)
	OnSessionChange(fn func(event string, s *gateway.Session)) gateway.Subscription
}

// Store maintains AuthState and reconciles it with the backend at startup
// and on every session-change notification.
type Store struct {
	gw      Gateway
	timeout time.Duration

	mu      sync.Mutex
	state   AuthState
	gen     uint64 // bumped on every session transition; stale admin checks compare against it
	mounted bool
	sub     gateway.Subscription

	watchers    map[int]chan AuthState
	nextWatcher int
}

// New creates a store in the unresolved state. Call Start to reconcile it
// with the backend.
func New(gw Gateway, timeout time.Duration) *Store {
	return &Store{
		gw:       gw,
		timeout:  timeout,
		state:    AuthState{Loading: true},
		watchers: make(map[int]chan AuthState),
	}
}

// Start runs the initialization protocol: subscribe to the backend's
// session-change stream, then fetch the current session raced against the
// timeout. A fetch error or timeout settles to the anonymous state — the
// public site stays usable and admin access is never granted on uncertainty.
// Call exactly once per process.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	s.mounted = true
	gen := s.gen
	s.mu.Unlock()

	// Subscribing before the fetch means no transition can slip through
	// unobserved; at worst the current session is delivered twice, which
	// the generation counter makes harmless.
	s.sub = s.gw.OnSessionChange(func(_ string, sess *gateway.Session) {
		s.applySession(sess)
	})

	sess, err := Race(ctx, s.timeout, s.gw.CurrentSession)
	if err != nil {
		slog.Error("session retrieval failed; continuing anonymously", "error", err)
		s.settleAnonymous(gen)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		// A session-change event landed while the fetch was in flight;
		// its result is authoritative, the fetch result is stale.
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.applySession(sess)
}

// Close stops applying updates and releases the event subscription. Safe to
// call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	s.mounted = false
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.mu.Unlock()

	if s.sub != nil {
		s.sub.Unsubscribe()
	}
}

// State returns the current auth snapshot.
func (s *Store) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel receiving every AuthState change and a cancel
// function. Slow receivers miss intermediate snapshots rather than blocking
// the store; State always has the latest.
func (s *Store) Subscribe() (<-chan AuthState, func()) {
	ch := make(chan AuthState, 16)

	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// SignOut revokes the session with the backend (best effort) and
// unconditionally clears local state. Idempotent: signing out while
// anonymous is a no-op.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.gw.SignOut(ctx); err != nil {
		slog.Warn("backend sign-out failed; clearing local session anyway", "error", err)
	}
	s.applySession(nil)
}

// applySession is the single session-transition path, used by Start, the
// event subscription and SignOut. A session with a user stores it and kicks
// off the admin check (which owns clearing Loading); anything else settles
// to the anonymous state.
func (s *Store) applySession(sess *gateway.Session) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen

	if sess == nil || sess.User == nil {
		s.state = AuthState{}
		s.mu.Unlock()
		s.publish()
		return
	}

	// The user is visible immediately; only the admin capability is still
	// resolving, signalled by Loading.
	s.state.Session = sess
	s.state.User = sess.User
	s.state.IsAdmin = false
	s.state.Loading = true
	user := sess.User
	s.mu.Unlock()
	s.publish()

	go s.checkAdmin(user, gen)
}

// settleAnonymous moves an unresolved store to the anonymous state, unless a
// session transition already supplanted the initialization attempt.
func (s *Store) settleAnonymous(gen uint64) {
	s.mu.Lock()
	if !s.mounted || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.state = AuthState{}
	s.mu.Unlock()
	s.publish()
}

// checkAdmin resolves the admin capability for the given user, raced against
// the timeout. Lookup failure of any kind denies admin; privilege is never
// granted on uncertainty. The result only applies while gen still matches
// the current session generation, so a check belonging to a superseded
// session cannot overwrite newer state.
func (s *Store) checkAdmin(user *gateway.User, gen uint64) {
	role, err := Race(context.Background(), s.timeout, func(ctx context.Context) (string, error) {
		return s.gw.ProfileRole(ctx, user.ID)
	})

	isAdmin := err == nil && role == AdminRole
	if err != nil {
		slog.Warn("admin role lookup failed; denying admin access", "userId", user.ID, "error", err)
	}

	s.mu.Lock()
	if !s.mounted || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.state.IsAdmin = isAdmin
	s.state.Loading = false
	s.mu.Unlock()
	s.publish()
}

// publish fans the current state out to watchers without blocking on any of
// them.
func (s *Store) publish() {
	s.mu.Lock()
	state := s.state
	channels := make([]chan AuthState, 0, len(s.watchers))
	for _, ch := range s.watchers {
		channels = append(channels, ch)
	}
	s.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- state:
		default:
		}
	}
}
