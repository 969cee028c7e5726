package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellanby-hall/portal/internal/gateway"
	"github.com/mellanby-hall/portal/internal/session"
)

const testTimeout = 100 * time.Millisecond

// fakeGateway implements session.Gateway with scriptable behavior.
type fakeGateway struct {
	mu sync.Mutex

	session    *gateway.Session
	sessionErr error
	// sessionBlock, when set, makes CurrentSession hang until the context
	// is cancelled (simulates a stalled backend).
	sessionBlock bool

	// roleFn resolves the admin-role lookup; defaults to (role, roleErr).
	roleFn  func(ctx context.Context, userID string) (string, error)
	role    string
	roleErr error

	signOutErr   error
	signOutCalls int

	listeners      []func(string, *gateway.Session)
	unsubscribed   int
	subscribeCount int
}

func (f *fakeGateway) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	f.mu.Lock()
	block, sess, err := f.sessionBlock, f.session, f.sessionErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return sess, err
}

func (f *fakeGateway) ProfileRole(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	fn, role, err := f.roleFn, f.role, f.roleErr
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID)
	}
	return role, err
}

func (f *fakeGateway) SignOut(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeGateway) OnSessionChange(fn func(string, *gateway.Session)) gateway.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCount++
	f.listeners = append(f.listeners, fn)
	return &fakeSubscription{gw: f}
}

func (f *fakeGateway) emit(event string, s *gateway.Session) {
	f.mu.Lock()
	listeners := append([]func(string, *gateway.Session){}, f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(event, s)
	}
}

type fakeSubscription struct {
	gw   *fakeGateway
	once sync.Once
}

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.gw.mu.Lock()
		s.gw.unsubscribed++
		s.gw.mu.Unlock()
	})
}

func testSession(userID string) *gateway.Session {
	return &gateway.Session{
		AccessToken:  "token-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         &gateway.User{ID: userID, Email: userID + "@hall.test"},
	}
}

func waitSettled(t *testing.T, store *session.Store) session.AuthState {
	t.Helper()
	require.Eventually(t, func() bool {
		return !store.State().Loading
	}, 2*time.Second, 5*time.Millisecond, "auth state should settle")
	return store.State()
}

// --- Initialization ---

func TestStart_AdminSession(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), role: "admin"}
	store := session.New(gw, testTimeout)
	defer store.Close()

	store.Start(context.Background())

	state := waitSettled(t, store)
	require.NotNil(t, state.Session)
	assert.Equal(t, "u1", state.User.ID)
	assert.True(t, state.IsAdmin)
	assert.False(t, state.Loading)
}

func TestStart_NonAdminRole(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), role: "resident"}
	store := session.New(gw, testTimeout)
	defer store.Close()

	store.Start(context.Background())

	state := waitSettled(t, store)
	require.NotNil(t, state.Session)
	assert.False(t, state.IsAdmin)
}

func TestStart_NoSession(t *testing.T) {
	gw := &fakeGateway{}
	store := session.New(gw, testTimeout)
	defer store.Close()

	store.Start(context.Background())

	state := waitSettled(t, store)
	assert.Nil(t, state.Session)
	assert.Nil(t, state.User)
	assert.False(t, state.IsAdmin)
}

func TestStart_FetchErrorFailsOpenToAnonymous(t *testing.T) {
	gw := &fakeGateway{sessionErr: errors.New("connection refused")}
	store := session.New(gw, testTimeout)
	defer store.Close()

	store.Start(context.Background())

	state := waitSettled(t, store)
	assert.Nil(t, state.Session)
	assert.False(t, state.IsAdmin, "a failed session fetch must never grant admin")
}

func TestStart_FetchTimeoutFailsOpenToAnonymous(t *testing.T) {
	gw := &fakeGateway{sessionBlock: true}
	store := session.New(gw, testTimeout)
	defer store.Close()

	start := time.Now()
	store.Start(context.Background())
	elapsed := time.Since(start)

	state := waitSettled(t, store)
	assert.Nil(t, state.Session)
	assert.False(t, state.IsAdmin)
	assert.GreaterOrEqual(t, elapsed, testTimeout, "the timeout should have elapsed")
}

func TestStart_SubscribesBeforeFetch(t *testing.T) {
	gw := &fakeGateway{sessionBlock: true}
	store := session.New(gw, testTimeout)
	defer store.Close()

	done := make(chan struct{})
	go func() {
		store.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return gw.subscribeCount == 1
	}, time.Second, time.Millisecond, "subscription should be live while the fetch is still pending")
	<-done
}

func TestStart_EventDuringFetchWinsOverFetchResult(t *testing.T) {
	// The initial fetch times out, but a sign-in event lands first; the
	// event's session must survive the fetch settling.
	gw := &fakeGateway{sessionBlock: true, role: "admin"}
	store := session.New(gw, testTimeout)
	defer store.Close()

	go func() {
		time.Sleep(testTimeout / 4)
		gw.emit(gateway.EventSignedIn, testSession("u1"))
	}()
	store.Start(context.Background())

	state := waitSettled(t, store)
	require.NotNil(t, state.Session)
	assert.Equal(t, "u1", state.User.ID)
	assert.True(t, state.IsAdmin)
}

// --- Admin check ---

func TestCheckAdmin_LookupErrorFailsClosed(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), roleErr: errors.New("boom")}
	store := session.New(gw, testTimeout)
	defer store.Close()

	store.Start(context.Background())

	state := waitSettled(t, store)
	require.NotNil(t, state.Session, "session survives a failed privilege check")
	assert.False(t, state.IsAdmin, "a failed role lookup must never grant admin")
}

func TestCheckAdmin_LookupTimeoutFailsClosed(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1")}
	gw.roleFn = func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "admin", ctx.Err()
	}
	store := session.New(gw, testTimeout)
	defer store.Close()

	store.Start(context.Background())

	state := waitSettled(t, store)
	require.NotNil(t, state.Session)
	assert.False(t, state.IsAdmin)
}

func TestCheckAdmin_OtherRoleValuesDenied(t *testing.T) {
	for _, role := range []string{"", "resident", "ADMIN", "superadmin"} {
		t.Run("role="+role, func(t *testing.T) {
			gw := &fakeGateway{session: testSession("u1"), role: role}
			store := session.New(gw, testTimeout)
			defer store.Close()

			store.Start(context.Background())
			assert.False(t, waitSettled(t, store).IsAdmin)
		})
	}
}

func TestCheckAdmin_StaleResultDiscarded(t *testing.T) {
	// Session A's check blocks; session B supersedes it and resolves to
	// admin. A's late answer (non-admin) must not demote B.
	releaseA := make(chan struct{})
	gw := &fakeGateway{}
	gw.roleFn = func(_ context.Context, userID string) (string, error) {
		if userID == "userA" {
			<-releaseA
			return "resident", nil
		}
		return "admin", nil
	}
	store := session.New(gw, time.Minute)
	defer store.Close()
	store.Start(context.Background())
	waitSettled(t, store)

	gw.emit(gateway.EventSignedIn, testSession("userA"))
	gw.emit(gateway.EventSignedIn, testSession("userB"))

	state := waitSettled(t, store)
	require.Equal(t, "userB", state.User.ID)
	require.True(t, state.IsAdmin)

	close(releaseA)
	time.Sleep(50 * time.Millisecond)

	state = store.State()
	assert.Equal(t, "userB", state.User.ID)
	assert.True(t, state.IsAdmin, "session A's stale result must not overwrite session B's state")
	assert.False(t, state.Loading)
}

func TestAdminNeverTrueWithoutSession(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), role: "admin"}
	store := session.New(gw, testTimeout)
	defer store.Close()

	states := make([]session.AuthState, 0, 16)
	updates, cancel := store.Subscribe()
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for s := range updates {
			states = append(states, s)
		}
	}()

	store.Start(context.Background())
	waitSettled(t, store)
	gw.emit(gateway.EventSignedOut, nil)
	require.Eventually(t, func() bool { return store.State().Session == nil }, time.Second, time.Millisecond)

	cancel()
	wg.Wait()

	for _, s := range append(states, store.State()) {
		if s.IsAdmin {
			assert.NotNil(t, s.Session, "IsAdmin implies a session is present")
		}
	}
}

// --- Session-change events ---

func TestSessionChange_NewUserRechecksAdmin(t *testing.T) {
	gw := &fakeGateway{}
	gw.roleFn = func(_ context.Context, userID string) (string, error) {
		if userID == "admin-user" {
			return "admin", nil
		}
		return "resident", nil
	}
	store := session.New(gw, testTimeout)
	defer store.Close()
	store.Start(context.Background())
	waitSettled(t, store)

	gw.emit(gateway.EventSignedIn, testSession("plain-user"))
	state := waitSettled(t, store)
	assert.False(t, state.IsAdmin)

	gw.emit(gateway.EventSignedIn, testSession("admin-user"))
	require.Eventually(t, func() bool {
		s := store.State()
		return !s.Loading && s.User != nil && s.User.ID == "admin-user"
	}, time.Second, time.Millisecond)
	assert.True(t, store.State().IsAdmin)
}

func TestSessionChange_TokenRefreshKeepsUserVisible(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), role: "admin"}
	store := session.New(gw, testTimeout)
	defer store.Close()
	store.Start(context.Background())
	waitSettled(t, store)

	refreshed := testSession("u1")
	refreshed.AccessToken = "token-u1-v2"
	gw.emit(gateway.EventTokenRefreshed, refreshed)

	// During the re-check only Loading toggles; the user is not blanked.
	state := store.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "u1", state.User.ID)

	state = waitSettled(t, store)
	assert.Equal(t, "token-u1-v2", state.Session.AccessToken)
	assert.True(t, state.IsAdmin)
}

func TestSessionChange_EmptySessionClearsState(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), role: "admin"}
	store := session.New(gw, testTimeout)
	defer store.Close()
	store.Start(context.Background())
	require.True(t, waitSettled(t, store).IsAdmin)

	gw.emit(gateway.EventSignedOut, nil)

	require.Eventually(t, func() bool { return store.State().Session == nil }, time.Second, time.Millisecond)
	state := store.State()
	assert.Nil(t, state.User)
	assert.False(t, state.IsAdmin)
	assert.False(t, state.Loading)
}

// --- Sign-out ---

func TestSignOut_ClearsStateEvenWhenBackendFails(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), role: "admin", signOutErr: errors.New("network down")}
	store := session.New(gw, testTimeout)
	defer store.Close()
	store.Start(context.Background())
	require.True(t, waitSettled(t, store).IsAdmin)

	store.SignOut(context.Background())

	state := store.State()
	assert.Nil(t, state.Session)
	assert.Nil(t, state.User)
	assert.False(t, state.IsAdmin)
	assert.False(t, state.Loading)
}

func TestSignOut_IdempotentWhenAnonymous(t *testing.T) {
	gw := &fakeGateway{}
	store := session.New(gw, testTimeout)
	defer store.Close()
	store.Start(context.Background())
	waitSettled(t, store)

	require.NotPanics(t, func() {
		store.SignOut(context.Background())
		store.SignOut(context.Background())
	})

	state := store.State()
	assert.Nil(t, state.Session)
	assert.False(t, state.IsAdmin)
	assert.False(t, state.Loading)
	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, 2, gw.signOutCalls)
}

// --- Teardown ---

func TestClose_UnsubscribesAndSuppressesLateEvents(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), role: "admin"}
	store := session.New(gw, testTimeout)
	store.Start(context.Background())
	waitSettled(t, store)

	store.Close()

	gw.mu.Lock()
	unsubscribed := gw.unsubscribed
	gw.mu.Unlock()
	assert.Equal(t, 1, unsubscribed)

	// A straggling event must not mutate state after teardown.
	gw.emit(gateway.EventSignedIn, testSession("u2"))
	time.Sleep(20 * time.Millisecond)
	state := store.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "u1", state.User.ID)
}

func TestClose_SafeToCallTwice(t *testing.T) {
	gw := &fakeGateway{}
	store := session.New(gw, testTimeout)
	store.Start(context.Background())
	waitSettled(t, store)

	require.NotPanics(t, func() {
		store.Close()
		store.Close()
	})
}

// --- Subscription surface ---

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	gw := &fakeGateway{session: testSession("u1"), role: "admin"}
	store := session.New(gw, testTimeout)
	defer store.Close()

	updates, cancel := store.Subscribe()
	defer cancel()

	store.Start(context.Background())
	waitSettled(t, store)

	var sawLoading, sawSettled bool
	deadline := time.After(time.Second)
	for !(sawLoading && sawSettled) {
		select {
		case s := <-updates:
			if s.Loading && s.Session != nil {
				sawLoading = true
			}
			if !s.Loading && s.IsAdmin {
				sawSettled = true
			}
		case <-deadline:
			t.Fatalf("did not observe both transitions (loading=%v settled=%v)", sawLoading, sawSettled)
		}
	}
}
