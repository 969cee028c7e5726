// Package gateway is a thin client for the hosted backend service that owns
// authentication, row storage and file storage for the portal. It exposes
// credential sign-in/sign-out, current-session retrieval, a subscribable
// session-change stream, generic collection reads/writes and file storage,
// and nothing else; no portal business logic lives here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrAlreadyRegistered is returned by SignUp when an account already exists
// for the given email.
var ErrAlreadyRegistered = errors.New("user already registered")

// BackendError is a failure reported by the backend itself (as opposed to a
// transport failure reaching it).
type BackendError struct {
	Status  int
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// Client talks to the hosted backend. It holds the current session in memory
// and keeps it fresh with a background refresh loop; every transition is
// published to OnSessionChange listeners.
type Client struct {
	baseURL       string
	anonKey       string
	httpClient    *http.Client
	refreshMargin time.Duration

	mu           sync.Mutex
	session      *Session
	refreshStop  chan struct{}
	listeners    map[int]func(event string, s *Session)
	nextListener int
}

// ClientOption customizes the Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithRefreshMargin sets how long before expiry the access token is
// refreshed.
func WithRefreshMargin(d time.Duration) ClientOption {
	return func(c *Client) { c.refreshMargin = d }
}

// NewClient creates a backend client for the given base URL and public API
// key.
func NewClient(baseURL, anonKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		anonKey:       anonKey,
		httpClient:    &http.Client{},
		refreshMargin: 30 * time.Second,
		listeners:     make(map[int]func(string, *Session)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops the background refresh loop. It does not sign the session out.
func (c *Client) Close() {
	c.mu.Lock()
	if c.refreshStop != nil {
		close(c.refreshStop)
		c.refreshStop = nil
	}
	c.mu.Unlock()
}

// SignInWithPassword authenticates with email and password. On success the
// session is held by the client and a SIGNED_IN event is emitted.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var tok tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}},
		map[string]string{"email": email, "password": password}, &tok)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	s := tok.session()
	c.setSession(s, EventSignedIn)
	return s, nil
}

// SignUp creates a new account. Depending on backend confirmation settings
// the response may or may not carry a usable session; the returned Session's
// User is populated either way. Returns ErrAlreadyRegistered when the email
// is taken.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var tok tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil,
		map[string]string{"email": email, "password": password}, &tok)
	if err != nil {
		var berr *BackendError
		if errors.As(err, &berr) && (berr.Code == "user_already_exists" ||
			strings.Contains(strings.ToLower(berr.Message), "already registered")) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("signing up: %w", err)
	}
	return tok.session(), nil
}

// SignOut revokes the session with the backend and clears it locally. The
// local clear and SIGNED_OUT event happen even when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	var err error
	if s != nil {
		err = c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, struct{}{}, nil)
	}
	c.setSession(nil, EventSignedOut)
	if err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

// CurrentSession returns the session the client holds, refreshing it first
// when the access token has expired. Returns (nil, nil) when anonymous.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if s.Expired(c.refreshMargin) && s.RefreshToken != "" {
		return c.refresh(ctx, s.RefreshToken)
	}
	return s, nil
}

// refresh exchanges the refresh token for a new session and emits
// TOKEN_REFRESHED. A rejected refresh token ends the session.
func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var tok tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}},
		map[string]string{"refresh_token": refreshToken}, &tok)
	if err != nil {
		var berr *BackendError
		if errors.As(err, &berr) {
			c.setSession(nil, EventSignedOut)
		}
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	s := tok.session()
	c.setSession(s, EventTokenRefreshed)
	return s, nil
}

// setSession replaces the held session wholesale, restarts the refresh loop
// for it, and notifies listeners.
func (c *Client) setSession(s *Session, event string) {
	c.mu.Lock()
	c.session = s
	if c.refreshStop != nil {
		close(c.refreshStop)
		c.refreshStop = nil
	}
	if s != nil && s.RefreshToken != "" && !s.ExpiresAt.IsZero() {
		stop := make(chan struct{})
		c.refreshStop = stop
		go c.refreshLoop(s, stop)
	}
	c.mu.Unlock()

	c.emit(event, s)
}

// refreshLoop waits until shortly before the session expires, then refreshes
// it once. The refreshed session's own loop takes over from there.
func (c *Client) refreshLoop(s *Session, stop chan struct{}) {
	wait := time.Until(s.ExpiresAt.Add(-c.refreshMargin))
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-stop:
		return
	case <-timer.C:
	}

	_, _ = c.refresh(context.Background(), s.RefreshToken)
}

// ProfileRole looks up the role attribute on the user's profile row. An
// absent or null role yields the empty string.
func (c *Client) ProfileRole(ctx context.Context, userID string) (string, error) {
	var profile struct {
		Role *string `json:"role"`
	}
	err := c.From("profiles").Select("role").Eq("id", userID).Single(ctx, &profile)
	if err != nil {
		return "", fmt.Errorf("looking up profile role: %w", err)
	}
	if profile.Role == nil {
		return "", nil
	}
	return *profile.Role, nil
}

// do issues a JSON request against the backend. Responses with a 4xx/5xx
// status are decoded into a BackendError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setAuthHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// setAuthHeaders attaches the public API key and a bearer token: the session
// access token when signed in, the API key otherwise.
func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.anonKey)

	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s != nil && s.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
}

// decodeError maps a backend error body onto BackendError. The auth and row
// surfaces use different field names for the same thing.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
		Code             any    `json:"code"`
	}
	_ = json.Unmarshal(raw, &payload)

	msg := payload.Message
	if msg == "" {
		msg = payload.Msg
	}
	if msg == "" {
		msg = payload.ErrorDescription
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	code := payload.ErrorCode
	if code == "" {
		if s, ok := payload.Code.(string); ok {
			code = s
		}
	}

	return &BackendError{Status: resp.StatusCode, Code: code, Message: msg}
}
