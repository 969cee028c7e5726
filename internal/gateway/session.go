package gateway

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the identity attached to a Session.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is the credential bundle issued by the backend on successful
// authentication. It is replaced wholesale on refresh and destroyed on
// sign-out; it is never mutated in place.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

// Expired reports whether the access token has expired (with a small margin
// so callers refresh before the backend starts rejecting it).
func (s *Session) Expired(margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.ExpiresAt.Add(-margin))
}

// tokenResponse is the backend's token-endpoint payload. Not every field is
// present on every response; missing expiry and identity are recovered from
// the access-token claims.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// session converts a token response into a Session, falling back to the
// access-token claims for expiry and user identity. The token is decoded
// without signature verification: the backend minted it over TLS and this
// client only reads scheduling/identity hints from it, it never grants
// anything based on the claims.
func (t *tokenResponse) session() *Session {
	s := &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         t.User,
	}

	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, &claims); err == nil {
		if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time
		}
		if s.User == nil && claims.Subject != "" {
			s.User = &User{ID: claims.Subject, Email: claims.Email}
		}
	}

	return s
}
