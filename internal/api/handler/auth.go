package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mellanby-hall/portal/internal/api/middleware"
	"github.com/mellanby-hall/portal/internal/api/response"
	"github.com/mellanby-hall/portal/internal/gateway"
	"github.com/mellanby-hall/portal/internal/session"
)

// Authenticator is the slice of the gateway the auth endpoints use.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*gateway.Session, error)
}

// SessionStore is the slice of the session store the auth endpoints use.
type SessionStore interface {
	State() session.AuthState
	SignOut(ctx context.Context)
}

// AuthHandler handles sign-in, sign-out and the session snapshot endpoint.
type AuthHandler struct {
	auth  Authenticator
	store SessionStore
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth Authenticator, store SessionStore) *AuthHandler {
	return &AuthHandler{auth: auth, store: store}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	SignedIn bool   `json:"signedIn"`
	Email    string `json:"email,omitempty"`
	UserID   string `json:"userId,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
	Loading  bool   `json:"loading"`
}

// Login handles POST /admin/login. Backend rejections (bad credentials,
// unconfirmed email) come back as a message for the form, never as a panic
// or an opaque 500.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required", requestID)
		return
	}

	sess, err := h.auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		writeBackendError(w, err, "sign-in", requestID)
		return
	}

	resp := sessionResponse{SignedIn: true, Loading: true}
	if sess.User != nil {
		resp.Email = sess.User.Email
		resp.UserID = sess.User.ID
	}
	response.Success(w, http.StatusOK, resp, requestID)
}

// Logout handles POST /admin/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.store.SignOut(r.Context())
	response.NoContent(w)
}

// Session handles GET /admin/session, exposing the auth snapshot the admin
// shell renders from.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	state := h.store.State()
	resp := sessionResponse{
		SignedIn: state.Session != nil,
		IsAdmin:  state.IsAdmin,
		Loading:  state.Loading,
	}
	if state.User != nil {
		resp.Email = state.User.Email
		resp.UserID = state.User.ID
	}
	response.Success(w, http.StatusOK, resp, requestID)
}
