package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/session"
)

type SessionManager interface {
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)
	Logout(ctx context.Context)
	CurrentIdentity() *model.Identity
	State() session.State
	Running() bool
}

type AuthHandler struct {
	sessions SessionManager
	limiter  func(http.Handler) http.Handler
}

// NewAuthHandler builds the sign-in routes. limiter, when set, wraps the
// login route only.
func NewAuthHandler(sessions SessionManager, limiter func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{sessions: sessions, limiter: limiter}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	login := http.Handler(http.HandlerFunc(h.Login))
	if h.limiter != nil {
		login = h.limiter(login)
	}
	r.Method(http.MethodPost, "/login", login)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, apperrors.MissingRequired("email"))
		return
	}
	if req.Password == "" {
		writeError(w, apperrors.MissingRequired("password"))
		return
	}

	user, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Warn().Err(err).Msg("sign-in failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":         h.sessions.State(),
		"user":          h.sessions.CurrentIdentity(),
		"sessionActive": h.sessions.Running(),
	})
}
