package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"authsrv/cmd/identity"
	"authsrv/cmd/internal/auth/cookie"
	"authsrv/cmd/internal/auth/lifecycle"
	"authsrv/cmd/internal/auth/session"
	"authsrv/cmd/internal/auth/tokens"
	"authsrv/cmd/security/password"

	"github.com/go-chi/chi/v5"
)

// Handler wires HTTP auth endpoints to the lifecycle flows.
type Handler struct {
	log   *slog.Logger
	cfg   Config
	flows *lifecycle.Orchestrator
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, flows *lifecycle.Orchestrator, cfg Config) (*Handler, error) {
	if flows == nil {
		return nil, errors.New("auth: nil lifecycle")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{log: log, cfg: cfg, flows: flows}, nil
}

// Routes mounts the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/refresh", h.handleRefresh)
	r.Get("/auth/logout", h.handleLogout)
	r.Post("/auth/logout", h.handleLogout)
	r.With(h.RequireAuth).Get("/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	cred, err := h.flows.Register(ctx, lifecycle.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		h.writeFlowError(w, "register", err)
		return
	}

	h.auditRegister(ctx, r, cred.UserID)
	writeJSON(w, http.StatusCreated, registerResponse{User: toUserResponse(cred)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	issued, err := h.flows.Login(ctx, lifecycle.LoginInput{
		Username: req.Username,
		Password: req.Password,
		Device:   session.DeviceFromRequest(r, h.cfg.TrustProxy),
	})
	if err != nil {
		if errors.Is(err, lifecycle.ErrUnauthorized) {
			h.auditLoginFailed(ctx, r, req.Username)
		}
		h.writeFlowError(w, "login", err)
		return
	}

	h.auditLoginSuccess(ctx, r, issued.UserID, issued.SessionID)
	cookie.Set(w, issued.Cookies)
	writeJSON(w, http.StatusOK, loginResponse{
		User:    userResponse{ID: issued.UserID, Username: issued.Username},
		Session: toSessionResponse(issued),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issued, err := h.flows.Refresh(ctx, r)
	if err != nil {
		h.writeFlowError(w, "refresh", err)
		return
	}

	h.auditRefreshSuccess(ctx, r, issued.SessionID)
	cookie.Set(w, issued.Cookies)
	writeJSON(w, http.StatusOK, refreshResponse{Session: toSessionResponse(issued)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cleared, err := h.flows.Logout(ctx, r)
	if err != nil {
		h.writeFlowError(w, "logout", err)
		return
	}

	h.auditLogout(ctx, r)
	cookie.Set(w, cleared)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	resp := meResponse{Username: claims.Username}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- guard ----

type claimsKey struct{}

// RequireAuth rejects requests that fail Authorize and exposes the access
// claims of the rest through ClaimsFromContext.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.flows.Authorize(r.Context(), r)
		if err != nil {
			h.writeFlowError(w, "authorize", err)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (tokens.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(tokens.AccessClaims)
	return c, ok
}

func (h *Handler) writeFlowError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, lifecycle.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, lifecycle.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "username already taken")
	case errors.Is(err, lifecycle.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_request", invalidInputMessage(err))
	default:
		h.log.Error("auth."+op+".fail", "err", err)
		WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func invalidInputMessage(err error) string {
	for _, policy := range []error{password.ErrPasswordTooShort, password.ErrPasswordTooLong, password.ErrWeakPassword} {
		if errors.Is(err, policy) {
			return policy.Error()
		}
	}
	var field identity.OpError
	if errors.As(err, &field) && field.Msg != "" {
		return field.Msg
	}
	return "username and password are required"
}
