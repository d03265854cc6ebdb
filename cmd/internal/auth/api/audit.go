package authapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"authsrv/cmd/internal/auth/cookie"
	"authsrv/cmd/internal/auth/session"
	"authsrv/cmd/security/token"
)

// Audit events go to the structured log under a fixed "audit" message so
// they can be routed separately from operational logs.

func (h *Handler) auditRegister(ctx context.Context, r *http.Request, userID string) {
	h.audit(ctx, r, "auth.register", slog.String("user_id", userID))
}

func (h *Handler) auditLoginFailed(ctx context.Context, r *http.Request, username string) {
	h.audit(ctx, r, "auth.login.fail", slog.String("username", username))
}

func (h *Handler) auditLoginSuccess(ctx context.Context, r *http.Request, userID, sessionID string) {
	h.audit(ctx, r, "auth.login", slog.String("user_id", userID), slog.String("session_fp", token.Fingerprint(sessionID)))
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, r *http.Request, sessionID string) {
	h.audit(ctx, r, "auth.refresh", slog.String("session_fp", token.Fingerprint(sessionID)))
}

func (h *Handler) auditLogout(ctx context.Context, r *http.Request) {
	sid, _ := h.flows.Cookies().Decode(r, cookie.SessionCookie)
	h.audit(ctx, r, "auth.logout", slog.String("session_fp", token.Fingerprint(sid)))
}

func (h *Handler) audit(ctx context.Context, r *http.Request, action string, attrs ...slog.Attr) {
	attrs = append(attrs,
		slog.String("action", action),
		slog.String("ip", ipString(session.ClientIP(r, h.cfg.TrustProxy))),
		slog.String("user_agent", r.UserAgent()),
	)
	h.log.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
