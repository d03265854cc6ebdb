package authapi

import (
	"authsrv/cmd/identity"
	"authsrv/cmd/internal/auth/lifecycle"
)

func toUserResponse(c identity.Credential) userResponse {
	resp := userResponse{
		ID:       c.UserID,
		Username: c.Username,
		Email:    c.Email,
	}
	if !c.CreatedAt.IsZero() {
		created := c.CreatedAt.UTC()
		resp.CreatedAt = &created
	}
	return resp
}

func toSessionResponse(issued lifecycle.Issued) sessionResponse {
	return sessionResponse{
		SessionID:        issued.SessionID,
		AccessExpiresAt:  issued.Access.ExpiresAt.UTC(),
		RefreshExpiresAt: issued.Refresh.ExpiresAt.UTC(),
	}
}
