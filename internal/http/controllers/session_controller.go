package controllers

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/dramgate/internal/http/dto"
	httperrors "github.com/dropDatabas3/dramgate/internal/http/errors"
	"github.com/dropDatabas3/dramgate/internal/http/middlewares"
	"github.com/dropDatabas3/dramgate/internal/session"
)

// SessionController handles session status and refresh.
type SessionController struct {
	manager *session.Manager
}

// NewSessionController creates the controller.
func NewSessionController(m *session.Manager) *SessionController {
	return &SessionController{manager: m}
}

// Status handles GET /v1/session/status. The session comes from the auth
// middleware; an expired token never reaches this handler.
func (c *SessionController) Status(w http.ResponseWriter, r *http.Request) {
	sess, ok := middlewares.GetSession(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	info := c.manager.Status(sess, time.Now().UTC())
	writeJSON(w, http.StatusOK, dto.SessionStatusResponse{
		UserID:               info.UserID,
		IssuedAt:             info.IssuedAt.Unix(),
		TimeoutSeconds:       int64(info.Timeout.Seconds()),
		TimeRemainingSeconds: int64(info.TimeRemaining.Seconds()),
		Expiring:             info.NeedsWarning,
	})
}

// Refresh handles POST /v1/session/refresh. It revalidates the raw bearer
// token itself: refreshing an expired session must fail, not silently
// reissue.
func (c *SessionController) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("missing bearer token"))
		return
	}

	signed, sess, err := c.manager.Refresh(raw)
	if err != nil {
		httperrors.WriteError(w, mapServiceError(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, dto.SessionRefreshResponse{
		SessionToken:     signed,
		ExpiresInSeconds: int64(sess.Timeout.Seconds()),
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
