package middlewares

import (
	"errors"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/dramgate/internal/http/errors"
	"github.com/dropDatabas3/dramgate/internal/observability/logger"
	"github.com/dropDatabas3/dramgate/internal/session"
)

// WithSessionAuth valida el token Bearer con el session.Manager y deja la
// sesión en el contexto. Sin token válido el request no pasa.
func WithSessionAuth(mgr *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("missing bearer token"))
				return
			}

			sess, err := mgr.Parse(raw)
			if err != nil {
				if errors.Is(err, session.ErrSessionExpired) {
					httperrors.WriteError(w, httperrors.ErrSessionExpired)
					return
				}
				logger.From(r.Context()).Warn("session token rejected", logger.Err(err))
				httperrors.WriteError(w, httperrors.ErrTokenInvalid)
				return
			}

			ctx := WithSession(r.Context(), sess)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(sess.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extrae el token del header Authorization.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
