package middlewares

import (
	"context"

	"github.com/dropDatabas3/dramgate/internal/session"
)

type ctxKey string

const (
	// ctxSessionKey guarda la sesión validada por WithSessionAuth
	ctxSessionKey ctxKey = "session"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// WithSession inyecta la sesión en el contexto.
func WithSession(ctx context.Context, sess session.Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey, sess)
}

// GetSession obtiene la sesión del contexto. El bool es false si el
// middleware de auth no se aplicó o el token no validó.
func GetSession(ctx context.Context) (session.Session, bool) {
	if v := ctx.Value(ctxSessionKey); v != nil {
		if s, ok := v.(session.Session); ok {
			return s, true
		}
	}
	return session.Session{}, false
}

// GetUserID obtiene el user ID de la sesión del contexto, o cadena vacía.
func GetUserID(ctx context.Context) string {
	if s, ok := GetSession(ctx); ok {
		return s.UserID
	}
	return ""
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto, o cadena vacía.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
