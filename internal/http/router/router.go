// Package router arma el árbol de rutas de la API pública.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/dramgate/internal/http/controllers"
	httperrors "github.com/dropDatabas3/dramgate/internal/http/errors"
	mw "github.com/dropDatabas3/dramgate/internal/http/middlewares"
	"github.com/dropDatabas3/dramgate/internal/session"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Auth     *controllers.AuthController
	MFA      *controllers.MFAController
	Session  *controllers.SessionController
	Config   *controllers.ConfigController
	Health   *controllers.HealthController
	Sessions *session.Manager
}

// New construye el router completo.
//
// Orden de middlewares: Recover → RequestID → SecurityHeaders → Logging,
// con NoStore en los grupos sensibles y SessionAuth donde se requiere
// usuario autenticado.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithSecurityHeaders())
	r.Use(mw.WithLogging())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Probes y métricas, sin auth
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Login y challenge: sin sesión todavía. no-store porque las
		// respuestas llevan tokens.
		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore())
			r.Post("/auth/login", deps.Auth.Login)
			r.Post("/auth/mfa/challenge", deps.Auth.Challenge)
		})

		// Config pública
		r.Get("/config/password-requirements", deps.Config.PasswordRequirements)

		// Gestión del segundo factor: requiere sesión
		r.Route("/mfa", func(r chi.Router) {
			r.Use(mw.WithSessionAuth(deps.Sessions))
			r.Use(mw.WithNoStore())
			r.Post("/enroll", deps.MFA.Enroll)
			r.Post("/verify", deps.MFA.Verify)
			r.Post("/cancel", deps.MFA.Cancel)
			r.Get("/status", deps.MFA.Status)
			r.Post("/disable", deps.MFA.Disable)
			r.Post("/backup-codes/rotate", deps.MFA.RotateBackupCodes)
		})

		// Sesión
		r.Route("/session", func(r chi.Router) {
			r.Use(mw.WithSessionAuth(deps.Sessions))
			r.Use(mw.WithNoStore())
			r.Get("/status", deps.Session.Status)
			r.Post("/refresh", deps.Session.Refresh)
		})
	})

	return r
}
