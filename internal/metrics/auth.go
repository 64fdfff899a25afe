// Package metrics registra los contadores Prometheus del servicio.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts cuenta logins por resultado:
	// ok | second_factor_required | failed.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dramgate",
		Name:      "login_attempts_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	// SecondFactorAttempts cuenta validaciones de segundo factor por
	// método (totp | backup) y resultado (ok | failed).
	SecondFactorAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dramgate",
		Name:      "second_factor_attempts_total",
		Help:      "Second-factor validations by method and result.",
	}, []string{"method", "result"})

	// TwoFactorEnrollments cuenta transiciones del enrollment:
	// begin | verify_failed | enabled | disabled.
	TwoFactorEnrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dramgate",
		Name:      "two_factor_enrollments_total",
		Help:      "Two-factor enrollment state transitions.",
	}, []string{"event"})

	// SessionRefreshes cuenta refresh de sesión por resultado (ok | expired).
	SessionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dramgate",
		Name:      "session_refreshes_total",
		Help:      "Session refresh attempts by result.",
	}, []string{"result"})
)
