package controllers

import (
	"context"
	"net/http"
	"time"
)

// Pinger abstrae un backend con health check (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController handles liveness/readiness probes.
type HealthController struct {
	deps map[string]Pinger
}

// NewHealthController crea el controller. deps mapea nombre -> backend.
func NewHealthController(deps map[string]Pinger) *HealthController {
	return &HealthController{deps: deps}
}

// Healthz handles GET /healthz. Liveness: responde siempre que el proceso
// esté vivo.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. Readiness: verifica los backends con un
// timeout corto.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(c.deps))
	for name, p := range c.deps {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, status, checks)
}
