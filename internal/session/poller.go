package session

import (
	"context"
	"time"
)

// MinPollInterval es el piso del intervalo de polling de estado. Consultar
// más seguido no aporta nada y castiga al backend.
const MinPollInterval = 5 * time.Minute

// Poller invoca fn periódicamente para refrescar el snapshot de estado de
// sesión (aviso de expiración, logout forzado).
type Poller struct {
	interval time.Duration
	fn       func(context.Context)
}

// NewPoller crea un Poller. Intervalos menores a MinPollInterval se elevan
// al piso.
func NewPoller(interval time.Duration, fn func(context.Context)) *Poller {
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &Poller{interval: interval, fn: fn}
}

// Run bloquea ejecutando fn cada intervalo hasta que se cancele ctx.
// El primer tick ocurre tras un intervalo completo, no de inmediato.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fn(ctx)
		}
	}
}
