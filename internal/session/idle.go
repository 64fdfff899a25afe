package session

import (
	"context"
	"sync"
	"time"
)

// Watcher dispara un callback tras un período de inactividad. Las fuentes de
// actividad (HTTP, websockets, lo que sea) solo llaman Activity(); el watcher
// no sabe ni le importa de dónde viene la señal.
type Watcher struct {
	timeout  time.Duration
	onIdle   func()
	activity chan struct{}
	stop     chan struct{}
	once     sync.Once
}

// NewWatcher crea un Watcher detenido. Llamar Run para armarlo.
func NewWatcher(timeout time.Duration, onIdle func()) *Watcher {
	return &Watcher{
		timeout:  timeout,
		onIdle:   onIdle,
		activity: make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Activity registra actividad y resetea el timer. Nunca bloquea: si ya hay
// una señal pendiente, la nueva se descarta (el efecto es el mismo).
func (w *Watcher) Activity() {
	select {
	case w.activity <- struct{}{}:
	default:
	}
}

// Stop desarma el watcher sin disparar el callback. Idempotente.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
}

// Run bloquea hasta que expire el timeout de inactividad (dispara onIdle y
// retorna), o hasta que se cancele ctx o se llame Stop.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-w.activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.timeout)
		case <-timer.C:
			if w.onIdle != nil {
				w.onIdle()
			}
			return
		}
	}
}
