package session

import (
	"context"
	"testing"
	"time"
)

func TestWatcher_FiresAfterInactivity(t *testing.T) {
	fired := make(chan struct{})
	w := NewWatcher(30*time.Millisecond, func() { close(fired) })

	go w.Run(context.Background())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never fired")
	}
}

func TestWatcher_ActivityResetsTimer(t *testing.T) {
	fired := make(chan struct{})
	w := NewWatcher(80*time.Millisecond, func() { close(fired) })

	go w.Run(context.Background())

	// Actividad constante por más que el timeout: no debe disparar.
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		w.Activity()
		select {
		case <-fired:
			t.Fatal("fired despite constant activity")
		case <-time.After(20 * time.Millisecond):
		}
	}

	// Al cesar la actividad, dispara.
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never fired after activity stopped")
	}
}

func TestWatcher_StopPreventsCallback(t *testing.T) {
	fired := make(chan struct{})
	w := NewWatcher(50*time.Millisecond, func() { close(fired) })

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	w.Stop()
	w.Stop() // idempotente

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	select {
	case <-fired:
		t.Fatal("callback fired after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_ContextCancel(t *testing.T) {
	w := NewWatcher(time.Hour, func() { t.Error("must not fire") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on context cancel")
	}
}

func TestWatcher_ActivityNeverBlocks(t *testing.T) {
	w := NewWatcher(time.Hour, nil)
	// Sin Run corriendo: señales repetidas no deben bloquear al caller.
	for i := 0; i < 100; i++ {
		w.Activity()
	}
}

func TestPoller_RunsAndStops(t *testing.T) {
	// El piso de 5m hace inviable un test de ticks reales; se valida que
	// Run respete la cancelación.
	p := NewPoller(MinPollInterval, func(ctx context.Context) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on cancel")
	}
}
