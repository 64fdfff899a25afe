package session

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("un-secreto-de-test-suficiente-32b")

func TestManager_IssueParseRoundtrip(t *testing.T) {
	m := NewManager(testSecret, time.Hour, 5*time.Minute)

	signed, sess, err := m.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if sess.UserID != "user-123" || sess.Timeout != time.Hour {
		t.Fatalf("unexpected session: %+v", sess)
	}

	parsed, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.UserID != "user-123" {
		t.Fatalf("UserID = %s", parsed.UserID)
	}
	// iat viaja en segundos; el issued-at reconstruido queda truncado.
	if d := sess.IssuedAt.Sub(parsed.IssuedAt); d < 0 || d >= time.Second {
		t.Fatalf("IssuedAt drift = %v", d)
	}
}

func TestManager_ParseRejectsGarbage(t *testing.T) {
	m := NewManager(testSecret, time.Hour, 5*time.Minute)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.Parse(tok); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Parse(%q) = %v, want ErrTokenInvalid", tok, err)
		}
	}
}

func TestManager_ParseRejectsForeignSignature(t *testing.T) {
	m := NewManager(testSecret, time.Hour, 5*time.Minute)
	other := NewManager([]byte("otro-secreto-distinto-tambien-32"), time.Hour, 5*time.Minute)

	signed, _, err := other.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Parse(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Parse = %v, want ErrTokenInvalid", err)
	}
}

func TestManager_ExpiredToken(t *testing.T) {
	// Timeout negativo: el token nace expirado.
	m := NewManager(testSecret, -time.Hour, 5*time.Minute)
	signed, _, err := m.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := m.Parse(signed); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Parse = %v, want ErrSessionExpired", err)
	}

	// Refrescar una sesión expirada falla, no re-emite.
	if _, _, err := m.Refresh(signed); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Refresh = %v, want ErrSessionExpired", err)
	}
}

func TestManager_RefreshReissues(t *testing.T) {
	m := NewManager(testSecret, time.Hour, 5*time.Minute)
	signed, orig, err := m.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	fresh, sess, err := m.Refresh(signed)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sess.UserID != "user-123" {
		t.Fatalf("UserID = %s", sess.UserID)
	}
	if sess.IssuedAt.Before(orig.IssuedAt) {
		t.Fatal("refreshed session must not be older than the original")
	}
	if _, err := m.Parse(fresh); err != nil {
		t.Fatalf("Parse(refreshed): %v", err)
	}
}

func TestManager_Status(t *testing.T) {
	m := NewManager(testSecret, time.Hour, 10*time.Minute)
	issued := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sess := Session{UserID: "u1", IssuedAt: issued, Timeout: time.Hour}

	info := m.Status(sess, issued.Add(55*time.Minute))
	if info.TimeRemaining != 5*time.Minute {
		t.Fatalf("TimeRemaining = %v", info.TimeRemaining)
	}
	if !info.NeedsWarning {
		t.Fatal("5m remaining with 10m warning window must warn")
	}

	info = m.Status(sess, issued.Add(10*time.Minute))
	if info.NeedsWarning {
		t.Fatal("50m remaining must not warn")
	}
}
