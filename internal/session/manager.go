package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/dramgate/internal/metrics"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Errores del manager.
var (
	ErrTokenInvalid   = errors.New("session token invalid")
	ErrSessionExpired = errors.New("session expired")
)

// Manager emite y valida tokens de sesión firmados (HS256).
// El token lleva sub/iat/exp/jti; la sesión se reconstruye desde iat.
type Manager struct {
	secret  []byte
	timeout time.Duration
	warning time.Duration
}

// NewManager crea un Manager. warning es la ventana de aviso de expiración.
func NewManager(secret []byte, timeout, warning time.Duration) *Manager {
	return &Manager{secret: secret, timeout: timeout, warning: warning}
}

// Timeout expone la vida máxima configurada.
func (m *Manager) Timeout() time.Duration { return m.timeout }

// WarningWindow expone la ventana de aviso configurada.
func (m *Manager) WarningWindow() time.Duration { return m.warning }

// Issue emite un token nuevo con issued_at = now.
func (m *Manager) Issue(userID string) (string, Session, error) {
	now := time.Now().UTC()
	claims := jwtv5.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(m.timeout).Unix(),
		"jti": uuid.NewString(),
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, Session{UserID: userID, IssuedAt: now, Timeout: m.timeout}, nil
}

// Parse valida firma y expiración y reconstruye la sesión desde iat.
// Un token expirado retorna ErrSessionExpired; cualquier otro problema,
// ErrTokenInvalid.
func (m *Manager) Parse(tokenStr string) (Session, error) {
	tok, err := jwtv5.Parse(tokenStr, func(t *jwtv5.Token) (any, error) {
		return m.secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, ErrTokenInvalid
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return Session{}, ErrTokenInvalid
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Session{}, ErrTokenInvalid
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return Session{}, ErrTokenInvalid
	}

	return Session{UserID: sub, IssuedAt: iat.Time, Timeout: m.timeout}, nil
}

// Refresh emite un token nuevo (issued_at = now) solo si el actual sigue
// válido. Refrescar una sesión ya expirada falla con ErrSessionExpired.
func (m *Manager) Refresh(tokenStr string) (string, Session, error) {
	sess, err := m.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			metrics.SessionRefreshes.WithLabelValues("expired").Inc()
		}
		return "", Session{}, err
	}
	if !sess.Valid(time.Now().UTC()) {
		metrics.SessionRefreshes.WithLabelValues("expired").Inc()
		return "", Session{}, ErrSessionExpired
	}
	signed, fresh, err := m.Issue(sess.UserID)
	if err != nil {
		return "", Session{}, err
	}
	metrics.SessionRefreshes.WithLabelValues("ok").Inc()
	return signed, fresh, nil
}

// StatusInfo es el snapshot inmutable de estado que consume el poller y la UI.
type StatusInfo struct {
	UserID        string
	IssuedAt      time.Time
	Timeout       time.Duration
	TimeRemaining time.Duration
	NeedsWarning  bool
}

// Status calcula el snapshot de estado de una sesión.
func (m *Manager) Status(sess Session, now time.Time) StatusInfo {
	return StatusInfo{
		UserID:        sess.UserID,
		IssuedAt:      sess.IssuedAt,
		Timeout:       sess.Timeout,
		TimeRemaining: sess.TimeUntilExpiry(now),
		NeedsWarning:  sess.IsExpiring(now, m.warning),
	}
}
