// Package session gestiona el ciclo de vida de las sesiones: edad, ventanas
// de expiración/refresh, auto-logout por inactividad y polling de estado.
//
// Una sesión no se persiste: se reconstruye desde el issued-at (iat) de un
// token firmado. El servidor es la autoridad sobre la expiración; el watcher
// de inactividad es contabilidad local independiente.
package session

import "time"

// Session es una sesión reconstruida desde un token.
type Session struct {
	UserID   string
	IssuedAt time.Time
	Timeout  time.Duration
}

// Age retorna cuánto vivió la sesión hasta now.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.IssuedAt)
}

// Valid reporta si la sesión sigue viva: age < timeout.
func (s Session) Valid(now time.Time) bool {
	return s.Age(now) < s.Timeout
}

// TimeUntilExpiry retorna cuánto falta para expirar, con piso en cero.
func (s Session) TimeUntilExpiry(now time.Time) time.Duration {
	d := s.Timeout - s.Age(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsExpiring reporta si la sesión entró en la ventana de aviso:
// timeout - age < warning.
func (s Session) IsExpiring(now time.Time, warning time.Duration) bool {
	return s.Timeout-s.Age(now) < warning
}
