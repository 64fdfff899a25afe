package repository

import (
	"context"
	"time"
)

// TwoFactorCredential es la credencial de segundo factor de un usuario.
// Existe a lo sumo una por usuario y todas sus mutaciones multi-campo son
// atómicas: nunca se observa un estado a medio escribir.
type TwoFactorCredential struct {
	UserID string

	// SecretEncrypted es el secreto TOTP activo, cifrado en reposo.
	// Vacío cuando el segundo factor no está habilitado.
	SecretEncrypted string

	// PendingEncrypted es el secreto en espera de confirmación durante un
	// enrollment. A lo sumo uno en vuelo: un nuevo enrollment lo pisa.
	PendingEncrypted string

	Enabled bool

	// LastCounter es el último paso TOTP aceptado (anti-replay).
	LastCounter *int64

	ConfirmedAt *time.Time
	UpdatedAt   time.Time
}

// State deriva el estado del enrollment a partir de la credencial.
func (c *TwoFactorCredential) State() TwoFactorState {
	switch {
	case c == nil:
		return TwoFactorNotStarted
	case c.Enabled:
		return TwoFactorEnabled
	case c.PendingEncrypted != "":
		return TwoFactorAwaitingVerification
	default:
		return TwoFactorNotStarted
	}
}

// TwoFactorState es el estado del enrollment de segundo factor.
type TwoFactorState string

const (
	TwoFactorNotStarted           TwoFactorState = "not_started"
	TwoFactorAwaitingVerification TwoFactorState = "awaiting_verification"
	TwoFactorEnabled              TwoFactorState = "enabled"
)

// TwoFactorRepository define operaciones sobre credenciales de segundo factor.
// Las implementaciones serializan las mutaciones por usuario (row lock o
// equivalente) para que dos enrollments concurrentes no se pisen.
type TwoFactorRepository interface {
	// GetCredential obtiene la credencial de un usuario.
	// Retorna ErrNotFound si nunca se inició un enrollment.
	GetCredential(ctx context.Context, userID string) (*TwoFactorCredential, error)

	// SetPendingSecret guarda un secreto pendiente de confirmación,
	// descartando cualquier pendiente anterior.
	SetPendingSecret(ctx context.Context, userID, secretEnc string) error

	// PromotePendingSecret promueve atómicamente el pendiente a secreto
	// activo, marca enabled y reemplaza los backup codes.
	// expectedPendingEnc es el pendiente que el caller verificó: si ya no
	// coincide (otro enrollment lo pisó) retorna ErrConflict; si no hay
	// pendiente retorna ErrNotFound.
	PromotePendingSecret(ctx context.Context, userID, expectedPendingEnc string, backupHashes []string) error

	// ClearPendingSecret descarta el pendiente (cancelación). No-op si no hay.
	ClearPendingSecret(ctx context.Context, userID string) error

	// Disable limpia atómicamente secreto, pendiente, flag y backup codes.
	// Retorna ErrNotFound si el usuario no tiene segundo factor habilitado.
	Disable(ctx context.Context, userID string) error

	// UpdateLastCounter persiste el último paso TOTP aceptado (anti-replay).
	UpdateLastCounter(ctx context.Context, userID string, counter int64) error

	// ─── Backup codes ───

	// ReplaceBackupCodes reemplaza el set completo en una sola operación;
	// los códigos anteriores quedan inutilizables de inmediato.
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error

	// UseBackupCode quema un backup code por hash. Retorna true si existía
	// y no estaba usado; el quemado ocurre en el mismo paso que el match.
	UseBackupCode(ctx context.Context, userID, hash string) (bool, error)

	// CountBackupCodes retorna cuántos codes sin usar le quedan al usuario.
	CountBackupCodes(ctx context.Context, userID string) (int, error)
}
