// Package twofactor coordinates TOTP enrollment, verification and
// post-activation management for a user's second factor.
//
// The enrollment state machine is derived from the stored credential:
//
//	not_started -> awaiting_verification -> enabled
//
// Begin moves to awaiting_verification (discarding any in-flight pending
// secret), Verify promotes to enabled, Cancel returns to not_started from
// any non-enabled state.
package twofactor

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/dramgate/internal/domain/repository"
	"github.com/dropDatabas3/dramgate/internal/email"
	"github.com/dropDatabas3/dramgate/internal/metrics"
	"github.com/dropDatabas3/dramgate/internal/observability/logger"
	"github.com/dropDatabas3/dramgate/internal/security/password"
	"github.com/dropDatabas3/dramgate/internal/security/secretbox"
	tokens "github.com/dropDatabas3/dramgate/internal/security/token"
	"github.com/dropDatabas3/dramgate/internal/security/totp"
	"go.uber.org/zap"
)

// BackupCodeCount is the size of every freshly issued backup-code set.
const BackupCodeCount = 10

// Service errors.
var (
	ErrFeatureDisabled = errors.New("two-factor authentication is disabled sitewide")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidCode     = errors.New("invalid code")
	ErrMalformedCode   = errors.New("malformed code")
	ErrNotEnrolled     = errors.New("no enrollment in progress")
	ErrNotEnabled      = errors.New("two-factor authentication not enabled")
	ErrAlreadyEnabled  = errors.New("two-factor authentication already enabled")
	ErrStaleEnrollment = errors.New("enrollment superseded by a newer attempt")
	ErrUserNotFound    = errors.New("user not found")
	ErrCryptoFailed    = errors.New("cryptographic operation failed")
	ErrStoreFailed     = errors.New("credential store failed")
)

// BeginResult carries the enrollment material shown to the user exactly once.
type BeginResult struct {
	SecretBase32    string
	ProvisioningURI string
}

// VerifyResult carries the freshly generated backup codes, returned exactly once.
type VerifyResult struct {
	BackupCodes []string
}

// RotateResult carries a regenerated backup-code set, returned exactly once.
type RotateResult struct {
	BackupCodes []string
}

// Status is the user-facing two-factor state.
type Status struct {
	Enabled         bool
	SitewideEnabled bool
	State           repository.TwoFactorState
	BackupCodesLeft int
}

// Service drives enrollment and management of a user's second factor.
type Service interface {
	// Begin starts (or restarts) enrollment. Requires the current password.
	Begin(ctx context.Context, userID, currentPassword string) (*BeginResult, error)

	// Verify confirms enrollment with a live TOTP code and enables the
	// second factor, returning a brand-new backup-code set.
	Verify(ctx context.Context, userID, code string) (*VerifyResult, error)

	// Cancel discards any pending enrollment.
	Cancel(ctx context.Context, userID string) error

	// Status reports the per-user and sitewide state.
	Status(ctx context.Context, userID string) (*Status, error)

	// Disable turns the second factor off. Requires the current password.
	Disable(ctx context.Context, userID, currentPassword string) error

	// RegenerateBackupCodes replaces the whole backup-code set atomically.
	// Requires the current password. Old codes become unusable immediately.
	RegenerateBackupCodes(ctx context.Context, userID, currentPassword string) (*RotateResult, error)

	// ValidateSecondFactor accepts either a live TOTP code or a one-time
	// backup code. A matched backup code is burned on the spot.
	ValidateSecondFactor(ctx context.Context, userID, code, backupCode string) error
}

// Deps contains the service dependencies.
type Deps struct {
	Users    repository.UserRepository
	Creds    repository.TwoFactorRepository
	Box      *secretbox.Box
	Issuer   string
	Window   int // TOTP drift tolerance in steps (±)
	Sitewide bool
	Notifier *email.SecurityNotifier // nil = no notifications
}

type service struct {
	users    repository.UserRepository
	creds    repository.TwoFactorRepository
	box      *secretbox.Box
	issuer   string
	window   int
	sitewide bool
	notifier *email.SecurityNotifier
}

// NewService creates the two-factor service.
func NewService(d Deps) Service {
	return &service{
		users:    d.Users,
		creds:    d.Creds,
		box:      d.Box,
		issuer:   d.Issuer,
		window:   d.Window,
		sitewide: d.Sitewide,
		notifier: d.Notifier,
	}
}

func (s *service) Begin(ctx context.Context, userID, currentPassword string) (*BeginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.begin"), logger.UserID(userID))

	if !s.sitewide {
		return nil, ErrFeatureDisabled
	}

	user, err := s.reauthenticate(ctx, userID, currentPassword, log)
	if err != nil {
		return nil, err
	}

	if cred, err := s.creds.GetCredential(ctx, userID); err == nil && cred.Enabled {
		return nil, ErrAlreadyEnabled
	} else if err != nil && !repository.IsNotFound(err) {
		log.Error("failed to load credential", logger.Err(err))
		return nil, ErrStoreFailed
	}

	_, b32, err := totp.GenerateSecret()
	if err != nil {
		log.Error("failed to generate TOTP secret", logger.Err(err))
		return nil, ErrCryptoFailed
	}

	enc, err := s.box.Encrypt(b32)
	if err != nil {
		log.Error("failed to encrypt TOTP secret", logger.Err(err))
		return nil, ErrCryptoFailed
	}

	// Any previously pending secret is discarded here: one enrollment in
	// flight per user, the last writer wins.
	if err := s.creds.SetPendingSecret(ctx, userID, enc); err != nil {
		log.Error("failed to store pending secret", logger.Err(err))
		return nil, ErrStoreFailed
	}

	metrics.TwoFactorEnrollments.WithLabelValues("begin").Inc()
	log.Info("enrollment started")

	return &BeginResult{
		SecretBase32:    b32,
		ProvisioningURI: totp.ProvisioningURI(s.issuer, user.Email, b32),
	}, nil
}

func (s *service) Verify(ctx context.Context, userID, code string) (*VerifyResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.verify"), logger.UserID(userID))

	if !s.sitewide {
		return nil, ErrFeatureDisabled
	}
	code = strings.TrimSpace(code)
	if len(code) != totp.Digits {
		return nil, ErrMalformedCode
	}

	cred, err := s.creds.GetCredential(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotEnrolled
		}
		log.Error("failed to load credential", logger.Err(err))
		return nil, ErrStoreFailed
	}
	if cred.PendingEncrypted == "" {
		return nil, ErrNotEnrolled
	}

	raw, err := s.decryptSecret(cred.PendingEncrypted, log)
	if err != nil {
		return nil, err
	}

	ok, counter := totp.Verify(raw, code, timeNow(), s.window, nil)
	if !ok {
		log.Warn("invalid TOTP code during enrollment")
		metrics.TwoFactorEnrollments.WithLabelValues("verify_failed").Inc()
		return nil, ErrInvalidCode
	}

	plain, hashes, err := tokens.GenerateBackupCodes(BackupCodeCount)
	if err != nil {
		log.Error("failed to generate backup codes", logger.Err(err))
		return nil, ErrCryptoFailed
	}

	// CAS on the pending secret: if a newer Begin replaced it after we read,
	// promotion fails cleanly instead of enabling a discarded secret.
	if err := s.creds.PromotePendingSecret(ctx, userID, cred.PendingEncrypted, hashes); err != nil {
		switch {
		case repository.IsConflict(err):
			log.Warn("pending secret superseded during verification")
			return nil, ErrStaleEnrollment
		case repository.IsNotFound(err):
			return nil, ErrNotEnrolled
		default:
			log.Error("failed to promote pending secret", logger.Err(err))
			return nil, ErrStoreFailed
		}
	}

	if err := s.creds.UpdateLastCounter(ctx, userID, counter); err != nil {
		// Anti-replay bookkeeping only; the credential is already enabled.
		log.Warn("failed to persist last counter", logger.Err(err))
	}

	metrics.TwoFactorEnrollments.WithLabelValues("enabled").Inc()
	log.Info("two-factor enabled", zap.Int64("counter", counter))
	s.notify(ctx, userID, (*email.SecurityNotifier).TwoFactorEnabled)

	return &VerifyResult{BackupCodes: plain}, nil
}

func (s *service) Cancel(ctx context.Context, userID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.cancel"), logger.UserID(userID))
	if err := s.creds.ClearPendingSecret(ctx, userID); err != nil {
		log.Error("failed to clear pending secret", logger.Err(err))
		return ErrStoreFailed
	}
	log.Info("enrollment cancelled")
	return nil
}

func (s *service) Status(ctx context.Context, userID string) (*Status, error) {
	st := &Status{SitewideEnabled: s.sitewide, State: repository.TwoFactorNotStarted}

	cred, err := s.creds.GetCredential(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return st, nil
		}
		return nil, ErrStoreFailed
	}

	st.Enabled = cred.Enabled
	st.State = cred.State()
	if cred.Enabled {
		if n, err := s.creds.CountBackupCodes(ctx, userID); err == nil {
			st.BackupCodesLeft = n
		}
	}
	return st, nil
}

func (s *service) Disable(ctx context.Context, userID, currentPassword string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.disable"), logger.UserID(userID))

	if _, err := s.reauthenticate(ctx, userID, currentPassword, log); err != nil {
		return err
	}

	// Secret, flag and backup codes go away in one atomic operation.
	if err := s.creds.Disable(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return ErrNotEnabled
		}
		log.Error("failed to disable two-factor", logger.Err(err))
		return ErrStoreFailed
	}

	metrics.TwoFactorEnrollments.WithLabelValues("disabled").Inc()
	log.Info("two-factor disabled")
	s.notify(ctx, userID, (*email.SecurityNotifier).TwoFactorDisabled)
	return nil
}

func (s *service) RegenerateBackupCodes(ctx context.Context, userID, currentPassword string) (*RotateResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.rotate_codes"), logger.UserID(userID))

	if _, err := s.reauthenticate(ctx, userID, currentPassword, log); err != nil {
		return nil, err
	}

	cred, err := s.creds.GetCredential(ctx, userID)
	if err != nil || !cred.Enabled {
		if err != nil && !repository.IsNotFound(err) {
			log.Error("failed to load credential", logger.Err(err))
			return nil, ErrStoreFailed
		}
		return nil, ErrNotEnabled
	}

	plain, hashes, err := tokens.GenerateBackupCodes(BackupCodeCount)
	if err != nil {
		log.Error("failed to generate backup codes", logger.Err(err))
		return nil, ErrCryptoFailed
	}

	if err := s.creds.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		log.Error("failed to store backup codes", logger.Err(err))
		return nil, ErrStoreFailed
	}

	log.Info("backup codes regenerated", logger.Count(BackupCodeCount))
	s.notify(ctx, userID, (*email.SecurityNotifier).BackupCodesRegenerated)

	return &RotateResult{BackupCodes: plain}, nil
}

func (s *service) ValidateSecondFactor(ctx context.Context, userID, code, backupCode string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.validate"), logger.UserID(userID))

	if backupCode = strings.TrimSpace(backupCode); backupCode != "" {
		// Burn on attempt: a presented code is consumed by the same
		// statement that matches it, so it can never be replayed even if
		// the surrounding login fails later.
		hash := tokens.SHA256Base64URL(backupCode)
		ok, err := s.creds.UseBackupCode(ctx, userID, hash)
		if err != nil {
			log.Error("failed to use backup code", logger.Err(err))
			return ErrStoreFailed
		}
		if !ok {
			metrics.SecondFactorAttempts.WithLabelValues("backup", "failed").Inc()
			return ErrInvalidCode
		}
		metrics.SecondFactorAttempts.WithLabelValues("backup", "ok").Inc()
		log.Info("backup code accepted")
		return nil
	}

	code = strings.TrimSpace(code)
	if len(code) != totp.Digits {
		return ErrMalformedCode
	}

	cred, err := s.creds.GetCredential(ctx, userID)
	if err != nil || !cred.Enabled || cred.SecretEncrypted == "" {
		if err != nil && !repository.IsNotFound(err) {
			log.Error("failed to load credential", logger.Err(err))
			return ErrStoreFailed
		}
		return ErrNotEnabled
	}

	raw, err := s.decryptSecret(cred.SecretEncrypted, log)
	if err != nil {
		return err
	}

	ok, counter := totp.Verify(raw, code, timeNow(), s.window, cred.LastCounter)
	if !ok {
		metrics.SecondFactorAttempts.WithLabelValues("totp", "failed").Inc()
		return ErrInvalidCode
	}

	if err := s.creds.UpdateLastCounter(ctx, userID, counter); err != nil {
		log.Warn("failed to persist last counter", logger.Err(err))
	}
	metrics.SecondFactorAttempts.WithLabelValues("totp", "ok").Inc()
	return nil
}

// reauthenticate gates sensitive operations behind the current password.
// Failures report only "invalid password", never which check tripped.
func (s *service) reauthenticate(ctx context.Context, userID, currentPassword string, log *zap.Logger) (*repository.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("user not found")
			return nil, ErrUserNotFound
		}
		log.Error("failed to load user", logger.Err(err))
		return nil, ErrStoreFailed
	}
	if currentPassword == "" || !password.Verify(currentPassword, user.PasswordHash) {
		log.Warn("password re-authentication failed")
		return nil, ErrInvalidPassword
	}
	return user, nil
}

func (s *service) decryptSecret(enc string, log *zap.Logger) ([]byte, error) {
	plain, err := s.box.Decrypt(enc)
	if err != nil {
		log.Error("failed to decrypt TOTP secret", logger.Err(err))
		return nil, ErrCryptoFailed
	}
	raw, err := totp.DecodeSecret(plain)
	if err != nil {
		log.Error("failed to decode TOTP secret", logger.Err(err))
		return nil, ErrCryptoFailed
	}
	return raw, nil
}

func (s *service) notify(ctx context.Context, userID string, fn func(*email.SecurityNotifier, context.Context, string) error) {
	if s.notifier == nil {
		return
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return
	}
	if err := fn(s.notifier, ctx, user.Email); err != nil {
		logger.From(ctx).Warn("security notification failed", logger.Err(err))
	}
}
