package twofactor

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dramgate/internal/domain/repository"
	"github.com/dropDatabas3/dramgate/internal/security/password"
	"github.com/dropDatabas3/dramgate/internal/security/secretbox"
	"github.com/dropDatabas3/dramgate/internal/security/totp"
	"github.com/dropDatabas3/dramgate/internal/store/memory"
)

const userPassword = "Sup3r.Secreta!"

var cheapParams = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

type fixture struct {
	svc   Service
	store *memory.Store
	box   *secretbox.Box
	user  *repository.User
}

func newFixture(t *testing.T, sitewide bool) *fixture {
	t.Helper()

	store := memory.New()
	box, err := secretbox.New(bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)

	phc, err := password.Hash(cheapParams, userPassword)
	require.NoError(t, err)

	user, err := store.Create(context.Background(), repository.CreateUserInput{
		Username:     "ana",
		Email:        "ana@example.com",
		PasswordHash: phc,
	})
	require.NoError(t, err)

	svc := NewService(Deps{
		Users:    store,
		Creds:    store,
		Box:      box,
		Issuer:   "dramgate-test",
		Window:   1,
		Sitewide: sitewide,
	})
	return &fixture{svc: svc, store: store, box: box, user: user}
}

// enroll corre begin+verify y devuelve el secreto crudo y los backup codes.
func (f *fixture) enroll(t *testing.T) ([]byte, []string) {
	t.Helper()
	ctx := context.Background()

	begin, err := f.svc.Begin(ctx, f.user.ID, userPassword)
	require.NoError(t, err)

	raw, err := totp.DecodeSecret(begin.SecretBase32)
	require.NoError(t, err)

	verify, err := f.svc.Verify(ctx, f.user.ID, totp.CodeAt(raw, time.Now()))
	require.NoError(t, err)
	require.Len(t, verify.BackupCodes, BackupCodeCount)

	return raw, verify.BackupCodes
}

func TestEnrollment_HappyPath(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	begin, err := f.svc.Begin(ctx, f.user.ID, userPassword)
	require.NoError(t, err)
	require.NotEmpty(t, begin.SecretBase32)
	require.Contains(t, begin.ProvisioningURI, "otpauth://totp/")
	require.Contains(t, begin.ProvisioningURI, "ana%40example.com")

	st, err := f.svc.Status(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, repository.TwoFactorAwaitingVerification, st.State)
	require.False(t, st.Enabled)

	raw, err := totp.DecodeSecret(begin.SecretBase32)
	require.NoError(t, err)
	verify, err := f.svc.Verify(ctx, f.user.ID, totp.CodeAt(raw, time.Now()))
	require.NoError(t, err)
	require.Len(t, verify.BackupCodes, BackupCodeCount)

	st, err = f.svc.Status(ctx, f.user.ID)
	require.NoError(t, err)
	require.True(t, st.Enabled)
	require.Equal(t, repository.TwoFactorEnabled, st.State)
	require.Equal(t, BackupCodeCount, st.BackupCodesLeft)
}

func TestBegin_RequiresPassword(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, f.user.ID, "incorrecta")
	require.ErrorIs(t, err, ErrInvalidPassword)

	_, err = f.svc.Begin(ctx, f.user.ID, "")
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestBegin_FeatureDisabledSitewide(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Begin(context.Background(), f.user.ID, userPassword)
	require.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestBegin_AlreadyEnabled(t *testing.T) {
	f := newFixture(t, true)
	f.enroll(t)

	_, err := f.svc.Begin(context.Background(), f.user.ID, userPassword)
	require.ErrorIs(t, err, ErrAlreadyEnabled)
}

func TestBegin_RestartDiscardsPreviousSecret(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.Begin(ctx, f.user.ID, userPassword)
	require.NoError(t, err)
	second, err := f.svc.Begin(ctx, f.user.ID, userPassword)
	require.NoError(t, err)
	require.NotEqual(t, first.SecretBase32, second.SecretBase32)

	// El código del primer secreto ya no sirve.
	rawFirst, _ := totp.DecodeSecret(first.SecretBase32)
	_, err = f.svc.Verify(ctx, f.user.ID, totp.CodeAt(rawFirst, time.Now()))
	require.ErrorIs(t, err, ErrInvalidCode)

	// El del segundo sí.
	rawSecond, _ := totp.DecodeSecret(second.SecretBase32)
	_, err = f.svc.Verify(ctx, f.user.ID, totp.CodeAt(rawSecond, time.Now()))
	require.NoError(t, err)
}

func TestVerify_WithoutEnrollment(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.Verify(context.Background(), f.user.ID, "123456")
	require.ErrorIs(t, err, ErrNotEnrolled)
}

func TestVerify_MalformedCode(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Begin(ctx, f.user.ID, userPassword)
	require.NoError(t, err)

	for _, code := range []string{"", "12345", "1234567"} {
		_, err := f.svc.Verify(ctx, f.user.ID, code)
		require.ErrorIs(t, err, ErrMalformedCode, "code %q", code)
	}
}

func TestVerify_StalePendingFailsCleanly(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, f.user.ID, userPassword)
	require.NoError(t, err)

	cred, err := f.store.GetCredential(ctx, f.user.ID)
	require.NoError(t, err)
	stale := cred.PendingEncrypted

	// Simula un begin concurrente que pisa el pendiente entre la lectura
	// del caller y su promoción: el CAS debe fallar sin habilitar el
	// secreto descartado.
	require.NoError(t, f.store.SetPendingSecret(ctx, f.user.ID, "enc-concurrente"))

	err = f.store.PromotePendingSecret(ctx, f.user.ID, stale, nil)
	require.ErrorIs(t, err, repository.ErrConflict)

	cred, err = f.store.GetCredential(ctx, f.user.ID)
	require.NoError(t, err)
	require.False(t, cred.Enabled)
	require.Equal(t, "enc-concurrente", cred.PendingEncrypted)
}

func TestCancel_ReturnsToNotStarted(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, f.user.ID, userPassword)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, f.user.ID))

	st, err := f.svc.Status(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, repository.TwoFactorNotStarted, st.State)

	// Cancelar sin enrollment en curso es un no-op.
	require.NoError(t, f.svc.Cancel(ctx, f.user.ID))
}

func TestDisable(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.enroll(t)

	require.ErrorIs(t, f.svc.Disable(ctx, f.user.ID, "incorrecta"), ErrInvalidPassword)
	require.NoError(t, f.svc.Disable(ctx, f.user.ID, userPassword))

	st, err := f.svc.Status(ctx, f.user.ID)
	require.NoError(t, err)
	require.False(t, st.Enabled)
	require.Equal(t, repository.TwoFactorNotStarted, st.State)

	// Deshabilitar de nuevo: conflicto de estado.
	require.ErrorIs(t, f.svc.Disable(ctx, f.user.ID, userPassword), ErrNotEnabled)
}

func TestRegenerateBackupCodes(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, oldCodes := f.enroll(t)

	_, err := f.svc.RegenerateBackupCodes(ctx, f.user.ID, "incorrecta")
	require.ErrorIs(t, err, ErrInvalidPassword)

	rotated, err := f.svc.RegenerateBackupCodes(ctx, f.user.ID, userPassword)
	require.NoError(t, err)
	require.Len(t, rotated.BackupCodes, BackupCodeCount)

	// Los códigos viejos quedan inutilizables en el acto.
	err = f.svc.ValidateSecondFactor(ctx, f.user.ID, "", oldCodes[0])
	require.ErrorIs(t, err, ErrInvalidCode)

	require.NoError(t, f.svc.ValidateSecondFactor(ctx, f.user.ID, "", rotated.BackupCodes[0]))
}

func TestRegenerateBackupCodes_RequiresEnabled(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.RegenerateBackupCodes(context.Background(), f.user.ID, userPassword)
	require.ErrorIs(t, err, ErrNotEnabled)
}

func TestValidateSecondFactor_TOTP(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	raw, _ := f.enroll(t)

	// El código usado para habilitar consumió su paso; avanzar uno.
	next := time.Now().Add(totp.Period * time.Second)
	code := totp.CodeAt(raw, next)

	restore := timeNow
	timeNow = func() time.Time { return next }
	defer func() { timeNow = restore }()

	require.NoError(t, f.svc.ValidateSecondFactor(ctx, f.user.ID, code, ""))

	// Replay del mismo código: rechazado por el contador anti-replay.
	require.ErrorIs(t, f.svc.ValidateSecondFactor(ctx, f.user.ID, code, ""), ErrInvalidCode)
}

func TestValidateSecondFactor_BackupCodeBurnsOnAttempt(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, codes := f.enroll(t)

	require.NoError(t, f.svc.ValidateSecondFactor(ctx, f.user.ID, "", codes[0]))

	// Un código usado no vuelve a aceptarse.
	require.ErrorIs(t, f.svc.ValidateSecondFactor(ctx, f.user.ID, "", codes[0]), ErrInvalidCode)

	st, err := f.svc.Status(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, BackupCodeCount-1, st.BackupCodesLeft)
}

func TestValidateSecondFactor_NotEnabled(t *testing.T) {
	f := newFixture(t, true)
	err := f.svc.ValidateSecondFactor(context.Background(), f.user.ID, "123456", "")
	require.ErrorIs(t, err, ErrNotEnabled)
}
