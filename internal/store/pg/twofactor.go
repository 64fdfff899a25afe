package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/dramgate/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) GetCredential(ctx context.Context, userID string) (*repository.TwoFactorCredential, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, secret_encrypted, pending_encrypted, enabled, last_counter, confirmed_at, updated_at
		FROM two_factor_credential WHERE user_id = $1
	`, uid)
	var c repository.TwoFactorCredential
	var cuid uuid.UUID
	if err := row.Scan(&cuid, &c.SecretEncrypted, &c.PendingEncrypted, &c.Enabled, &c.LastCounter, &c.ConfirmedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	c.UserID = cuid.String()
	return &c, nil
}

func (s *Store) SetPendingSecret(ctx context.Context, userID, secretEnc string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return repository.ErrNotFound
	}
	// Un upsert alcanza: el pendiente anterior se pisa en la misma sentencia,
	// con lo que nunca conviven dos enrollments en vuelo.
	_, err = s.pool.Exec(ctx, `
		INSERT INTO two_factor_credential (user_id, pending_encrypted)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET pending_encrypted = EXCLUDED.pending_encrypted,
		              updated_at = now()
	`, uid, secretEnc)
	return err
}

func (s *Store) PromotePendingSecret(ctx context.Context, userID, expectedPendingEnc string, backupHashes []string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return repository.ErrNotFound
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Row lock: serializa contra begin()/verify() concurrentes del mismo usuario.
	var pending string
	err = tx.QueryRow(ctx, `
		SELECT pending_encrypted FROM two_factor_credential
		WHERE user_id = $1 FOR UPDATE
	`, uid).Scan(&pending)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	if pending == "" {
		return repository.ErrNotFound
	}
	if pending != expectedPendingEnc {
		// El pendiente que el caller verificó ya fue descartado por otro begin().
		return repository.ErrConflict
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE two_factor_credential
		SET secret_encrypted = pending_encrypted,
		    pending_encrypted = '',
		    enabled = TRUE,
		    confirmed_at = $2,
		    updated_at = $2
		WHERE user_id = $1
	`, uid, now); err != nil {
		return err
	}
	if err := replaceCodesTx(ctx, tx, uid, backupHashes); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ClearPendingSecret(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return repository.ErrNotFound
	}
	if _, err := s.pool.Exec(ctx, `
		UPDATE two_factor_credential
		SET pending_encrypted = '', updated_at = now()
		WHERE user_id = $1
	`, uid); err != nil {
		return err
	}
	// Filas que nunca llegaron a habilitarse no dejan rastro.
	_, err = s.pool.Exec(ctx, `
		DELETE FROM two_factor_credential
		WHERE user_id = $1 AND enabled = FALSE AND secret_encrypted = '' AND pending_encrypted = ''
	`, uid)
	return err
}

func (s *Store) Disable(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return repository.ErrNotFound
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM two_factor_credential WHERE user_id = $1 AND enabled = TRUE
	`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_backup_code WHERE user_id = $1`, uid); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) UpdateLastCounter(ctx context.Context, userID string, counter int64) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return repository.ErrNotFound
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE two_factor_credential SET last_counter = $2, updated_at = now() WHERE user_id = $1
	`, uid, counter)
	return err
}

// ─── Backup codes ───

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return repository.ErrNotFound
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := replaceCodesTx(ctx, tx, uid, hashes); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) UseBackupCode(ctx context.Context, userID, hash string) (bool, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}
	// El quemado y el match ocurren en la misma sentencia: un code presentado
	// se consume aunque el resto de la operación falle después.
	tag, err := s.pool.Exec(ctx, `
		UPDATE two_factor_backup_code
		SET used_at = now()
		WHERE user_id = $1 AND code_hash = $2 AND used_at IS NULL
	`, uid, hash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return 0, nil
	}
	var n int
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(1) FROM two_factor_backup_code
		WHERE user_id = $1 AND used_at IS NULL
	`, uid).Scan(&n)
	return n, err
}

func replaceCodesTx(ctx context.Context, tx pgx.Tx, uid uuid.UUID, hashes []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_backup_code WHERE user_id = $1`, uid); err != nil {
		return err
	}
	if len(hashes) == 0 {
		return nil
	}
	var b pgx.Batch
	for _, h := range hashes {
		b.Queue(`INSERT INTO two_factor_backup_code (user_id, code_hash) VALUES ($1, $2)`, uid, h)
	}
	br := tx.SendBatch(ctx, &b)
	for range hashes {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}
