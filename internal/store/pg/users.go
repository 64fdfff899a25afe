package pg

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/dramgate/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func (s *Store) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM account WHERE id = $1
	`, uid)
	return scanUser(row)
}

func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*repository.User, error) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM account
		WHERE lower(username) = $1 OR lower(email) = $1
	`, id)
	return scanUser(row)
}

func (s *Store) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	uid := uuid.New()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO account (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, password_hash, created_at
	`, uid, input.Username, strings.ToLower(input.Email), input.PasswordHash)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `UPDATE account SET password_hash = $2 WHERE id = $1`, uid, newHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*repository.User, error) {
	var u repository.User
	var uid uuid.UUID
	if err := row.Scan(&uid, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.ID = uid.String()
	return &u, nil
}
