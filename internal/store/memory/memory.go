// Package memory implementa los repositorios de dominio en memoria.
//
// Pensado para desarrollo y tests. Un solo mutex serializa todas las
// mutaciones, lo que de paso garantiza la serialización por usuario que
// exige el contrato de TwoFactorRepository.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/dramgate/internal/domain/repository"
	"github.com/google/uuid"
)

type backupCode struct {
	hash   string
	usedAt *time.Time
}

// Store implementa UserRepository y TwoFactorRepository en memoria.
type Store struct {
	mu          sync.Mutex
	users       map[string]*repository.User                // por ID
	credentials map[string]*repository.TwoFactorCredential // por userID
	codes       map[string][]backupCode                    // por userID
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		users:       map[string]*repository.User{},
		credentials: map[string]*repository.TwoFactorCredential{},
		codes:       map[string][]backupCode{},
	}
}

// ─── UserRepository ───

func (s *Store) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*repository.User, error) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.ToLower(u.Username) == id || strings.ToLower(u.Email) == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, input.Username) || strings.EqualFold(u.Email, input.Email) {
			return nil, repository.ErrConflict
		}
	}
	u := &repository.User{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        strings.ToLower(input.Email),
		PasswordHash: input.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = newHash
	return nil
}

// ─── TwoFactorRepository ───

func (s *Store) GetCredential(ctx context.Context, userID string) (*repository.TwoFactorCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	if c.LastCounter != nil {
		lc := *c.LastCounter
		cp.LastCounter = &lc
	}
	return &cp, nil
}

func (s *Store) SetPendingSecret(ctx context.Context, userID, secretEnc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[userID]
	if !ok {
		c = &repository.TwoFactorCredential{UserID: userID}
		s.credentials[userID] = c
	}
	// Pisa cualquier pendiente anterior: un solo enrollment en vuelo.
	c.PendingEncrypted = secretEnc
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) PromotePendingSecret(ctx context.Context, userID, expectedPendingEnc string, backupHashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[userID]
	if !ok || c.PendingEncrypted == "" {
		return repository.ErrNotFound
	}
	if c.PendingEncrypted != expectedPendingEnc {
		// Otro begin() pisó el pendiente después de que el caller lo leyó.
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	c.SecretEncrypted = c.PendingEncrypted
	c.PendingEncrypted = ""
	c.Enabled = true
	c.ConfirmedAt = &now
	c.UpdatedAt = now
	s.replaceCodesLocked(userID, backupHashes)
	return nil
}

func (s *Store) ClearPendingSecret(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[userID]
	if !ok {
		return nil
	}
	c.PendingEncrypted = ""
	c.UpdatedAt = time.Now().UTC()
	if !c.Enabled && c.SecretEncrypted == "" {
		delete(s.credentials, userID)
	}
	return nil
}

func (s *Store) Disable(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[userID]
	if !ok || !c.Enabled {
		return repository.ErrNotFound
	}
	delete(s.credentials, userID)
	delete(s.codes, userID)
	_ = c
	return nil
}

func (s *Store) UpdateLastCounter(ctx context.Context, userID string, counter int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[userID]
	if !ok {
		return repository.ErrNotFound
	}
	c.LastCounter = &counter
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCodesLocked(userID, hashes)
	return nil
}

func (s *Store) UseBackupCode(ctx context.Context, userID, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.codes[userID]
	for i := range list {
		if list[i].hash == hash && list[i].usedAt == nil {
			now := time.Now().UTC()
			list[i].usedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.codes[userID] {
		if c.usedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) replaceCodesLocked(userID string, hashes []string) {
	list := make([]backupCode, 0, len(hashes))
	for _, h := range hashes {
		list = append(list, backupCode{hash: h})
	}
	s.codes[userID] = list
}
