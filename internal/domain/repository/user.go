// Package repository define las interfaces de acceso a datos del dominio.
//
// Las interfaces son contratos de negocio, independientes del almacenamiento
// subyacente. Las implementaciones concretas viven en internal/store/.
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - Errores de dominio están en errors.go.
package repository

import (
	"context"
	"time"
)

// User representa una cuenta de la comunidad.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// GetByID busca un usuario por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, userID string) (*User, error)

	// GetByIdentifier busca por username o email (case-insensitive).
	// Retorna ErrNotFound si no existe.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	// Create crea un usuario. Retorna ErrConflict si username/email ya existen.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// UpdatePasswordHash reemplaza el hash del password.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}
