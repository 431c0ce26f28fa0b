package repository

import (
	"context"
	"errors"
	"fmt"

	"transitwatch/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentityRepository handles database operations for credentials
type IdentityRepository struct {
	db *pgxpool.Pool
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Create creates a new identity. ErrDuplicate is returned when the email
// is already registered.
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, identity.ID, identity.Email, identity.PasswordHash, identity.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", identity.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

// GetByEmail retrieves an identity by email
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM identities
		WHERE email = $1
	`
	var identity models.Identity
	err := r.db.QueryRow(ctx, query, email).Scan(
		&identity.ID, &identity.Email, &identity.PasswordHash, &identity.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("identity: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get identity by email: %w", err)
	}
	return &identity, nil
}

// UpdatePassword replaces the password hash of an identity
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE identities SET password_hash = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("identity: %w", ErrNotFound)
	}
	return nil
}
