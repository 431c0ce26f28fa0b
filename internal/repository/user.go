package repository

import (
	"context"
	"errors"
	"fmt"

	"transitwatch/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for user profiles
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Put writes the whole profile document, replacing any previous one
func (r *UserRepository) Put(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, city, preferred_lines, dark_mode, notifications, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			city = EXCLUDED.city,
			preferred_lines = EXCLUDED.preferred_lines,
			dark_mode = EXCLUDED.dark_mode,
			notifications = EXCLUDED.notifications,
			created_at = EXCLUDED.created_at
	`
	lines := user.PreferredLines
	if lines == nil {
		lines = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.City, lines,
		user.DarkMode, user.Notifications, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put user: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by user ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, city, preferred_lines, dark_mode, notifications, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.City, &user.PreferredLines,
		&user.DarkMode, &user.Notifications, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListLineSubscribers returns the push tokens of users who follow lineID,
// have notifications enabled and registered a device. excludeUserID is
// left out of the result.
func (r *UserRepository) ListLineSubscribers(ctx context.Context, lineID, excludeUserID string) ([]*models.PushToken, error) {
	query := `
		SELECT p.user_id, p.token, p.platform, p.updated_at
		FROM users u
		JOIN push_tokens p ON p.user_id = u.id
		WHERE u.notifications AND $1 = ANY(u.preferred_lines) AND u.id <> $2
	`
	rows, err := r.db.Query(ctx, query, lineID, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line subscribers: %w", err)
	}
	defer rows.Close()

	var tokens []*models.PushToken
	for rows.Next() {
		var t models.PushToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Platform, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		tokens = append(tokens, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push tokens: %w", err)
	}

	return tokens, nil
}

// UpdatePushToken registers the device push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, token *models.PushToken) error {
	query := `
		INSERT INTO push_tokens (user_id, token, platform, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query, token.UserID, token.Token, token.Platform, token.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
