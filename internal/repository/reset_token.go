package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resetTokenPrefix = "transitwatch:reset:"

// ResetTokenRepository keeps password reset tokens in redis until they
// are used or expire
type ResetTokenRepository struct {
	client *redis.Client
}

// NewResetTokenRepository creates a new reset token repository
func NewResetTokenRepository(client *redis.Client) *ResetTokenRepository {
	return &ResetTokenRepository{client: client}
}

// Save stores token for identityID with the given lifetime
func (r *ResetTokenRepository) Save(ctx context.Context, token, identityID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, resetTokenPrefix+token, identityID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}
	return nil
}

// Consume returns the identity bound to token and removes the token.
// ErrNotFound is returned for unknown or expired tokens.
func (r *ResetTokenRepository) Consume(ctx context.Context, token string) (string, error) {
	identityID, err := r.client.GetDel(ctx, resetTokenPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("reset token: %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to consume reset token: %w", err)
	}
	return identityID, nil
}
