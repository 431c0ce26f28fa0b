package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transitwatch/internal/models"
	"transitwatch/internal/repository"
)

// ProfileService handles user profile documents
type ProfileService struct {
	profiles ProfileStore
}

// NewProfileService creates a new profile service
func NewProfileService(profiles ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// GetProfile returns the profile document of userID
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if user.PreferredLines == nil {
		user.PreferredLines = []string{}
	}
	return user, nil
}

// PutProfile overwrites the whole profile document. Callers may only
// write their own document.
func (s *ProfileService) PutProfile(ctx context.Context, callerID string, user *models.User) error {
	if user.ID != callerID {
		return ErrForbidden
	}
	if user.PreferredLines == nil {
		user.PreferredLines = []string{}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if err := s.profiles.Put(ctx, user); err != nil {
		return fmt.Errorf("failed to put profile: %w", err)
	}
	return nil
}

// RegisterPushToken stores the device token used for report notifications
func (s *ProfileService) RegisterPushToken(ctx context.Context, userID, token string, platform models.PushPlatform) error {
	if platform != models.PlatformIOS && platform != models.PlatformAndroid {
		return ErrInvalidPlatform
	}
	pt := &models.PushToken{
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		UpdatedAt: time.Now(),
	}
	if err := s.profiles.UpdatePushToken(ctx, pt); err != nil {
		return fmt.Errorf("failed to register push token: %w", err)
	}
	return nil
}

// DeleteAccount is not supported and never touches storage
func (s *ProfileService) DeleteAccount(ctx context.Context, userID string) error {
	return ErrNotImplemented
}
