package services

import (
	"context"
	"errors"
	"time"

	"transitwatch/internal/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmail       = errors.New("email is required")
	ErrIdentityNotFound   = errors.New("no account for this email")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrForbidden          = errors.New("not allowed to modify another user")
	ErrNotImplemented     = errors.New("not implemented")
	ErrReportNotFound     = errors.New("report not found")
	ErrNotReportOwner     = errors.New("only the author can delete a report")
	ErrInvalidReportType  = errors.New("unknown report type")
	ErrAuthorMismatch     = errors.New("report author must be the signed-in user")
	ErrInvalidPlatform    = errors.New("platform must be ios or android")
)

// IdentityStore persists credentials
type IdentityStore interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ProfileStore persists user profile documents and device tokens
type ProfileStore interface {
	Put(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePushToken(ctx context.Context, token *models.PushToken) error
	ListLineSubscribers(ctx context.Context, lineID, excludeUserID string) ([]*models.PushToken, error)
}

// ReportStore persists report documents
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	ListRecent(ctx context.Context) ([]models.Report, error)
	Delete(ctx context.Context, id string) error
}

// ResetTokenStore keeps short-lived password reset tokens
type ResetTokenStore interface {
	Save(ctx context.Context, token, identityID string, ttl time.Duration) error
	Consume(ctx context.Context, token string) (string, error)
}

// Mailer sends transactional mail
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// ChangePublisher announces that the report collection changed
type ChangePublisher interface {
	PublishReportsChanged(ctx context.Context) error
}

// ReportNotifier is told about every newly created report
type ReportNotifier interface {
	NotifyNewReport(ctx context.Context, report *models.Report)
}
