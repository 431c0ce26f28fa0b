package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"transitwatch/internal/models"
)

// The in-memory repositories mirror the Postgres and redis ones. They
// back the server when no database is configured and are used in tests.

// MemoryIdentityRepository keeps identities in memory
type MemoryIdentityRepository struct {
	mu   sync.RWMutex
	byID map[string]models.Identity
}

// NewMemoryIdentityRepository creates an empty identity repository
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{byID: make(map[string]models.Identity)}
}

// Create creates a new identity
func (r *MemoryIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, i := range r.byID {
		if i.Email == identity.Email {
			return fmt.Errorf("email %s: %w", identity.Email, ErrDuplicate)
		}
	}
	r.byID[identity.ID] = *identity
	return nil
}

// GetByEmail retrieves an identity by email
func (r *MemoryIdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, i := range r.byID {
		if i.Email == email {
			return &i, nil
		}
	}
	return nil, fmt.Errorf("identity: %w", ErrNotFound)
}

// UpdatePassword replaces the password hash of an identity
func (r *MemoryIdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("identity: %w", ErrNotFound)
	}
	i.PasswordHash = passwordHash
	r.byID[id] = i
	return nil
}

// MemoryUserRepository keeps profiles and push tokens in memory
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[string]models.User
	tokens map[string]models.PushToken
}

// NewMemoryUserRepository creates an empty user repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:  make(map[string]models.User),
		tokens: make(map[string]models.PushToken),
	}
}

// Put writes the whole profile document
func (r *MemoryUserRepository) Put(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := *user
	u.PreferredLines = append([]string{}, user.PreferredLines...)
	r.users[u.ID] = u
	return nil
}

// GetByID retrieves a profile by user ID
func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	u.PreferredLines = append([]string{}, u.PreferredLines...)
	return &u, nil
}

// ListLineSubscribers returns the push tokens of followers of lineID
func (r *MemoryUserRepository) ListLineSubscribers(ctx context.Context, lineID, excludeUserID string) ([]*models.PushToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tokens []*models.PushToken
	for id, t := range r.tokens {
		u, ok := r.users[id]
		if !ok || id == excludeUserID || !u.Notifications || !u.HasPreferredLine(lineID) {
			continue
		}
		t := t
		tokens = append(tokens, &t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].UserID < tokens[j].UserID })
	return tokens, nil
}

// UpdatePushToken registers the device push token for a user
func (r *MemoryUserRepository) UpdatePushToken(ctx context.Context, token *models.PushToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token.UserID] = *token
	return nil
}

// MemoryReportRepository keeps reports in memory
type MemoryReportRepository struct {
	mu      sync.RWMutex
	reports map[string]models.Report
}

// NewMemoryReportRepository creates an empty report repository
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{reports: make(map[string]models.Report)}
}

// Create creates a new report
func (r *MemoryReportRepository) Create(ctx context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[report.ID]; ok {
		return fmt.Errorf("report %s: %w", report.ID, ErrDuplicate)
	}
	r.reports[report.ID] = *report
	return nil
}

// GetByID retrieves a report by ID
func (r *MemoryReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, fmt.Errorf("report: %w", ErrNotFound)
	}
	return &report, nil
}

// ListRecent returns every report, newest first
func (r *MemoryReportRepository) ListRecent(ctx context.Context) ([]models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports := make([]models.Report, 0, len(r.reports))
	for _, report := range r.reports {
		reports = append(reports, report)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

// Delete deletes a report by ID
func (r *MemoryReportRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[id]; !ok {
		return fmt.Errorf("report: %w", ErrNotFound)
	}
	delete(r.reports, id)
	return nil
}

type memoryResetToken struct {
	identityID string
	expiresAt  time.Time
}

// MemoryResetTokenRepository keeps reset tokens in memory
type MemoryResetTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]memoryResetToken
	now    func() time.Time
}

// NewMemoryResetTokenRepository creates an empty reset token repository
func NewMemoryResetTokenRepository() *MemoryResetTokenRepository {
	return &MemoryResetTokenRepository{
		tokens: make(map[string]memoryResetToken),
		now:    time.Now,
	}
}

// Save stores token for identityID with the given lifetime
func (r *MemoryResetTokenRepository) Save(ctx context.Context, token, identityID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = memoryResetToken{identityID: identityID, expiresAt: r.now().Add(ttl)}
	return nil
}

// Consume returns the identity bound to token and removes the token
func (r *MemoryResetTokenRepository) Consume(ctx context.Context, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[token]
	delete(r.tokens, token)
	if !ok || r.now().After(t.expiresAt) {
		return "", fmt.Errorf("reset token: %w", ErrNotFound)
	}
	return t.identityID, nil
}
