package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"transitwatch/internal/models"
	"transitwatch/internal/repository"
)

type fakeIdentities struct {
	mu   sync.Mutex
	byID map[string]*models.Identity
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{byID: map[string]*models.Identity{}}
}

func (f *fakeIdentities) Create(ctx context.Context, identity *models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range f.byID {
		if i.Email == identity.Email {
			return fmt.Errorf("email %s: %w", identity.Email, repository.ErrDuplicate)
		}
	}
	cp := *identity
	f.byID[identity.ID] = &cp
	return nil
}

func (f *fakeIdentities) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range f.byID {
		if i.Email == email {
			cp := *i
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("identity: %w", repository.ErrNotFound)
}

func (f *fakeIdentities) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("identity: %w", repository.ErrNotFound)
	}
	i.PasswordHash = passwordHash
	return nil
}

type fakeProfiles struct {
	mu      sync.Mutex
	users   map[string]models.User
	tokens  map[string]models.PushToken
	putErr  error
	listErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{users: map[string]models.User{}, tokens: map[string]models.PushToken{}}
}

func (f *fakeProfiles) Put(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	return &u, nil
}

func (f *fakeProfiles) UpdatePushToken(ctx context.Context, token *models.PushToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token.UserID] = *token
	return nil
}

func (f *fakeProfiles) ListLineSubscribers(ctx context.Context, lineID, excludeUserID string) ([]*models.PushToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.PushToken
	for id, u := range f.users {
		t, ok := f.tokens[id]
		if !ok || id == excludeUserID || !u.Notifications || !u.HasPreferredLine(lineID) {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type fakeReports struct {
	mu        sync.Mutex
	reports   map[string]models.Report
	createErr error
	listErr   error
}

func newFakeReports() *fakeReports {
	return &fakeReports{reports: map[string]models.Report{}}
}

func (f *fakeReports) Create(ctx context.Context, report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.reports[report.ID] = *report
	return nil
}

func (f *fakeReports) GetByID(ctx context.Context, id string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, fmt.Errorf("report: %w", repository.ErrNotFound)
	}
	return &r, nil
}

func (f *fakeReports) ListRecent(ctx context.Context) ([]models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Report, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeReports) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[id]; !ok {
		return fmt.Errorf("report: %w", repository.ErrNotFound)
	}
	delete(f.reports, id)
	return nil
}

type fakeResets struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeResets() *fakeResets {
	return &fakeResets{tokens: map[string]string{}}
}

func (f *fakeResets) Save(ctx context.Context, token, identityID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = identityID
	return nil
}

func (f *fakeResets) Consume(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return "", fmt.Errorf("reset token: %w", repository.ErrNotFound)
	}
	delete(f.tokens, token)
	return id, nil
}

type sentMail struct {
	email string
	link  string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{email: email, link: link})
	return nil
}

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakePublisher) PublishReportsChanged(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	ch chan models.Report
}

func (f *fakeNotifier) NotifyNewReport(ctx context.Context, report *models.Report) {
	f.ch <- *report
}

type pushed struct {
	token string
	msg   PushMessage
}

type fakePusher struct {
	mu     sync.Mutex
	sent   []pushed
	failOn string
}

func (f *fakePusher) Push(ctx context.Context, deviceToken string, msg PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if deviceToken == f.failOn {
		return errors.New("device unregistered")
	}
	f.sent = append(f.sent, pushed{token: deviceToken, msg: msg})
	return nil
}
