package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"transitwatch/internal/client"
	"transitwatch/internal/models"
)

type fakeIdP struct {
	mu        sync.Mutex
	passwords map[string]string
	ids       map[string]string
	current   *models.Identity
	subs      []chan *models.Identity
	calls     int

	createErr  error
	resetErr   error
	signOutErr error
}

func newFakeIdP() *fakeIdP {
	return &fakeIdP{
		passwords: make(map[string]string),
		ids:       make(map[string]string),
	}
}

func (f *fakeIdP) publishLocked(id *models.Identity) {
	f.current = id
	for _, ch := range f.subs {
		ch <- id
	}
}

func (f *fakeIdP) SignIn(ctx context.Context, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if pw, ok := f.passwords[email]; !ok || pw != password {
		return client.ErrUnauthorized
	}
	f.publishLocked(&models.Identity{ID: f.ids[email], Email: email})
	return nil
}

func (f *fakeIdP) CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.passwords[email]; ok {
		return nil, errors.New("email already registered")
	}
	id := fmt.Sprintf("uid-%d", len(f.ids)+1)
	f.passwords[email] = password
	f.ids[email] = id

	identity := &models.Identity{ID: id, Email: email}
	f.publishLocked(identity)
	return identity, nil
}

func (f *fakeIdP) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.publishLocked(nil)
	return nil
}

func (f *fakeIdP) SendPasswordReset(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resetErr
}

func (f *fakeIdP) SessionChanges(ctx context.Context) <-chan *models.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan *models.Identity, 32)
	ch <- f.current
	f.subs = append(f.subs, ch)

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, c := range f.subs {
			if c == ch {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (f *fakeIdP) hasAccount(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.passwords[email]
	return ok
}

func (f *fakeIdP) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeProfiles struct {
	mu     sync.Mutex
	users  map[string]models.User
	getErr error
	setErr error
	gets   int
	sets   int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{users: make(map[string]models.User)}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++

	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, client.ErrNotFound)
	}
	return &u, nil
}

func (f *fakeProfiles) SetProfile(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++

	if f.setErr != nil {
		return f.setErr
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeProfiles) get(id string) (models.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	return u, ok
}

func (f *fakeProfiles) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func (f *fakeProfiles) setFailures(get, set error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = get
	f.setErr = set
}
