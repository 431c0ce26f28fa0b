// Package session keeps the app's view of who is signed in. The identity
// provider's change stream drives the state; operations only delegate.
// It runs in the app on top of the client SDK, not in the server.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"transitwatch/internal/broadcast"
	"transitwatch/internal/client"
	"transitwatch/internal/models"

	"github.com/rs/zerolog/log"
)

// Messages shown to the user through State.Err
const (
	MsgInvalidCredentials = "incorrect email or password"
	MsgAccountCreation    = "error while creating account"
	MsgProfileLoad        = "error while loading profile"
)

var (
	ErrAccountCreation = errors.New("error while creating account")
	ErrPasswordReset   = errors.New("error while sending the reset email")
	ErrProfileUpdate   = errors.New("error while updating profile")
	ErrNotImplemented  = errors.New("feature not implemented")
)

// IdentityProvider owns credentials and announces session changes
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) error
	CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	SessionChanges(ctx context.Context) <-chan *models.Identity
}

// ProfileStore reads and writes whole profile documents. GetProfile
// returns client.ErrNotFound for a missing document.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	SetProfile(ctx context.Context, user *models.User) error
}

// Status is the coarse session state
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// State is a snapshot of the session
type State struct {
	User    *models.User
	Loading bool
	Err     string
}

// Status derives the coarse state. A signed-in user wins over the
// transient loading flag.
func (s State) Status() Status {
	switch {
	case s.User != nil:
		return StatusAuthenticated
	case s.Loading:
		return StatusLoading
	default:
		return StatusUnauthenticated
	}
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		u.PreferredLines = append([]string{}, s.User.PreferredLines...)
		s.User = &u
	}
	return s
}

// Store is the session store. Create one per process with New and call
// Start once.
type Store struct {
	idp      IdentityProvider
	profiles ProfileStore
	now      func() time.Time

	mu    sync.RWMutex
	state State
	// version counts state changes; expected is the identity a profile
	// load must belong to
	version  uint64
	expected string

	changes *broadcast.Broadcaster[State]

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a store in the loading state
func New(idp IdentityProvider, profiles ProfileStore) *Store {
	return &Store{
		idp:      idp,
		profiles: profiles,
		now:      time.Now,
		state:    State{Loading: true},
		changes:  broadcast.New[State](),
	}
}

// Start follows the identity provider's session changes until ctx is
// done or Close is called
func (s *Store) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	identities := s.idp.SessionChanges(ctx)
	go func() {
		defer close(s.done)
		for identity := range identities {
			s.handleIdentity(ctx, identity)
		}
	}()
}

// Close stops following session changes
func (s *Store) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// State returns the current session state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe calls fn with every new state and returns a function that
// stops the calls
func (s *Store) Subscribe(fn func(State)) func() {
	return s.changes.Subscribe(fn)
}

func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	s.version++
	st := s.state.clone()
	s.mu.Unlock()

	s.changes.Publish(st)
}

func (s *Store) handleIdentity(ctx context.Context, identity *models.Identity) {
	if identity == nil {
		s.mu.Lock()
		s.expected = ""
		s.mu.Unlock()

		s.update(func(st *State) {
			*st = State{}
		})
		return
	}

	s.mu.Lock()
	s.expected = identity.ID
	s.mu.Unlock()

	s.loadProfile(ctx, identity.ID)
}

// loadProfile fetches the profile of userID and settles the session on
// it. A missing document leaves the state as it is, and so does a result
// that was overtaken by another change while the fetch was running.
func (s *Store) loadProfile(ctx context.Context, userID string) {
	s.mu.RLock()
	version := s.version
	s.mu.RUnlock()

	user, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, client.ErrNotFound) {
		log.Debug().Str("user_id", userID).Msg("Profile not found yet")
		return
	}

	next := State{Err: MsgProfileLoad}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load profile")
	} else {
		user.ID = userID
		next = State{User: user}
	}

	s.mu.Lock()
	if s.expected != userID || s.version != version {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.version++
	st := s.state.clone()
	s.mu.Unlock()

	s.changes.Publish(st)
}

// SignIn checks credentials with the identity provider. On success the
// session change stream moves the state to authenticated.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	s.update(func(st *State) {
		st.Loading = true
		st.Err = ""
	})

	if err := s.idp.SignIn(ctx, email, password); err != nil {
		s.update(func(st *State) {
			st.Loading = false
			st.Err = MsgInvalidCredentials
		})
		return err
	}
	return nil
}

// SignUp creates an identity and its profile document. An identity
// whose profile write fails is not removed.
func (s *Store) SignUp(ctx context.Context, email, password, name, city string) error {
	s.update(func(st *State) {
		st.Loading = true
		st.Err = ""
	})

	fail := func(err error) error {
		s.update(func(st *State) {
			st.Loading = false
			st.Err = MsgAccountCreation
		})
		return fmt.Errorf("%w: %w", ErrAccountCreation, err)
	}

	identity, err := s.idp.CreateIdentity(ctx, email, password)
	if err != nil {
		return fail(err)
	}

	s.mu.Lock()
	s.expected = identity.ID
	s.mu.Unlock()

	user := &models.User{
		ID:             identity.ID,
		Email:          email,
		Name:           name,
		City:           city,
		PreferredLines: []string{},
		DarkMode:       false,
		Notifications:  true,
		CreatedAt:      s.now(),
	}
	if err := s.profiles.SetProfile(ctx, user); err != nil {
		return fail(err)
	}

	log.Info().Str("user_id", identity.ID).Str("city", city).Msg("Account created")

	// The change notification for the new identity may have arrived
	// before the document existed.
	s.loadProfile(ctx, identity.ID)
	return nil
}

// Logout signs out. Failures are logged only.
func (s *Store) Logout(ctx context.Context) {
	if err := s.idp.SignOut(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to sign out")
	}
}

// ResetPassword asks the identity provider to mail a reset link
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	if err := s.idp.SendPasswordReset(ctx, email); err != nil {
		return fmt.Errorf("%w: %w", ErrPasswordReset, err)
	}
	return nil
}

// UpdateUserProfile merges patch into the current user and writes the
// whole document back. Local state changes only after the write
// succeeds. Without a signed-in user it does nothing.
func (s *Store) UpdateUserProfile(ctx context.Context, patch models.UserPatch) error {
	current := s.State().User
	if current == nil {
		return nil
	}

	updated := patch.Apply(*current)
	if err := s.profiles.SetProfile(ctx, &updated); err != nil {
		return fmt.Errorf("%w: %w", ErrProfileUpdate, err)
	}

	s.update(func(st *State) {
		if st.User != nil && st.User.ID == updated.ID {
			st.User = &updated
		}
	})
	return nil
}

// DeleteAccount is not supported. It never reaches the backend.
func (s *Store) DeleteAccount(ctx context.Context, password string) error {
	return ErrNotImplemented
}
