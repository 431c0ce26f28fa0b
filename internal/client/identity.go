package client

import (
	"context"
	"net/http"
	"sync"

	"transitwatch/internal/models"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn verifies credentials and makes the identity current
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	var session models.Session
	if err := c.do(ctx, http.MethodPost, "/auth/signin", credentialsRequest{email, password}, &session); err != nil {
		return err
	}
	c.setSession(&models.Identity{ID: session.UserID, Email: session.Email}, session.Token)
	return nil
}

// CreateIdentity registers a new account and signs it in
func (c *Client) CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	var session models.Session
	if err := c.do(ctx, http.MethodPost, "/auth/signup", credentialsRequest{email, password}, &session); err != nil {
		return nil, err
	}
	identity := &models.Identity{ID: session.UserID, Email: session.Email}
	c.setSession(identity, session.Token)
	return c.CurrentIdentity(), nil
}

// SignOut forgets the current identity. Tokens are stateless, so nothing
// is sent to the server.
func (c *Client) SignOut(ctx context.Context) error {
	c.setSession(nil, "")
	return nil
}

// SendPasswordReset asks the server to mail a reset link to email
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", map[string]string{"email": email}, nil)
}

// ConfirmPasswordReset sets a new password with the token from a reset mail
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset/confirm", map[string]string{
		"token":    token,
		"password": password,
	}, nil)
}

// SessionChanges streams the current identity followed by every change,
// nil meaning signed out. The channel is closed when ctx is done.
func (c *Client) SessionChanges(ctx context.Context) <-chan *models.Identity {
	out := make(chan *models.Identity)
	q := &identityQueue{wake: make(chan struct{}, 1)}

	c.sessMu.Lock()
	q.push(c.CurrentIdentity())
	cancel := c.sessions.Subscribe(q.push)
	c.sessMu.Unlock()

	go func() {
		defer close(out)
		defer cancel()

		for {
			for _, id := range q.drain() {
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-q.wake:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// identityQueue buffers session changes so that publishing never blocks
// on a slow reader
type identityQueue struct {
	mu    sync.Mutex
	items []*models.Identity
	wake  chan struct{}
}

func (q *identityQueue) push(id *models.Identity) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *identityQueue) drain() []*models.Identity {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
