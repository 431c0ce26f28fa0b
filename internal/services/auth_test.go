package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService() (*AuthService, *fakeIdentities, *fakeResets, *fakeMailer) {
	identities := newFakeIdentities()
	resets := newFakeResets()
	mailer := &fakeMailer{}
	svc := NewAuthService(identities, resets, mailer, "test-secret", time.Hour, "https://transitwatch.app/reset")
	return svc, identities, resets, mailer
}

func TestAuthService_SignUpAndSignIn(t *testing.T) {
	svc, _, _, _ := newTestAuthService()
	ctx := context.Background()

	t.Run("sign up issues a session", func(t *testing.T) {
		session, err := svc.SignUp(ctx, " A@B.com ", "secret1")
		require.NoError(t, err)
		assert.NotEmpty(t, session.UserID)
		assert.Equal(t, "a@b.com", session.Email)

		userID, err := svc.ValidateJWT(session.Token)
		require.NoError(t, err)
		assert.Equal(t, session.UserID, userID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.SignUp(ctx, "a@b.com", "another")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := svc.SignUp(ctx, "c@d.com", "12345")
		assert.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := svc.SignUp(ctx, "  ", "secret1")
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("sign in with the same credentials", func(t *testing.T) {
		session, err := svc.SignIn(ctx, "a@b.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", session.Email)
		assert.NotEmpty(t, session.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "a@b.com", "wrong!!")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "nobody@b.com", "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthService_ValidateJWT(t *testing.T) {
	svc, _, _, _ := newTestAuthService()

	t.Run("rejects other secret", func(t *testing.T) {
		other := NewAuthService(nil, nil, nil, "other", time.Hour, "")
		token, err := other.GenerateJWT("u1", "a@b.com")
		require.NoError(t, err)

		_, err = svc.ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := svc.GenerateJWT("u1", "a@b.com")
		svc.now = time.Now
		require.NoError(t, err)

		_, err = svc.ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("rejects token without user id", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.ValidateJWT(signed)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.ValidateJWT("not-a-token")
		assert.Error(t, err)
	})
}

func TestAuthService_PasswordReset(t *testing.T) {
	svc, _, _, mailer := newTestAuthService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		err := svc.RequestPasswordReset(ctx, "nobody@b.com")
		assert.ErrorIs(t, err, ErrIdentityNotFound)
		assert.Empty(t, mailer.sent)
	})

	t.Run("mail failure is reported", func(t *testing.T) {
		mailer.err = errors.New("mailjet down")
		defer func() { mailer.err = nil }()

		err := svc.RequestPasswordReset(ctx, "a@b.com")
		assert.Error(t, err)
	})

	t.Run("full reset flow", func(t *testing.T) {
		require.NoError(t, svc.RequestPasswordReset(ctx, "A@b.com"))
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "a@b.com", mailer.sent[0].email)

		link, err := url.Parse(mailer.sent[0].link)
		require.NoError(t, err)
		assert.Equal(t, "transitwatch.app", link.Host)
		token := link.Query().Get("token")
		require.NotEmpty(t, token)

		assert.ErrorIs(t, svc.ConfirmPasswordReset(ctx, token, "123"), ErrWeakPassword)

		require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "newsecret"))

		_, err = svc.SignIn(ctx, "a@b.com", "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = svc.SignIn(ctx, "a@b.com", "newsecret")
		assert.NoError(t, err)

		assert.ErrorIs(t, svc.ConfirmPasswordReset(ctx, token, "another1"), ErrInvalidResetToken)
	})
}
