package services

import (
	"context"
	"testing"

	"transitwatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetMessages(t *testing.T) {
	msgs := resetMessages("no-reply@transitwatch.app", "a@b.com", "https://transitwatch.app/reset?token=t1")

	require.Len(t, msgs.Info, 1)
	info := msgs.Info[0]
	assert.Equal(t, "no-reply@transitwatch.app", info.From.Email)
	require.Len(t, *info.To, 1)
	assert.Equal(t, "a@b.com", (*info.To)[0].Email)
	assert.Equal(t, resetSubject, info.Subject)
	assert.Contains(t, info.TextPart, "token=t1")
}

func TestMailjetMailerWithoutKeys(t *testing.T) {
	m := NewMailjetMailer(config.MailConfig{Sender: "no-reply@transitwatch.app"})
	assert.NoError(t, m.SendPasswordReset(context.Background(), "a@b.com", "link"))
}
