package services

import (
	"context"
	"fmt"

	"transitwatch/internal/config"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/rs/zerolog/log"
)

const resetSubject = "Réinitialisation de votre mot de passe"

// MailjetMailer sends mail through the Mailjet API. Without keys it only
// logs what it would have sent.
type MailjetMailer struct {
	sender     string
	publicKey  string
	privateKey string
}

// NewMailjetMailer creates a mailer from configuration
func NewMailjetMailer(cfg config.MailConfig) *MailjetMailer {
	return &MailjetMailer{
		sender:     cfg.Sender,
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
	}
}

// SendPasswordReset mails the reset link to email
func (m *MailjetMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	if m.publicKey == "" || m.privateKey == "" {
		log.Warn().Str("email", email).Msg("Mail keys not configured, reset mail not sent")
		return nil
	}

	clt := mailjet.NewMailjetClient(m.publicKey, m.privateKey)
	msgs := resetMessages(m.sender, email, link)
	if _, err := clt.SendMailV31(&msgs); err != nil {
		return fmt.Errorf("could not send mail: %w", err)
	}

	log.Info().Str("email", email).Msg("Password reset mail sent")
	return nil
}

func resetMessages(sender, recipient, link string) mailjet.MessagesV31 {
	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: sender},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: recipient}},
		Subject:  resetSubject,
		TextPart: "Pour choisir un nouveau mot de passe, ouvrez ce lien : " + link,
	}}
	return mailjet.MessagesV31{Info: info}
}
