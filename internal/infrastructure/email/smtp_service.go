package email

import (
	"context"
	"fmt"
	"net/smtp"

	"returns-backend/pkg/logger"
)

type PickupCodeEmailData struct {
	Email        string
	ReturnNumber string
	Code         string
	ExpiresIn    string
}

type StatusEmailData struct {
	Email        string
	ReturnNumber string
	FromStatus   string
	ToStatus     string
}

type EmailService interface {
	SendPickupCodeEmail(ctx context.Context, data PickupCodeEmailData) error
	SendStatusEmail(ctx context.Context, data StatusEmailData) error
}

type smtpEmailService struct {
	smtpAddr string
	smtpFrom string
}

// NewSMTPEmailService sends through the configured relay; in development
// this is typically a local MailHog instance
func NewSMTPEmailService(smtpHost, smtpPort, from string) EmailService {
	return &smtpEmailService{
		smtpAddr: smtpHost + ":" + smtpPort,
		smtpFrom: from,
	}
}

func (s *smtpEmailService) SendPickupCodeEmail(ctx context.Context, data PickupCodeEmailData) error {
	subject := fmt.Sprintf("Pickup code for return %s", data.ReturnNumber)
	body := fmt.Sprintf(`Hello,

Your pickup verification code for return %s is:

    %s

Share this code with the delivery agent when they collect your items.
The code is valid for %s.

If you did not request a return, please contact support.`,
		data.ReturnNumber, data.Code, data.ExpiresIn)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.smtpFrom, data.Email, subject, body))

	if err := smtp.SendMail(s.smtpAddr, nil, s.smtpFrom, []string{data.Email}, msg); err != nil {
		logger.Info("Failed to send pickup code email", map[string]interface{}{
			"error":     err.Error(),
			"to":        data.Email,
			"smtp_addr": s.smtpAddr,
		})
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *smtpEmailService) SendStatusEmail(ctx context.Context, data StatusEmailData) error {
	subject := fmt.Sprintf("Update on your return %s", data.ReturnNumber)
	body := fmt.Sprintf(`Hello,

Your return %s has moved from "%s" to "%s".

You can follow the full timeline from your account.`,
		data.ReturnNumber, data.FromStatus, data.ToStatus)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.smtpFrom, data.Email, subject, body))

	if err := smtp.SendMail(s.smtpAddr, nil, s.smtpFrom, []string{data.Email}, msg); err != nil {
		logger.Info("Failed to send status email", map[string]interface{}{
			"error":     err.Error(),
			"to":        data.Email,
			"smtp_addr": s.smtpAddr,
		})
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
