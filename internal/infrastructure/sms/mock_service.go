package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SMSService delivers short messages (pickup codes)
type SMSService interface {
	SendSMS(ctx context.Context, to, message string) (messageID string, err error)
}

// ================================================
// MOCK SMS SERVICE (for development)
// ================================================

type MockSMSService struct{}

func NewMockSMSService() *MockSMSService {
	return &MockSMSService{}
}

func (s *MockSMSService) SendSMS(ctx context.Context, to, message string) (messageID string, err error) {
	log.Info().
		Str("to", to).
		Str("message", message).
		Msg("[MOCK] SMS sent successfully")

	messageID = fmt.Sprintf("mock-sms-%d", time.Now().Unix())
	return messageID, nil
}

// ================================================
// TWILIO SMS SERVICE (for production)
// ================================================

type TwilioSMSService struct {
	accountSID string
	authToken  string
	fromNumber string
}

func NewTwilioSMSService(accountSID, authToken, fromNumber string) *TwilioSMSService {
	return &TwilioSMSService{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
	}
}

func (s *TwilioSMSService) SendSMS(ctx context.Context, to, message string) (messageID string, err error) {
	// TODO: wire the Twilio REST call once credentials are provisioned
	log.Warn().Msg("Twilio SMS not implemented yet, using mock")
	return NewMockSMSService().SendSMS(ctx, to, message)
}
