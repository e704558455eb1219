package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"returns-backend/internal/domains/returns/repository"
	"returns-backend/internal/infrastructure/email"
	"returns-backend/internal/infrastructure/sms"
	"returns-backend/internal/shared"
)

// ============================================
// Send Pickup OTP Handler
// ============================================
// Delivers the plaintext pickup code over SMS and email. The code exists only
// in the task payload; once this handler finishes, the hash in the database is
// the only trace of it.

type SendPickupOtpHandler struct {
	smsService   sms.SMSService
	emailService email.EmailService
}

func NewSendPickupOtpHandler(smsService sms.SMSService, emailService email.EmailService) *SendPickupOtpHandler {
	return &SendPickupOtpHandler{
		smsService:   smsService,
		emailService: emailService,
	}
}

func (h *SendPickupOtpHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.SendPickupOtpPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal SendPickupOtp payload")
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	log.Info().
		Str("return_number", payload.ReturnNumber).
		Msg("Processing pickup code delivery")

	ttl := time.Until(payload.ExpiresAt).Round(time.Minute)
	delivered := false

	if payload.CustomerPhone != "" {
		message := fmt.Sprintf("Your pickup code for return %s is %s. Valid for %s.",
			payload.ReturnNumber, payload.Code, ttl)
		if _, err := h.smsService.SendSMS(ctx, payload.CustomerPhone, message); err != nil {
			log.Error().Err(err).Str("return_number", payload.ReturnNumber).Msg("Failed to send pickup code SMS")
		} else {
			delivered = true
		}
	}

	if payload.CustomerEmail != "" {
		data := email.PickupCodeEmailData{
			Email:        payload.CustomerEmail,
			ReturnNumber: payload.ReturnNumber,
			Code:         payload.Code,
			ExpiresIn:    ttl.String(),
		}
		if err := h.emailService.SendPickupCodeEmail(ctx, data); err != nil {
			log.Error().Err(err).Str("return_number", payload.ReturnNumber).Msg("Failed to send pickup code email")
		} else {
			delivered = true
		}
	}

	if !delivered {
		// Retryable: asynq backs off and tries again while the code is live
		return fmt.Errorf("pickup code for %s not delivered on any channel", payload.ReturnNumber)
	}

	log.Info().
		Str("return_number", payload.ReturnNumber).
		Msg("Pickup code delivered")

	return nil
}

// ============================================
// Return Status Changed Handler
// ============================================

type StatusChangedHandler struct {
	emailService email.EmailService
}

func NewStatusChangedHandler(emailService email.EmailService) *StatusChangedHandler {
	return &StatusChangedHandler{
		emailService: emailService,
	}
}

func (h *StatusChangedHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.ReturnStatusChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal ReturnStatusChanged payload")
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if payload.CustomerEmail == "" {
		// No contact on file, nothing to deliver
		log.Info().
			Str("return_number", payload.ReturnNumber).
			Str("to_status", payload.ToStatus).
			Msg("Status change recorded, no customer email on file")
		return nil
	}

	data := email.StatusEmailData{
		Email:        payload.CustomerEmail,
		ReturnNumber: payload.ReturnNumber,
		FromStatus:   payload.FromStatus,
		ToStatus:     payload.ToStatus,
	}
	if err := h.emailService.SendStatusEmail(ctx, data); err != nil {
		log.Error().Err(err).Str("return_number", payload.ReturnNumber).Msg("Failed to send status email")
		return fmt.Errorf("send status email: %w", err)
	}

	log.Info().
		Str("return_number", payload.ReturnNumber).
		Str("from_status", payload.FromStatus).
		Str("to_status", payload.ToStatus).
		Msg("Status change email sent")

	return nil
}

// ============================================
// Sweep Expired OTPs Handler
// ============================================
// Scheduled job: clears pickup-code hashes whose TTL has passed so a stale
// code can never be verified later.

type SweepExpiredOtpsHandler struct {
	returnRepo repository.ReturnRepository
}

func NewSweepExpiredOtpsHandler(returnRepo repository.ReturnRepository) *SweepExpiredOtpsHandler {
	return &SweepExpiredOtpsHandler{
		returnRepo: returnRepo,
	}
}

func (h *SweepExpiredOtpsHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.SweepExpiredOtpsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal SweepExpiredOtps payload")
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	swept, err := h.returnRepo.SweepExpiredOtps(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep expired pickup codes")
		return fmt.Errorf("sweep expired otps: %w", err)
	}

	if swept > 0 {
		log.Info().
			Int64("swept", swept).
			Msg("Cleared expired pickup codes")
	}

	return nil
}
