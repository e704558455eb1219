package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/crypto/bcrypt"

	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/repository"
	"returns-backend/internal/shared"
	"returns-backend/pkg/logger"
)

// =====================================================
// PICKUP OTP SERVICE
// =====================================================
// The code itself is never persisted: only its bcrypt hash is stored, and the
// plaintext travels exclusively in the delivery task payload.
type otpService struct {
	returnRepo repository.ReturnRepository
	asynq      *asynq.Client
}

// NewOtpService creates a new pickup OTP service
func NewOtpService(returnRepo repository.ReturnRepository, asynqClient *asynq.Client) OtpService {
	return &otpService{
		returnRepo: returnRepo,
		asynq:      asynqClient,
	}
}

// =====================================================
// GENERATE
// =====================================================

func (s *otpService) Generate(ctx context.Context, returnID uuid.UUID, actor model.Actor) (*model.OtpIssuedResponse, error) {
	request, err := s.eligibleReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, request)
}

// =====================================================
// RESEND
// =====================================================

func (s *otpService) Resend(ctx context.Context, returnID uuid.UUID, actor model.Actor) (*model.OtpIssuedResponse, error) {
	request, err := s.eligibleReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}

	if !request.OtpResendAvailable(time.Now()) {
		return nil, model.NewReturnError(
			model.ErrCodeCooldownActive,
			"resend cooldown still active",
			model.ErrCooldownActive,
		)
	}

	return s.issue(ctx, request)
}

// eligibleReturn loads the return and checks that it is awaiting pickup
func (s *otpService) eligibleReturn(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error) {
	request, err := s.returnRepo.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.ReturnStatusPickupAssigned {
		return nil, model.NewReturnError(
			model.ErrCodeOtpNotEligible,
			fmt.Sprintf("pickup codes are only issued while awaiting pickup, not '%s'", request.Status),
			model.ErrOtpNotEligible,
		)
	}
	return request, nil
}

// issue generates a fresh code, stores its hash, and queues delivery.
// Issuing always replaces the previous code, resets the attempt budget, and
// clears any earlier verification.
func (s *otpService) issue(ctx context.Context, request *model.ReturnRequest) (*model.OtpIssuedResponse, error) {
	code, err := generateCode(model.OtpLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate pickup code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pickup code: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(model.OtpTTL)
	resendAvailableAt := now.Add(model.OtpResendCooldown)

	if err := s.returnRepo.SetOtp(ctx, request.ID, request.Version, string(hash), expiresAt, resendAvailableAt); err != nil {
		return nil, err
	}

	s.enqueueDelivery(request, code, expiresAt)

	return &model.OtpIssuedResponse{
		ExpiresAt:         expiresAt,
		ResendAvailableAt: resendAvailableAt,
	}, nil
}

// =====================================================
// VERIFY
// =====================================================

func (s *otpService) Verify(ctx context.Context, returnID uuid.UUID, actor model.Actor, code string) error {
	request, err := s.returnRepo.GetByID(ctx, returnID)
	if err != nil {
		return err
	}

	now := time.Now()
	if !request.OtpIssued() || request.OtpExpired(now) {
		if request.OtpIssued() {
			if err := s.returnRepo.InvalidateOtp(ctx, request.ID, request.Version); err != nil {
				return err
			}
		}
		return model.NewReturnError(
			model.ErrCodeCodeExpired,
			"pickup code expired, request a new one",
			model.ErrCodeHasExpired,
		)
	}

	if bcrypt.CompareHashAndPassword([]byte(*request.OtpCodeHash), []byte(code)) != nil {
		remaining := request.OtpAttemptsRemaining - 1
		if remaining <= 0 {
			// Attempt budget exhausted: the code dies with the last miss
			if err := s.returnRepo.InvalidateOtp(ctx, request.ID, request.Version); err != nil {
				return err
			}
			return model.NewReturnError(
				model.ErrCodeCodeExpired,
				"too many incorrect attempts, request a new code",
				model.ErrCodeHasExpired,
			)
		}
		if err := s.returnRepo.SetOtpAttempts(ctx, request.ID, request.Version, remaining); err != nil {
			return err
		}
		return model.NewReturnError(
			model.ErrCodeInvalidCode,
			fmt.Sprintf("incorrect pickup code, %d attempts remaining", remaining),
			model.ErrInvalidCode,
		)
	}

	// Success consumes the code: the hash is cleared and the verified marker
	// set, so the same digits cannot be replayed
	return s.returnRepo.MarkOtpVerified(ctx, request.ID, request.Version, now)
}

// =====================================================
// HELPERS
// =====================================================

// generateCode produces an n-digit numeric code with a crypto source.
// Leading zeros are kept, so "0042" is a valid 4-digit code.
func generateCode(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// enqueueDelivery hands the plaintext code to the notification worker
func (s *otpService) enqueueDelivery(request *model.ReturnRequest, code string, expiresAt time.Time) {
	if s.asynq == nil {
		return
	}

	payload := shared.SendPickupOtpPayload{
		ReturnID:     request.ID.String(),
		ReturnNumber: request.ReturnNumber,
		Code:         code,
		ExpiresAt:    expiresAt,
	}
	if request.CustomerPhone != nil {
		payload.CustomerPhone = *request.CustomerPhone
	}
	if request.CustomerEmail != nil {
		payload.CustomerEmail = *request.CustomerEmail
	}

	b, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal SendPickupOtp payload", err)
		return
	}

	task := asynq.NewTask(shared.TypeSendPickupOtp, b)
	if _, err := s.asynq.Enqueue(task, asynq.Queue(shared.QueueNotifications)); err != nil {
		logger.Error("Failed to enqueue SendPickupOtp task", err)
	}
}
