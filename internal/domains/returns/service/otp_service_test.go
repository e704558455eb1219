package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"returns-backend/internal/domains/returns/model"
)

func awaitingPickup() *model.ReturnRequest {
	return &model.ReturnRequest{
		ID:           uuid.New(),
		ReturnNumber: "RTN-3001",
		OrderID:      uuid.New(),
		CustomerID:   uuid.New(),
		Status:       model.ReturnStatusPickupAssigned,
		Version:      5,
	}
}

// withCode arms the return with a live code and a full attempt budget
func withCode(r *model.ReturnRequest, code string) *model.ReturnRequest {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	h := string(hash)
	expires := time.Now().Add(model.OtpTTL)
	r.OtpCodeHash = &h
	r.OtpExpiresAt = &expires
	r.OtpAttemptsRemaining = model.OtpMaxAttempts
	return r
}

func agentActor() model.Actor {
	return model.Actor{ID: uuid.New(), Role: model.RoleDeliveryAgent}
}

// =====================================================
// GENERATE / RESEND
// =====================================================

func TestOtpGenerate(t *testing.T) {
	request := awaitingPickup()
	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	before := time.Now()
	resp, err := svc.Generate(context.Background(), request.ID, agentActor())
	require.NoError(t, err)
	require.NotNil(t, resp)

	require.Len(t, repo.setOtpCalls, 1)
	call := repo.setOtpCalls[0]
	assert.Equal(t, 5, call.version)

	// Only a bcrypt hash is handed to the store, never the digits
	_, err = bcrypt.Cost([]byte(call.codeHash))
	assert.NoError(t, err)

	assert.WithinDuration(t, before.Add(model.OtpTTL), call.expiresAt, 2*time.Second)
	assert.WithinDuration(t, before.Add(model.OtpResendCooldown), call.resendAvailableAt, 2*time.Second)
	assert.Equal(t, call.expiresAt, resp.ExpiresAt)
	assert.Equal(t, call.resendAvailableAt, resp.ResendAvailableAt)
}

func TestOtpGenerate_NotEligible(t *testing.T) {
	for _, status := range []model.ReturnStatus{
		model.ReturnStatusRequested,
		model.ReturnStatusApproved,
		model.ReturnStatusPickedUp,
		model.ReturnStatusRefunded,
	} {
		t.Run(status.String(), func(t *testing.T) {
			request := awaitingPickup()
			request.Status = status
			repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
			svc := NewOtpService(repo, nil)

			_, err := svc.Generate(context.Background(), request.ID, agentActor())
			assertReturnErrCode(t, err, model.ErrCodeOtpNotEligible)
			assert.Empty(t, repo.setOtpCalls)
		})
	}
}

func TestOtpResend_CooldownActive(t *testing.T) {
	request := withCode(awaitingPickup(), "1234")
	resendAt := time.Now().Add(20 * time.Second)
	request.OtpResendAvailableAt = &resendAt

	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	_, err := svc.Resend(context.Background(), request.ID, agentActor())
	assertReturnErrCode(t, err, model.ErrCodeCooldownActive)
	assert.Empty(t, repo.setOtpCalls)
}

func TestOtpResend_ReplacesCode(t *testing.T) {
	request := withCode(awaitingPickup(), "1234")
	resendAt := time.Now().Add(-time.Second)
	request.OtpResendAvailableAt = &resendAt

	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	_, err := svc.Resend(context.Background(), request.ID, agentActor())
	require.NoError(t, err)

	require.Len(t, repo.setOtpCalls, 1)
	assert.NotEqual(t, *request.OtpCodeHash, repo.setOtpCalls[0].codeHash)
}

// =====================================================
// VERIFY
// =====================================================

func TestOtpVerify_Success(t *testing.T) {
	request := withCode(awaitingPickup(), "1234")
	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	err := svc.Verify(context.Background(), request.ID, agentActor(), "1234")
	require.NoError(t, err)
	require.NotNil(t, repo.verifiedAt)
	assert.Equal(t, 0, repo.invalidated)
}

func TestOtpVerify_LeadingZeroCode(t *testing.T) {
	request := withCode(awaitingPickup(), "0042")
	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	err := svc.Verify(context.Background(), request.ID, agentActor(), "0042")
	require.NoError(t, err)
	require.NotNil(t, repo.verifiedAt)
}

func TestOtpVerify_WrongCodeBurnsAttempt(t *testing.T) {
	request := withCode(awaitingPickup(), "1234")
	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	err := svc.Verify(context.Background(), request.ID, agentActor(), "9999")
	assertReturnErrCode(t, err, model.ErrCodeInvalidCode)

	require.Len(t, repo.attemptsSet, 1)
	assert.Equal(t, model.OtpMaxAttempts-1, repo.attemptsSet[0])
	assert.Nil(t, repo.verifiedAt)
}

func TestOtpVerify_LastAttemptInvalidates(t *testing.T) {
	request := withCode(awaitingPickup(), "1234")
	request.OtpAttemptsRemaining = 1

	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	err := svc.Verify(context.Background(), request.ID, agentActor(), "9999")
	assertReturnErrCode(t, err, model.ErrCodeCodeExpired)
	assert.Equal(t, 1, repo.invalidated)
	assert.Empty(t, repo.attemptsSet)
}

func TestOtpVerify_ExpiredCode(t *testing.T) {
	request := withCode(awaitingPickup(), "1234")
	past := time.Now().Add(-time.Minute)
	request.OtpExpiresAt = &past

	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	// The right digits no longer count once the TTL has passed
	err := svc.Verify(context.Background(), request.ID, agentActor(), "1234")
	assertReturnErrCode(t, err, model.ErrCodeCodeExpired)
	assert.Equal(t, 1, repo.invalidated)
	assert.Nil(t, repo.verifiedAt)
}

func TestOtpVerify_NoCodeIssued(t *testing.T) {
	request := awaitingPickup()
	repo := &mockReturnRepo{getByIDFn: func(id uuid.UUID) (*model.ReturnRequest, error) { return request, nil }}
	svc := NewOtpService(repo, nil)

	err := svc.Verify(context.Background(), request.ID, agentActor(), "1234")
	assertReturnErrCode(t, err, model.ErrCodeCodeExpired)
	assert.Equal(t, 0, repo.invalidated)
}

// =====================================================
// CODE GENERATION
// =====================================================

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateCode(model.OtpLength)
		require.NoError(t, err)
		require.Len(t, code, model.OtpLength)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
		seen[code] = true
	}
	// 50 draws from 10000 values virtually never collapse to one code
	assert.Greater(t, len(seen), 1)
}
