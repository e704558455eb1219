package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReturnStatusIsTerminal(t *testing.T) {
	terminal := []ReturnStatus{ReturnStatusPartiallyRefunded, ReturnStatusRefunded, ReturnStatusRejected}
	active := []ReturnStatus{
		ReturnStatusRequested, ReturnStatusApproved, ReturnStatusPickupAssigned,
		ReturnStatusPickupRejected, ReturnStatusPickedUp, ReturnStatusReceived,
	}

	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
		assert.False(t, (&ReturnRequest{Status: s}).IsCurrentlyActive())
	}
	for _, s := range active {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
		assert.True(t, (&ReturnRequest{Status: s}).IsCurrentlyActive())
	}
}

func TestReturnStatusIsValid(t *testing.T) {
	assert.True(t, ReturnStatusPickupAssigned.IsValid())
	assert.False(t, ReturnStatus("shipped").IsValid())
	assert.False(t, ReturnStatus("").IsValid())

	assert.True(t, RoleDeliveryAgent.IsValid())
	assert.False(t, Role("superuser").IsValid())

	assert.True(t, RefundMethodUPI.IsValid())
	assert.True(t, RefundMethodBank.IsValid())
	assert.False(t, RefundMethod("cash").IsValid())
}

func TestOtpState(t *testing.T) {
	now := time.Now()
	hash := "$2a$10$fakefakefakefakefakefake"
	future := now.Add(3 * time.Minute)
	past := now.Add(-time.Minute)

	t.Run("no code issued", func(t *testing.T) {
		r := &ReturnRequest{}
		assert.False(t, r.OtpIssued())
		assert.True(t, r.OtpExpired(now))
		assert.False(t, r.OtpVerified())
	})

	t.Run("live code", func(t *testing.T) {
		r := &ReturnRequest{OtpCodeHash: &hash, OtpExpiresAt: &future, OtpAttemptsRemaining: 5}
		assert.True(t, r.OtpIssued())
		assert.False(t, r.OtpExpired(now))
	})

	t.Run("past ttl", func(t *testing.T) {
		r := &ReturnRequest{OtpCodeHash: &hash, OtpExpiresAt: &past, OtpAttemptsRemaining: 5}
		assert.True(t, r.OtpExpired(now))
	})

	t.Run("attempt budget exhausted", func(t *testing.T) {
		r := &ReturnRequest{OtpCodeHash: &hash, OtpExpiresAt: &future, OtpAttemptsRemaining: 0}
		assert.True(t, r.OtpExpired(now))
	})

	t.Run("verified marker", func(t *testing.T) {
		r := &ReturnRequest{OtpVerifiedAt: &now}
		assert.True(t, r.OtpVerified())
	})
}

func TestOtpResendAvailable(t *testing.T) {
	now := time.Now()

	r := &ReturnRequest{}
	assert.True(t, r.OtpResendAvailable(now), "never issued means no cooldown")

	future := now.Add(10 * time.Second)
	r.OtpResendAvailableAt = &future
	assert.False(t, r.OtpResendAvailable(now))
	assert.True(t, r.OtpResendAvailable(future), "boundary instant is available")
	assert.True(t, r.OtpResendAvailable(future.Add(time.Second)))
}

func TestPendingItems(t *testing.T) {
	pending := ReturnItem{ID: uuid.New(), ReturnStatus: ItemStatusPending}
	refunded := ReturnItem{ID: uuid.New(), ReturnStatus: ItemStatusRefunded}
	r := &ReturnRequest{Items: []ReturnItem{pending, refunded}}

	got := r.PendingItems()
	assert.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].ID)

	assert.NotNil(t, r.ItemByID(refunded.ID.String()))
	assert.Nil(t, r.ItemByID(uuid.New().String()))
}
