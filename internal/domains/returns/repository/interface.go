package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"returns-backend/internal/domains/returns/model"
)

// ReturnRepository owns ReturnRequest persistence.
// Every mutating statement is version-checked: the row is updated only when
// the caller's version matches, and zero affected rows surfaces as
// ErrConflictingUpdate so the loser of a race re-reads before retrying.
type ReturnRepository interface {
	// Transaction management
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error

	// Create
	CreateWithTx(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error
	CreateItemsWithTx(ctx context.Context, tx pgx.Tx, items []model.ReturnItem) error

	// Reads
	GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error)
	GetByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*model.ReturnRequest, error)
	List(ctx context.Context, filter ListFilter) ([]model.ReturnRequest, int, error)

	// Status transition: updates status (+optional agent, +optional refunded
	// amount delta) under the version check and bumps the version
	UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, params UpdateStatusParams) error

	// Audit trail: append-only, same transaction as the status change
	AppendHistoryWithTx(ctx context.Context, tx pgx.Tx, entry *model.ReturnStatusHistory) error

	// Per-line refund marking; a line's refund_amount is written at most once
	MarkItemRefundedWithTx(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount decimal.Decimal) error

	// OTP state, all version-checked
	SetOtp(ctx context.Context, id uuid.UUID, version int, codeHash string, expiresAt, resendAvailableAt time.Time) error
	SetOtpAttempts(ctx context.Context, id uuid.UUID, version int, attemptsRemaining int) error
	InvalidateOtp(ctx context.Context, id uuid.UUID, version int) error
	MarkOtpVerified(ctx context.Context, id uuid.UUID, version int, verifiedAt time.Time) error

	// Maintenance: clear hashes whose TTL has passed (scheduler job)
	SweepExpiredOtps(ctx context.Context, now time.Time) (int64, error)
}

// ListFilter narrows and paginates admin/customer listings
type ListFilter struct {
	CustomerID *uuid.UUID
	Status     string
	Limit      int
	Offset     int
}

// UpdateStatusParams carries a version-checked transition write
type UpdateStatusParams struct {
	ID      uuid.UUID
	Version int
	Status  model.ReturnStatus

	// Set when transitioning to pickup_assigned
	PickupAgent *model.PickupAgent

	// Added to refunded_amount when transitioning to refunded/partially_refunded
	RefundedDelta *decimal.Decimal

	// Consume the verified OTP marker (picked_up transition)
	ClearOtpVerified bool
}
