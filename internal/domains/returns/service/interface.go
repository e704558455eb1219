package service

import (
	"context"

	"github.com/google/uuid"

	"returns-backend/internal/domains/returns/model"
)

// ReturnService is the single entry point for return lifecycle mutations.
// Every status change goes through Transition; nothing else writes status.
type ReturnService interface {
	CreateReturn(ctx context.Context, actor model.Actor, req model.CreateReturnRequest) (*model.ReturnRequest, error)
	GetReturn(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.ReturnRequest, error)
	ListReturns(ctx context.Context, actor model.Actor, req model.ListReturnsRequest) ([]model.ReturnRequest, int, error)

	// Transition moves the return to targetStatus per the role-gated table,
	// appends an audit entry, and computes the refund on refund targets
	Transition(ctx context.Context, id uuid.UUID, actor model.Actor, req model.UpdateStatusRequest) (*model.ReturnRequest, error)

	// SubmitRefund is the per-line partial/manual refund path
	SubmitRefund(ctx context.Context, id uuid.UUID, actor model.Actor, req model.SubmitRefundRequest) (*model.RefundResponse, error)
}

// OtpService implements the pickup hand-off protocol
type OtpService interface {
	Generate(ctx context.Context, returnID uuid.UUID, actor model.Actor) (*model.OtpIssuedResponse, error)
	Resend(ctx context.Context, returnID uuid.UUID, actor model.Actor) (*model.OtpIssuedResponse, error)
	Verify(ctx context.Context, returnID uuid.UUID, actor model.Actor, code string) error
}
