package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	orderModel "returns-backend/internal/domains/order/model"
	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/repository"
)

// =====================================================
// TEST DOUBLES
// =====================================================
// Function-field fakes: unset fields fall back to benign defaults, and every
// write is recorded so assertions can inspect exactly what was persisted.

type setOtpCall struct {
	version           int
	codeHash          string
	expiresAt         time.Time
	resendAvailableAt time.Time
}

type mockReturnRepo struct {
	getByIDFn            func(id uuid.UUID) (*model.ReturnRequest, error)
	getByIDAndCustomerFn func(id, customerID uuid.UUID) (*model.ReturnRequest, error)
	listFn               func(filter repository.ListFilter) ([]model.ReturnRequest, int, error)
	updateStatusFn       func(params repository.UpdateStatusParams) error
	setOtpFn             func(call setOtpCall) error

	created      *model.ReturnRequest
	createdItems []model.ReturnItem
	history      []model.ReturnStatusHistory
	updates      []repository.UpdateStatusParams
	marked       map[uuid.UUID]decimal.Decimal
	setOtpCalls  []setOtpCall
	attemptsSet  []int
	invalidated  int
	verifiedAt   *time.Time
	listFilter   *repository.ListFilter
	committed    int
	rolledBack   int
}

func (m *mockReturnRepo) BeginTx(ctx context.Context) (pgx.Tx, error) { return nil, nil }

func (m *mockReturnRepo) CommitTx(ctx context.Context, tx pgx.Tx) error {
	m.committed++
	return nil
}

func (m *mockReturnRepo) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	m.rolledBack++
	return nil
}

func (m *mockReturnRepo) CreateWithTx(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error {
	m.created = req
	return nil
}

func (m *mockReturnRepo) CreateItemsWithTx(ctx context.Context, tx pgx.Tx, items []model.ReturnItem) error {
	m.createdItems = items
	return nil
}

func (m *mockReturnRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(id)
	}
	if m.created != nil {
		return m.created, nil
	}
	return nil, model.ErrReturnNotFound
}

func (m *mockReturnRepo) GetByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*model.ReturnRequest, error) {
	if m.getByIDAndCustomerFn != nil {
		return m.getByIDAndCustomerFn(id, customerID)
	}
	return nil, model.ErrReturnNotFound
}

func (m *mockReturnRepo) List(ctx context.Context, filter repository.ListFilter) ([]model.ReturnRequest, int, error) {
	m.listFilter = &filter
	if m.listFn != nil {
		return m.listFn(filter)
	}
	return nil, 0, nil
}

func (m *mockReturnRepo) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, params repository.UpdateStatusParams) error {
	m.updates = append(m.updates, params)
	if m.updateStatusFn != nil {
		return m.updateStatusFn(params)
	}
	return nil
}

func (m *mockReturnRepo) AppendHistoryWithTx(ctx context.Context, tx pgx.Tx, entry *model.ReturnStatusHistory) error {
	m.history = append(m.history, *entry)
	return nil
}

func (m *mockReturnRepo) MarkItemRefundedWithTx(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount decimal.Decimal) error {
	if m.marked == nil {
		m.marked = make(map[uuid.UUID]decimal.Decimal)
	}
	m.marked[itemID] = amount
	return nil
}

func (m *mockReturnRepo) SetOtp(ctx context.Context, id uuid.UUID, version int, codeHash string, expiresAt, resendAvailableAt time.Time) error {
	call := setOtpCall{
		version:           version,
		codeHash:          codeHash,
		expiresAt:         expiresAt,
		resendAvailableAt: resendAvailableAt,
	}
	m.setOtpCalls = append(m.setOtpCalls, call)
	if m.setOtpFn != nil {
		return m.setOtpFn(call)
	}
	return nil
}

func (m *mockReturnRepo) SetOtpAttempts(ctx context.Context, id uuid.UUID, version int, attemptsRemaining int) error {
	m.attemptsSet = append(m.attemptsSet, attemptsRemaining)
	return nil
}

func (m *mockReturnRepo) InvalidateOtp(ctx context.Context, id uuid.UUID, version int) error {
	m.invalidated++
	return nil
}

func (m *mockReturnRepo) MarkOtpVerified(ctx context.Context, id uuid.UUID, version int, verifiedAt time.Time) error {
	m.verifiedAt = &verifiedAt
	return nil
}

func (m *mockReturnRepo) SweepExpiredOtps(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type mockOrderReader struct {
	snapshot *orderModel.OrderSnapshot
	err      error
}

func (m *mockOrderReader) GetSnapshot(ctx context.Context, orderID uuid.UUID) (*orderModel.OrderSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}
