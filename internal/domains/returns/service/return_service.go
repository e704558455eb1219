package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	orderModel "returns-backend/internal/domains/order/model"
	orderRepo "returns-backend/internal/domains/order/repository"
	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/repository"
	"returns-backend/internal/shared"
	"returns-backend/pkg/logger"
)

// =====================================================
// TRANSITION TABLE
// =====================================================
// allowedTransitions is the single authority on legal moves. Self-loops are
// not listed, so a retried client call cannot append a duplicate audit row.
var allowedTransitions = map[model.ReturnStatus][]model.ReturnStatus{
	model.ReturnStatusRequested:      {model.ReturnStatusApproved, model.ReturnStatusRejected},
	model.ReturnStatusApproved:       {model.ReturnStatusPickupAssigned, model.ReturnStatusRejected},
	model.ReturnStatusPickupAssigned: {model.ReturnStatusPickedUp, model.ReturnStatusPickupRejected},
	model.ReturnStatusPickupRejected: {model.ReturnStatusApproved, model.ReturnStatusPickupAssigned, model.ReturnStatusRejected},
	model.ReturnStatusPickedUp:       {model.ReturnStatusReceived},
	model.ReturnStatusReceived:       {model.ReturnStatusPartiallyRefunded, model.ReturnStatusRefunded},
	// partially_refunded, refunded, rejected: terminal, no entries
}

// transitionActors lists which roles may move a return out of each state
var transitionActors = map[model.ReturnStatus][]model.Role{
	model.ReturnStatusRequested:      {model.RoleStaffAdmin, model.RoleOrderManager},
	model.ReturnStatusApproved:       {model.RoleStaffAdmin, model.RoleOrderManager},
	model.ReturnStatusPickupAssigned: {model.RoleDeliveryAgent, model.RoleStaffAdmin, model.RoleOrderManager},
	model.ReturnStatusPickupRejected: {model.RoleStaffAdmin, model.RoleOrderManager},
	model.ReturnStatusPickedUp:       {model.RoleStaffAdmin, model.RoleOrderManager},
	model.ReturnStatusReceived:       {model.RoleStaffAdmin, model.RoleOrderManager},
}

// =====================================================
// RETURN SERVICE IMPLEMENTATION
// =====================================================
type returnService struct {
	returnRepo  repository.ReturnRepository
	orderReader orderRepo.OrderReader
	asynq       *asynq.Client

	// Policy: delivery charge is excluded from refunds unless enabled
	deliveryRefundable bool
}

// NewReturnService creates a new return service
func NewReturnService(
	returnRepo repository.ReturnRepository,
	orderReader orderRepo.OrderReader,
	asynqClient *asynq.Client,
	deliveryRefundable bool,
) ReturnService {
	return &returnService{
		returnRepo:         returnRepo,
		orderReader:        orderReader,
		asynq:              asynqClient,
		deliveryRefundable: deliveryRefundable,
	}
}

// =====================================================
// CREATE RETURN
// =====================================================

func (s *returnService) CreateReturn(ctx context.Context, actor model.Actor, req model.CreateReturnRequest) (*model.ReturnRequest, error) {
	// Step 1: Validate request
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeInvalidReturn, "Invalid request", err)
	}

	// Step 2: Load the order and check eligibility
	order, err := s.orderReader.GetSnapshot(ctx, req.OrderID)
	if err != nil {
		return nil, model.NewReturnError(model.ErrCodeOrderNotReturnable, "Order not found", err)
	}
	if order.CustomerID != actor.ID {
		return nil, model.NewReturnError(model.ErrCodeForbidden, "Order does not belong to customer", model.ErrForbidden)
	}
	if !order.IsReturnable() {
		return nil, model.NewReturnError(
			model.ErrCodeOrderNotReturnable,
			fmt.Sprintf("Order status '%s' does not allow returns", order.Status),
			model.ErrOrderNotReturnable,
		)
	}

	// Step 3: Snapshot the returned lines from the sold lines
	returnID := uuid.New()
	items, err := buildReturnItems(returnID, order, req.Items)
	if err != nil {
		return nil, err
	}

	request := &model.ReturnRequest{
		ID:                   returnID,
		OrderID:              order.ID,
		CustomerID:           actor.ID,
		CustomerPhone:        req.Phone,
		CustomerEmail:        req.Email,
		Status:               model.ReturnStatusRequested,
		RefundPreference:     req.RefundPreference,
		RefundedAmount:       decimal.Zero,
		OtpAttemptsRemaining: 0,
		CustomerNote:         req.CustomerNote,
		Version:              0,
	}

	// Step 4: Persist request, items, and the opening audit entry in one tx
	tx, err := s.returnRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.returnRepo.RollbackTx(ctx, tx)

	if err := s.returnRepo.CreateWithTx(ctx, tx, request); err != nil {
		return nil, err
	}
	if err := s.returnRepo.CreateItemsWithTx(ctx, tx, items); err != nil {
		return nil, err
	}

	entry := &model.ReturnStatusHistory{
		ID:         uuid.New(),
		ReturnID:   returnID,
		FromStatus: nil,
		ToStatus:   model.ReturnStatusRequested,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Note:       req.CustomerNote,
	}
	if err := s.returnRepo.AppendHistoryWithTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := s.returnRepo.CommitTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Step 5: Publish the domain event after commit
	s.publishStatusChanged(request, "", model.ReturnStatusRequested, actor)

	return s.returnRepo.GetByID(ctx, returnID)
}

// buildReturnItems validates requested lines against the sold lines and
// snapshots price/tax data onto the return
func buildReturnItems(returnID uuid.UUID, order *orderModel.OrderSnapshot, inputs []model.CreateReturnItem) ([]model.ReturnItem, error) {
	items := make([]model.ReturnItem, 0, len(inputs))
	for _, in := range inputs {
		sold := order.ItemByProductID(in.ProductID)
		if sold == nil {
			return nil, model.NewReturnError(
				model.ErrCodeInvalidReturn,
				fmt.Sprintf("Product %s is not on the order", in.ProductID),
				model.ErrOrderNotReturnable,
			)
		}
		if in.Quantity > sold.Quantity {
			return nil, model.NewReturnError(
				model.ErrCodeQuantityExceedsOrdered,
				fmt.Sprintf("Return quantity %d exceeds ordered quantity %d for '%s'", in.Quantity, sold.Quantity, sold.Name),
				model.ErrQuantityExceedsOrdered,
			)
		}

		items = append(items, model.ReturnItem{
			ID:               uuid.New(),
			ReturnID:         returnID,
			ProductID:        sold.ProductID,
			Name:             sold.Name,
			Price:            sold.Price,
			Quantity:         in.Quantity,
			PriceIncludesTax: sold.PriceIncludesTax,
			TaxName:          sold.TaxName,
			TaxPercentage:    sold.TaxPercentage,
			ReturnReason:     in.Reason,
			Images:           in.Images,
			ReturnStatus:     model.ItemStatusPending,
		})
	}
	return items, nil
}

// =====================================================
// READS
// =====================================================

func (s *returnService) GetReturn(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.ReturnRequest, error) {
	// The originating customer owns read access; staff and agents see all
	if actor.Role == model.RoleCustomer {
		return s.returnRepo.GetByIDAndCustomer(ctx, id, actor.ID)
	}
	return s.returnRepo.GetByID(ctx, id)
}

func (s *returnService) ListReturns(ctx context.Context, actor model.Actor, req model.ListReturnsRequest) ([]model.ReturnRequest, int, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, model.NewReturnError(model.ErrCodeInvalidReturn, "Invalid request", err)
	}

	filter := repository.ListFilter{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: (req.Page - 1) * req.Limit,
	}
	if actor.Role == model.RoleCustomer {
		customerID := actor.ID
		filter.CustomerID = &customerID
	}

	return s.returnRepo.List(ctx, filter)
}

// =====================================================
// STATUS TRANSITION
// =====================================================

func (s *returnService) Transition(ctx context.Context, id uuid.UUID, actor model.Actor, req model.UpdateStatusRequest) (*model.ReturnRequest, error) {
	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeInvalidReturn, "Invalid request", err)
	}
	target := model.ReturnStatus(req.Status)

	// 2. Load current state
	request, err := s.returnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3. Legality + role gate
	if err := validateTransition(request.Status, target, actor.Role); err != nil {
		return nil, err
	}

	// 4. Preconditions
	params := repository.UpdateStatusParams{
		ID:      request.ID,
		Version: request.Version,
		Status:  target,
	}

	switch target {
	case model.ReturnStatusPickupAssigned:
		if req.PickupAgent == nil {
			return nil, model.NewReturnError(
				model.ErrCodePreconditionFailed,
				"pickup_assigned requires an assigned agent",
				model.ErrPreconditionFailed,
			)
		}
		params.PickupAgent = &model.PickupAgent{
			AgentID:    req.PickupAgent.AgentID,
			Name:       req.PickupAgent.Name,
			Phone:      req.PickupAgent.Phone,
			AssignedAt: time.Now(),
		}

	case model.ReturnStatusPickedUp:
		if !request.OtpVerified() {
			return nil, model.NewReturnError(
				model.ErrCodePreconditionFailed,
				"picked_up requires a verified pickup code",
				model.ErrPreconditionFailed,
			)
		}
		// The verified marker gates exactly one pickup
		params.ClearOtpVerified = true
	}

	// 5. A full refund settles every remaining pending line at its
	// computed value
	var lineAmounts map[uuid.UUID]decimal.Decimal

	if target == model.ReturnStatusRefunded {
		pending := request.PendingItems()
		order, oerr := s.orderReader.GetSnapshot(ctx, request.OrderID)
		if oerr != nil {
			return nil, fmt.Errorf("failed to load order for refund: %w", oerr)
		}
		computation, cerr := ComputeRefund(pending, order, s.deliveryRefundable)
		if cerr != nil {
			return nil, cerr
		}

		delta := computation.RefundableTotal
		params.RefundedDelta = &delta

		lineAmounts = make(map[uuid.UUID]decimal.Decimal, len(computation.Lines))
		for _, line := range computation.Lines {
			lineAmounts[line.ItemID] = line.Refundable
		}
	}

	// 6. Persist under the version check
	tx, err := s.returnRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.returnRepo.RollbackTx(ctx, tx)

	if err := s.returnRepo.UpdateStatusWithTx(ctx, tx, params); err != nil {
		return nil, err
	}

	for itemID, amount := range lineAmounts {
		if err := s.returnRepo.MarkItemRefundedWithTx(ctx, tx, itemID, amount); err != nil {
			return nil, err
		}
	}

	fromStatus := request.Status
	entry := &model.ReturnStatusHistory{
		ID:         uuid.New(),
		ReturnID:   request.ID,
		FromStatus: &fromStatus,
		ToStatus:   target,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Note:       req.Note,
	}
	if err := s.returnRepo.AppendHistoryWithTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := s.returnRepo.CommitTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// 7. Publish the domain event after commit
	s.publishStatusChanged(request, fromStatus, target, actor)

	return s.returnRepo.GetByID(ctx, request.ID)
}

// validateTransition checks legality and the actor's role for one move
func validateTransition(current, target model.ReturnStatus, role model.Role) error {
	if target == current {
		return model.NewReturnError(
			model.ErrCodeIllegalTransition,
			fmt.Sprintf("Return is already '%s'", current),
			model.ErrIllegalTransition,
		)
	}

	allowed, exists := allowedTransitions[current]
	if !exists {
		return model.NewReturnError(
			model.ErrCodeIllegalTransition,
			fmt.Sprintf("Cannot transition from terminal status '%s'", current),
			model.ErrIllegalTransition,
		)
	}

	legal := false
	for _, next := range allowed {
		if next == target {
			legal = true
			break
		}
	}
	if !legal {
		return model.NewReturnError(
			model.ErrCodeIllegalTransition,
			fmt.Sprintf("Cannot transition from '%s' to '%s'", current, target),
			model.ErrIllegalTransition,
		)
	}

	for _, permitted := range transitionActors[current] {
		if permitted == role {
			return nil
		}
	}
	return model.NewReturnError(
		model.ErrCodeForbidden,
		fmt.Sprintf("Role '%s' may not transition a return out of '%s'", role, current),
		model.ErrForbidden,
	)
}

// =====================================================
// PARTIAL REFUND (PER-LINE MANUAL PATH)
// =====================================================

func (s *returnService) SubmitRefund(ctx context.Context, id uuid.UUID, actor model.Actor, req model.SubmitRefundRequest) (*model.RefundResponse, error) {
	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeInvalidReturn, "Invalid request", err)
	}

	// 2. Load current state
	request, err := s.returnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3. The partial path is a received -> partially_refunded transition
	if err := validateTransition(request.Status, model.ReturnStatusPartiallyRefunded, actor.Role); err != nil {
		return nil, err
	}

	// 4. Resolve submitted lines; only pending lines participate
	submitted := make([]model.ReturnItem, 0, len(req.Items))
	for _, in := range req.Items {
		item := request.ItemByID(in.ItemID.String())
		if item == nil {
			return nil, model.NewReturnError(
				model.ErrCodeInvalidReturn,
				fmt.Sprintf("Item %s is not on the return", in.ItemID),
				model.ErrReturnNotFound,
			)
		}
		if item.ReturnStatus != model.ItemStatusPending {
			return nil, model.NewReturnError(
				model.ErrCodeItemAlreadyRefunded,
				fmt.Sprintf("Item '%s' was already refunded", item.Name),
				model.ErrItemAlreadyRefunded,
			)
		}
		submitted = append(submitted, *item)
	}

	// 5. Compute the authoritative upper bound over exactly these lines
	order, err := s.orderReader.GetSnapshot(ctx, request.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order for refund: %w", err)
	}
	computation, err := ComputeRefund(submitted, order, s.deliveryRefundable)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, in := range req.Items {
		if in.RefundAmount.LessThanOrEqual(decimal.Zero) || !in.RefundAmount.Equal(in.RefundAmount.Truncate(0)) {
			return nil, model.NewReturnError(
				model.ErrCodeInvalidAmount,
				"per-line refund amounts must be positive whole currency units",
				model.ErrInvalidAmount,
			)
		}
		total = total.Add(in.RefundAmount)
	}
	if err := ValidateRefundAmount(total, computation.RefundableTotal); err != nil {
		return nil, err
	}

	// 6. Persist: mark lines, transition, audit, all under the version check
	params := repository.UpdateStatusParams{
		ID:            request.ID,
		Version:       request.Version,
		Status:        model.ReturnStatusPartiallyRefunded,
		RefundedDelta: &total,
	}

	tx, err := s.returnRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.returnRepo.RollbackTx(ctx, tx)

	if err := s.returnRepo.UpdateStatusWithTx(ctx, tx, params); err != nil {
		return nil, err
	}
	for _, in := range req.Items {
		if err := s.returnRepo.MarkItemRefundedWithTx(ctx, tx, in.ItemID, in.RefundAmount); err != nil {
			return nil, err
		}
	}

	fromStatus := request.Status
	entry := &model.ReturnStatusHistory{
		ID:         uuid.New(),
		ReturnID:   request.ID,
		FromStatus: &fromStatus,
		ToStatus:   model.ReturnStatusPartiallyRefunded,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Note:       req.Note,
	}
	if err := s.returnRepo.AppendHistoryWithTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := s.returnRepo.CommitTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// 7. Publish the domain event after commit
	s.publishStatusChanged(request, fromStatus, model.ReturnStatusPartiallyRefunded, actor)

	resp := &model.RefundResponse{
		ReturnID:       request.ID,
		Status:         model.ReturnStatusPartiallyRefunded,
		RefundedAmount: request.RefundedAmount.Add(total),
		LowConfidence:  computation.LowConfidence,
	}
	for _, line := range computation.Lines {
		resp.Lines = append(resp.Lines, model.RefundLine{
			ItemID:        line.ItemID,
			TaxableValue:  line.TaxableValue,
			CGST:          line.CGST,
			SGST:          line.SGST,
			IGST:          line.IGST,
			GrossTotal:    line.GrossTotal,
			DiscountShare: line.DiscountShare,
			Refundable:    line.Refundable,
		})
	}

	return resp, nil
}

// =====================================================
// DOMAIN EVENTS
// =====================================================

// publishStatusChanged enqueues the ReturnStatusChanged event after a commit.
// Delivery failures are logged, never propagated: the transition already
// happened.
func (s *returnService) publishStatusChanged(request *model.ReturnRequest, from, to model.ReturnStatus, actor model.Actor) {
	if s.asynq == nil {
		return
	}

	payload := shared.ReturnStatusChangedPayload{
		ReturnID:     request.ID.String(),
		ReturnNumber: request.ReturnNumber,
		FromStatus:   from.String(),
		ToStatus:     to.String(),
		ActorRole:    actor.Role.String(),
		ChangedAt:    time.Now(),
	}
	if request.CustomerEmail != nil {
		payload.CustomerEmail = *request.CustomerEmail
	}

	b, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal ReturnStatusChanged payload", err)
		return
	}

	task := asynq.NewTask(shared.TypeReturnStatusChanged, b)
	if _, err := s.asynq.Enqueue(task, asynq.Queue(shared.QueueNotifications)); err != nil {
		logger.Error("Failed to enqueue ReturnStatusChanged event", err)
	}
}
