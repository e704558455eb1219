package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// CREATE RETURN REQUEST
// =====================================================
type CreateReturnRequest struct {
	OrderID          uuid.UUID          `json:"order_id" binding:"required"`
	Items            []CreateReturnItem `json:"items" binding:"required,min=1"`
	RefundPreference *RefundPreference  `json:"refund_preference,omitempty"`
	CustomerNote     *string            `json:"customer_note,omitempty"`
	// Contact for pickup coordination and OTP delivery
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

type CreateReturnItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
	Reason    string    `json:"reason" binding:"required"`
	Images    []string  `json:"images,omitempty"`
}

// Validate validates CreateReturnRequest
func (req CreateReturnRequest) Validate() error {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.OrderID, validation.Required),
		validation.Field(&req.Items, validation.Required, validation.Length(1, 100)),
	); err != nil {
		return err
	}
	for _, item := range req.Items {
		if err := validation.ValidateStruct(&item,
			validation.Field(&item.ProductID, validation.Required),
			validation.Field(&item.Quantity, validation.Required, validation.Min(1)),
			validation.Field(&item.Reason, validation.Required, validation.Length(3, 500)),
			validation.Field(&item.Images, validation.Length(0, 10)),
		); err != nil {
			return err
		}
	}
	if req.RefundPreference != nil && !req.RefundPreference.Method.IsValid() {
		return validation.NewError("refund_preference", "refund method must be upi or bank")
	}
	return nil
}

// =====================================================
// STATUS TRANSITION REQUEST
// =====================================================
type UpdateStatusRequest struct {
	Status      string            `json:"status" binding:"required"`
	Note        *string           `json:"note,omitempty"`
	PickupAgent *PickupAgentInput `json:"assigned_pickup_agent,omitempty"`
}

type PickupAgentInput struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
}

// Validate validates UpdateStatusRequest
func (req UpdateStatusRequest) Validate() error {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Status, validation.Required, validation.In(
			ReturnStatusApproved.String(),
			ReturnStatusPickupAssigned.String(),
			ReturnStatusPickupRejected.String(),
			ReturnStatusPickedUp.String(),
			ReturnStatusReceived.String(),
			ReturnStatusRefunded.String(),
			ReturnStatusRejected.String(),
		)),
		validation.Field(&req.Note, validation.Length(0, 1000)),
	); err != nil {
		return err
	}
	if req.PickupAgent != nil {
		return validation.ValidateStruct(req.PickupAgent,
			validation.Field(&req.PickupAgent.AgentID, validation.Required),
			validation.Field(&req.PickupAgent.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&req.PickupAgent.Phone, validation.Required, validation.Length(6, 20)),
		)
	}
	return nil
}

// =====================================================
// OTP REQUESTS
// =====================================================
type VerifyOtpRequest struct {
	Code string `json:"code" binding:"required"`
}

// Validate validates VerifyOtpRequest
func (req VerifyOtpRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Code, validation.Required, validation.Length(OtpLength, OtpLength), is.Digit),
	)
}

type OtpIssuedResponse struct {
	ExpiresAt         time.Time `json:"expires_at"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
}

// =====================================================
// PARTIAL REFUND REQUEST
// =====================================================
type SubmitRefundRequest struct {
	Items        []RefundItemInput `json:"items" binding:"required,min=1"`
	RefundMethod string            `json:"refund_method" binding:"required"`
	Note         *string           `json:"note,omitempty"`
}

type RefundItemInput struct {
	ItemID       uuid.UUID       `json:"item_id" binding:"required"`
	RefundAmount decimal.Decimal `json:"refund_amount" binding:"required"`
}

// Validate validates SubmitRefundRequest
func (req SubmitRefundRequest) Validate() error {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Items, validation.Required, validation.Length(1, 100)),
		validation.Field(&req.RefundMethod, validation.Required, validation.In(
			string(RefundMethodUPI),
			string(RefundMethodBank),
		)),
	); err != nil {
		return err
	}
	for _, item := range req.Items {
		if err := validation.ValidateStruct(&item,
			validation.Field(&item.ItemID, validation.Required),
		); err != nil {
			return err
		}
	}
	return nil
}

// =====================================================
// LIST / FILTER
// =====================================================
type ListReturnsRequest struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Status string `form:"status"`
}

// Validate normalizes pagination and checks the optional status filter
func (req *ListReturnsRequest) Validate() error {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Status != "" && !ReturnStatus(req.Status).IsValid() {
		return validation.NewError("status", "invalid return status filter")
	}
	return nil
}

// =====================================================
// RESPONSES
// =====================================================
type RefundResponse struct {
	ReturnID       uuid.UUID       `json:"return_id"`
	Status         ReturnStatus    `json:"status"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	Lines          []RefundLine    `json:"lines,omitempty"`
	LowConfidence  bool            `json:"low_confidence,omitempty"`
}

// RefundLine mirrors one computed line of the refund breakdown
type RefundLine struct {
	ItemID        uuid.UUID       `json:"item_id"`
	TaxableValue  decimal.Decimal `json:"taxable_value"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
	GrossTotal    decimal.Decimal `json:"gross_total"`
	DiscountShare decimal.Decimal `json:"discount_share"`
	Refundable    decimal.Decimal `json:"refundable"`
}
