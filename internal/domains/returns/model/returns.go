package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ReturnStatus represents the lifecycle state of a return request
type ReturnStatus string

const (
	ReturnStatusRequested         ReturnStatus = "requested"
	ReturnStatusApproved          ReturnStatus = "approved"
	ReturnStatusPickupAssigned    ReturnStatus = "pickup_assigned"
	ReturnStatusPickupRejected    ReturnStatus = "pickup_rejected"
	ReturnStatusPickedUp          ReturnStatus = "picked_up"
	ReturnStatusReceived          ReturnStatus = "received"
	ReturnStatusPartiallyRefunded ReturnStatus = "partially_refunded"
	ReturnStatusRefunded          ReturnStatus = "refunded"
	ReturnStatusRejected          ReturnStatus = "rejected"
)

func (rs ReturnStatus) IsValid() bool {
	switch rs {
	case ReturnStatusRequested, ReturnStatusApproved, ReturnStatusPickupAssigned,
		ReturnStatusPickupRejected, ReturnStatusPickedUp, ReturnStatusReceived,
		ReturnStatusPartiallyRefunded, ReturnStatusRefunded, ReturnStatusRejected:
		return true
	}
	return false
}

func (rs ReturnStatus) String() string {
	return string(rs)
}

// IsTerminal reports whether no further transition is allowed from this status.
// partially_refunded is terminal: once a partial refund is recorded the case is closed.
func (rs ReturnStatus) IsTerminal() bool {
	switch rs {
	case ReturnStatusPartiallyRefunded, ReturnStatusRefunded, ReturnStatusRejected:
		return true
	}
	return false
}

// Role represents actor roles recognized by the returns workflow
type Role string

const (
	RoleCustomer      Role = "customer"
	RoleDeliveryAgent Role = "delivery-agent"
	RoleOrderManager  Role = "order-manager"
	RoleStaffAdmin    Role = "staff-admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleDeliveryAgent, RoleOrderManager, RoleStaffAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// RefundMethod represents the customer's payout channel
type RefundMethod string

const (
	RefundMethodUPI  RefundMethod = "upi"
	RefundMethodBank RefundMethod = "bank"
)

func (rm RefundMethod) IsValid() bool {
	return rm == RefundMethodUPI || rm == RefundMethodBank
}

// ItemReturnStatus represents the per-line refund state
type ItemReturnStatus string

const (
	ItemStatusPending  ItemReturnStatus = "pending"
	ItemStatusRefunded ItemReturnStatus = "refunded"
)

// PickupAgent stores the assigned delivery agent snapshot (JSONB)
type PickupAgent struct {
	AgentID    string    `json:"agent_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Value implements driver.Valuer for JSONB
func (pa PickupAgent) Value() (driver.Value, error) {
	return json.Marshal(pa)
}

// Scan implements sql.Scanner for JSONB
func (pa *PickupAgent) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return ErrInvalidPickupAgent
	}
	return json.Unmarshal(bytes, pa)
}

// RefundPreference stores the customer's payout preference (JSONB)
type RefundPreference struct {
	Method  RefundMethod      `json:"method"`
	Details map[string]string `json:"details,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (rp RefundPreference) Value() (driver.Value, error) {
	return json.Marshal(rp)
}

// Scan implements sql.Scanner for JSONB
func (rp *RefundPreference) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return ErrInvalidRefundPreference
	}
	return json.Unmarshal(bytes, rp)
}

// ReturnRequest represents a customer return against a delivered order
type ReturnRequest struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ReturnNumber string    `json:"return_number" db:"return_number"`
	OrderID      uuid.UUID `json:"order_id" db:"order_id"`
	CustomerID   uuid.UUID `json:"customer_id" db:"customer_id"`

	// Contact captured at creation, used by the notification collaborator
	CustomerPhone *string `json:"customer_phone,omitempty" db:"customer_phone"`
	CustomerEmail *string `json:"customer_email,omitempty" db:"customer_email"`

	Status ReturnStatus `json:"status" db:"status"`

	PickupAgent      *PickupAgent      `json:"pickup_agent,omitempty" db:"pickup_agent"`
	RefundPreference *RefundPreference `json:"refund_preference,omitempty" db:"refund_preference"`

	// Cumulative total actually refunded across refund events
	RefundedAmount decimal.Decimal `json:"refunded_amount" db:"refunded_amount"`

	// Pickup OTP state (plaintext code is never stored)
	OtpCodeHash          *string    `json:"-" db:"otp_code_hash"`
	OtpExpiresAt         *time.Time `json:"-" db:"otp_expires_at"`
	OtpAttemptsRemaining int        `json:"-" db:"otp_attempts_remaining"`
	OtpResendAvailableAt *time.Time `json:"-" db:"otp_resend_available_at"`
	OtpVerifiedAt        *time.Time `json:"-" db:"otp_verified_at"`

	CustomerNote *string `json:"customer_note,omitempty" db:"customer_note"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Optimistic concurrency token, bumped on every mutation
	Version int `json:"version" db:"version"`

	// Loaded relations
	Items         []ReturnItem          `json:"items,omitempty" db:"-"`
	StatusHistory []ReturnStatusHistory `json:"status_history,omitempty" db:"-"`
}

// TaxInfo is the tax configuration carried on a sold line
type TaxInfo struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ReturnItem represents one product line within a return request
type ReturnItem struct {
	ID       uuid.UUID `json:"id" db:"id"`
	ReturnID uuid.UUID `json:"return_id" db:"return_id"`

	// Snapshot of the sold line
	ProductID        uuid.UUID        `json:"product_id" db:"product_id"`
	Name             string           `json:"name" db:"name"`
	Price            decimal.Decimal  `json:"price" db:"price"`
	Quantity         int              `json:"quantity" db:"quantity"`
	PriceIncludesTax bool             `json:"price_includes_tax" db:"price_includes_tax"`
	TaxName          *string          `json:"tax_name,omitempty" db:"tax_name"`
	TaxPercentage    *decimal.Decimal `json:"tax_percentage,omitempty" db:"tax_percentage"`

	ReturnReason string         `json:"return_reason" db:"return_reason"`
	Images       pq.StringArray `json:"images" db:"images"`

	// Per-line refund state; refund_amount is written at most once
	ReturnStatus ItemReturnStatus `json:"return_status" db:"return_status"`
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty" db:"refund_amount"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Tax returns the line's own tax info if present
func (it ReturnItem) Tax() *TaxInfo {
	if it.TaxPercentage == nil {
		return nil
	}
	name := ""
	if it.TaxName != nil {
		name = *it.TaxName
	}
	return &TaxInfo{Name: name, Percentage: *it.TaxPercentage}
}

// ReturnStatusHistory is an append-only audit trail entry.
// Rows are never edited or removed.
type ReturnStatusHistory struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	ReturnID   uuid.UUID     `json:"return_id" db:"return_id"`
	FromStatus *ReturnStatus `json:"from_status" db:"from_status"`
	ToStatus   ReturnStatus  `json:"to_status" db:"to_status"`
	ActorID    uuid.UUID     `json:"actor_id" db:"actor_id"`
	ActorRole  Role          `json:"actor_role" db:"actor_role"`
	Note       *string       `json:"note,omitempty" db:"note"`
	ChangedAt  time.Time     `json:"changed_at" db:"changed_at"`
}

// Actor identifies who is performing an operation
type Actor struct {
	ID   uuid.UUID
	Role Role
}
