package model

import "errors"

// =====================================================
// CUSTOM ERROR CODES
// =====================================================
const (
	ErrCodeReturnNotFound         = "RET001"
	ErrCodeIllegalTransition      = "RET002"
	ErrCodeForbidden              = "RET003"
	ErrCodePreconditionFailed     = "RET004"
	ErrCodeConflictingUpdate      = "RET005"
	ErrCodeInvalidCode            = "RET006"
	ErrCodeCodeExpired            = "RET007"
	ErrCodeCooldownActive         = "RET008"
	ErrCodeOtpNotEligible         = "RET009"
	ErrCodeMissingTaxInfo         = "RET010"
	ErrCodeMissingStateInfo       = "RET011"
	ErrCodeAmountExceedsRefund    = "RET012"
	ErrCodeInvalidAmount          = "RET013"
	ErrCodeInvalidReturn          = "RET014"
	ErrCodeOrderNotReturnable     = "RET015"
	ErrCodeItemAlreadyRefunded    = "RET016"
	ErrCodeQuantityExceedsOrdered = "RET017"
)

// =====================================================
// ERROR DEFINITIONS
// =====================================================
var (
	ErrReturnNotFound     = errors.New("return request not found")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrForbidden          = errors.New("actor role not permitted for this transition")
	ErrPreconditionFailed = errors.New("transition precondition not met")
	ErrConflictingUpdate  = errors.New("conflicting update - concurrent modification detected")

	ErrInvalidCode    = errors.New("invalid pickup code")
	ErrCodeHasExpired = errors.New("pickup code expired or invalidated")
	ErrCooldownActive = errors.New("resend cooldown still active")
	ErrOtpNotEligible = errors.New("return is not awaiting pickup")

	ErrMissingTaxInfo          = errors.New("no resolvable tax rate for return line")
	ErrMissingStateInfo        = errors.New("missing warehouse or delivery state")
	ErrAmountExceedsRefundable = errors.New("requested amount exceeds refundable total")
	ErrInvalidAmount           = errors.New("refund amount must be a positive whole unit")

	ErrOrderNotReturnable     = errors.New("order is not eligible for return")
	ErrItemAlreadyRefunded    = errors.New("return line already refunded")
	ErrQuantityExceedsOrdered = errors.New("return quantity exceeds ordered quantity")

	ErrInvalidPickupAgent      = errors.New("invalid pickup agent payload")
	ErrInvalidRefundPreference = errors.New("invalid refund preference payload")
)

// =====================================================
// CUSTOM ERROR TYPE
// =====================================================
type ReturnError struct {
	Code    string
	Message string
	Err     error
}

func (e *ReturnError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ReturnError) Unwrap() error {
	return e.Err
}

// NewReturnError creates a new ReturnError
func NewReturnError(code, message string, err error) *ReturnError {
	return &ReturnError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
