package model

import "time"

// =====================================================
// DERIVED STATE HELPERS
// =====================================================
// The reference UI inferred expired/live state by comparing dates inline at
// every call site. These pure functions are the single source of truth instead.

// IsCurrentlyActive reports whether the return can still move through the workflow
func (r *ReturnRequest) IsCurrentlyActive() bool {
	return !r.Status.IsTerminal()
}

// OtpIssued reports whether a code is currently on file
func (r *ReturnRequest) OtpIssued() bool {
	return r.OtpCodeHash != nil
}

// OtpExpired reports whether the stored code is past its TTL or has no attempts left
func (r *ReturnRequest) OtpExpired(now time.Time) bool {
	if r.OtpCodeHash == nil {
		return true
	}
	if r.OtpAttemptsRemaining <= 0 {
		return true
	}
	return r.OtpExpiresAt != nil && now.After(*r.OtpExpiresAt)
}

// OtpVerified reports whether a verify has succeeded since the most recent issuance
func (r *ReturnRequest) OtpVerified() bool {
	return r.OtpVerifiedAt != nil
}

// OtpResendAvailable reports whether the resend cooldown window has elapsed
func (r *ReturnRequest) OtpResendAvailable(now time.Time) bool {
	if r.OtpResendAvailableAt == nil {
		return true
	}
	return !now.Before(*r.OtpResendAvailableAt)
}

// PendingItems returns the lines still awaiting a refund.
// Lines already marked refunded are excluded from every later computation.
func (r *ReturnRequest) PendingItems() []ReturnItem {
	var pending []ReturnItem
	for _, it := range r.Items {
		if it.ReturnStatus == ItemStatusPending {
			pending = append(pending, it)
		}
	}
	return pending
}

// ItemByID looks up a loaded line by its id
func (r *ReturnRequest) ItemByID(id string) *ReturnItem {
	for i := range r.Items {
		if r.Items[i].ID.String() == id {
			return &r.Items[i]
		}
	}
	return nil
}
