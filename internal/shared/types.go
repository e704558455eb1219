package shared

import "time"

// Queue names
const (
	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"
)

// Task type names
const (
	TypeSendPickupOtp       = "returns:send_pickup_otp"
	TypeReturnStatusChanged = "returns:status_changed"
	TypeSweepExpiredOtps    = "returns:sweep_expired_otps"
)

// SendPickupOtpPayload carries the plaintext code to the delivery worker.
// The code exists only in this task payload and in the SMS/email body; the
// database stores the hash.
type SendPickupOtpPayload struct {
	ReturnID      string    `json:"returnId"`
	ReturnNumber  string    `json:"returnNumber"`
	Code          string    `json:"code"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CustomerPhone string    `json:"customerPhone,omitempty"`
	CustomerEmail string    `json:"customerEmail,omitempty"`
}

// ReturnStatusChangedPayload is the domain event published after every
// successful transition
type ReturnStatusChangedPayload struct {
	ReturnID      string    `json:"returnId"`
	ReturnNumber  string    `json:"returnNumber"`
	FromStatus    string    `json:"fromStatus"`
	ToStatus      string    `json:"toStatus"`
	ActorRole     string    `json:"actorRole"`
	ChangedAt     time.Time `json:"changedAt"`
	CustomerEmail string    `json:"customerEmail,omitempty"`
}

// SweepExpiredOtpsPayload is empty; the job reads its cutoff from the clock
type SweepExpiredOtpsPayload struct{}
