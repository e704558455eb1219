package model

import "time"

// =====================================================
// PICKUP OTP POLICY
// =====================================================
const (
	// OtpLength is the number of digits in a pickup code
	OtpLength = 4

	// OtpMaxAttempts is how many wrong codes are tolerated before invalidation
	OtpMaxAttempts = 5
)

const (
	// OtpTTL is how long a generated code stays valid
	OtpTTL = 5 * time.Minute

	// OtpResendCooldown is the minimum gap between issuances
	OtpResendCooldown = 30 * time.Second
)
