package models

import "time"

const (
	VerificationCodeTTL         = 10 * time.Minute
	VerificationCodeMaxAttempts = 5
)

// VerificationCode is the human-presence check shown during registration.
// It lives only in the code store, never in the backend.
type VerificationCode struct {
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *VerificationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c *VerificationCode) AttemptsExhausted() bool {
	return c.Attempts >= VerificationCodeMaxAttempts
}
