package models

import "time"

type OTPPurpose string

const (
	PurposeRegister      OTPPurpose = "register"
	PurposeLogin2FA      OTPPurpose = "login-2fa"
	PurposeResetPassword OTPPurpose = "reset-password"
)

func (p OTPPurpose) Valid() bool {
	switch p {
	case PurposeRegister, PurposeLogin2FA, PurposeResetPassword:
		return true
	}
	return false
}

// OTPCode is the single active code for an (email, purpose) pair.
// Only the bcrypt hash of the code is stored.
type OTPCode struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Purpose   OTPPurpose `json:"purpose"`
	CodeHash  string     `json:"-"`
	Attempts  int        `json:"attempts"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}
