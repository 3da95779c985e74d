package models

import "time"

type Company struct {
	ID                   int        `json:"id"`
	UserID               int        `json:"user_id"`
	CompanyName          string     `json:"company_name"`
	VerificationStatus   string     `json:"verification_status"`
	VerificationDocument string     `json:"-"`
	RejectionReason      string     `json:"rejection_reason,omitempty"`
	VerifiedBy           *int       `json:"verified_by,omitempty"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
