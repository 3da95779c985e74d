package models

import "time"

// Verification statuses shared by employment records and companies.
const (
	StatusPending  = "pending"
	StatusInReview = "in_review"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

type Employment struct {
	ID                 int        `json:"id"`
	CandidateID        int        `json:"candidate_id"`
	CompanyID          *int       `json:"company_id,omitempty"`
	CompanyName        string     `json:"company_name"`
	Position           string     `json:"position"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	VerificationStatus string     `json:"verification_status"`
	DocumentKey        string     `json:"-"`
	HasDocument        bool       `json:"has_document"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	VerifiedBy         *int       `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type CreateEmploymentRequest struct {
	CompanyID   *int   `json:"company_id"`
	CompanyName string `json:"company_name" binding:"required"`
	Position    string `json:"position" binding:"required"`
	StartDate   string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// Decision is the body of every approve/reject/verify endpoint.
type Decision struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// StatusChange is what a repository persists for a decision.
type StatusChange struct {
	From            []string
	To              string
	ActorID         int
	Notes           string
	RejectionReason string
}
