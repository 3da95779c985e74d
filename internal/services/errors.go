package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrTooManyRequests      = errors.New("too many requests, try again later")
	ErrAccountExists        = errors.New("account with this email already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrInvalidTransition    = errors.New("status transition not allowed")
	ErrReasonRequired       = errors.New("rejection reason is required")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrCompanyNotVerified   = errors.New("company is not verified")
	ErrDocumentTooLarge     = errors.New("document exceeds upload limit")
	ErrDocumentMissing      = errors.New("no document attached")
	ErrNotVerified          = errors.New("record is not verified")
	ErrStorageUnavailable   = errors.New("document storage is not configured")
	ErrNothingToReview      = errors.New("no verification document has been submitted")
)

// ValidationError is a field-level input error that services raise themselves.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}
