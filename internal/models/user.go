package models

import "time"

// User is an account row. Email is always stored normalized.
type User struct {
	ID           int        `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	AccountType  string     `json:"account_type"`
	IsVerified   bool       `json:"is_verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Candidate struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Name        string `json:"name" binding:"required"`
	AccountType string `json:"accountType" binding:"required,accounttype"`
}

type VerifyEmailRequest struct {
	Email             string `json:"email" binding:"required,email"`
	Code              string `json:"code" binding:"required,otpcode"`
	RegistrationToken string `json:"registrationToken" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,otpcode"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest accepts either email+code or a reset token from verify-reset-code.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// AuthResponse is the body of every auth endpoint that can end a flow step.
type AuthResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message,omitempty"`
	OTPRequired       bool   `json:"otpRequired"`
	Delivered         *bool  `json:"delivered,omitempty"`
	RegistrationToken string `json:"registrationToken,omitempty"`
	ResetToken        string `json:"resetToken,omitempty"`
	Token             string `json:"token,omitempty"`
	User              *User  `json:"user,omitempty"`
}
