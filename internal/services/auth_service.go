package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"veriboard/internal/authz"
	"veriboard/internal/logger"
	"veriboard/internal/models"
	"veriboard/internal/repositories"
	"veriboard/internal/utils"
)

const (
	minPasswordLength = 8
	resetIssueTimeout = 30 * time.Second

	msgCodeSent       = "Verification code sent to your email"
	msgCodeNotSent    = "Verification code generated but email delivery failed; request a new code"
	msgForgotPassword = "If an account with that email exists, a reset code has been sent"
	msgPasswordReset  = "Password has been reset"
	msgLoginOTP       = "A sign-in code has been sent to your email"
)

type CodeIssuer interface {
	Request(ctx context.Context, email string, purpose models.OTPPurpose) (string, error)
	Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) error
}

type CodeSender interface {
	SendCode(ctx context.Context, email, code string, purpose models.OTPPurpose) DeliveryResult
	SendCodeAsync(ctx context.Context, email, code string, purpose models.OTPPurpose)
}

type AuthOptions struct {
	EnableOTPOnLogin     bool
	RequireOTPOnRegister bool
	// HashCost is the bcrypt cost for account passwords; zero means bcrypt.DefaultCost.
	HashCost int
}

// AuthService drives the register, login and password reset flows.
type AuthService struct {
	users  repositories.UserRepository
	codes  CodeIssuer
	sender CodeSender
	tokens *TokenService
	opts   AuthOptions

	dummyHash []byte
	now       func() time.Time
	// background runs work that must not add to the response time.
	background func(task func())
}

func NewAuthService(users repositories.UserRepository, codes CodeIssuer, sender CodeSender, tokens *TokenService, opts AuthOptions) *AuthService {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	s := &AuthService{
		users:      users,
		codes:      codes,
		sender:     sender,
		tokens:     tokens,
		opts:       opts,
		now:        time.Now,
		background: func(task func()) { go task() },
	}
	if pad, err := utils.NewRandomHex(16); err == nil {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(pad), opts.HashCost)
	}
	return s
}

func (s *AuthService) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.HashCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(b), nil
}

// Register validates the request and either sends a register code together with a
// signed registration ticket, or creates the account right away when codes on
// registration are disabled.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, newValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if name == "" {
		return nil, newValidationError("name", "is required")
	}
	if !authz.IsSelfRegistrable(req.AccountType) {
		return nil, newValidationError("accountType", "must be candidate or company")
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountExists
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	if !s.opts.RequireOTPOnRegister {
		user := &models.User{Email: email, Name: name, PasswordHash: hash, AccountType: req.AccountType}
		return s.createAccount(ctx, user)
	}

	code, err := s.codes.Request(ctx, email, models.PurposeRegister)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tokens.IssueRegistration(email, name, hash, req.AccountType)
	if err != nil {
		return nil, err
	}

	res := s.sender.SendCode(ctx, email, code, models.PurposeRegister)
	msg := msgCodeSent
	if !res.Delivered {
		msg = msgCodeNotSent
	}
	delivered := res.Delivered
	return &models.AuthResponse{
		Success:           true,
		Message:           msg,
		OTPRequired:       true,
		Delivered:         &delivered,
		RegistrationToken: ticket,
	}, nil
}

// VerifyEmail consumes the register code and creates the account from the ticket.
// The code is consumed before the insert; a failed insert does not restore it.
func (s *AuthService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (*models.AuthResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	claims, err := s.tokens.ParseRegistration(req.RegistrationToken)
	if err != nil {
		return nil, err
	}
	if claims.Email != email || !authz.IsSelfRegistrable(claims.AccountType) {
		return nil, ErrInvalidToken
	}

	if err := s.codes.Verify(ctx, email, req.Code, models.PurposeRegister); err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		Email:        email,
		Name:         claims.Name,
		PasswordHash: claims.PasswordHash,
		AccountType:  claims.AccountType,
		IsVerified:   true,
		VerifiedAt:   &now,
	}
	return s.createAccount(ctx, user)
}

func (s *AuthService) createAccount(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	err := s.users.CreateWithProfile(ctx, user)
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrAccountExists
	}
	if err != nil {
		logger.Log.WithError(err).Error("[auth][register] account creation failed")
		return nil, err
	}

	token, err := s.tokens.IssueSession(user.ID, user.AccountType)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "account_type": user.AccountType}).Info("[auth][register] account created")
	return &models.AuthResponse{Success: true, Token: token, User: user}, nil
}

// Login checks credentials. Unknown email and wrong password are indistinguishable,
// including in timing. With login codes enabled no token is returned here.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		if s.dummyHash != nil {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		}
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logger.Log.WithField("user_id", user.ID).Info("[auth][login] wrong password")
		return nil, ErrInvalidCredentials
	}

	if s.opts.EnableOTPOnLogin {
		code, err := s.codes.Request(ctx, email, models.PurposeLogin2FA)
		if err != nil {
			return nil, err
		}
		s.sender.SendCodeAsync(ctx, email, code, models.PurposeLogin2FA)
		return &models.AuthResponse{Success: true, Message: msgLoginOTP, OTPRequired: true}, nil
	}

	return s.session(user)
}

func (s *AuthService) VerifyLoginOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.AuthResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if err := s.codes.Verify(ctx, email, req.Code, models.PurposeLogin2FA); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *AuthService) session(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.IssueSession(user.ID, user.AccountType)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Success: true, Token: token, User: user}, nil
}

// ForgotPassword answers identically whether or not the account exists. The
// lookup is the only synchronous work on both branches; issuing, rate limiting
// and mailing the code happen in the background.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (*models.AuthResponse, error) {
	generic := &models.AuthResponse{Success: true, Message: msgForgotPassword}
	email := utils.NormalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		logger.Log.Debug("[auth][forgot] no account for email")
		return generic, nil
	}
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	s.background(func() { s.issueResetCode(bg, user) })
	return generic, nil
}

func (s *AuthService) issueResetCode(ctx context.Context, user *models.User) {
	ctx, cancel := context.WithTimeout(ctx, resetIssueTimeout)
	defer cancel()

	code, err := s.codes.Request(ctx, user.Email, models.PurposeResetPassword)
	if errors.Is(err, ErrTooManyRequests) {
		logger.Log.WithField("user_id", user.ID).Info("[auth][forgot] rate limited")
		return
	}
	if err != nil {
		logger.Log.WithField("user_id", user.ID).WithError(err).Error("[auth][forgot] issue reset code failed")
		return
	}
	s.sender.SendCode(ctx, user.Email, code, models.PurposeResetPassword)
}

// VerifyResetCode consumes the reset code and hands out a single-use reset ticket.
func (s *AuthService) VerifyResetCode(ctx context.Context, req models.VerifyOTPRequest) (*models.AuthResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if err := s.codes.Verify(ctx, email, req.Code, models.PurposeResetPassword); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, err
	}
	ticket, err := s.tokens.IssueReset(user.ID, user.Email, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Success: true, ResetToken: ticket}, nil
}

// ResetPassword rotates the password using either a reset ticket or email+code.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (*models.AuthResponse, error) {
	if len(req.NewPassword) < minPasswordLength {
		return nil, newValidationError("newPassword", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	var user *models.User
	switch {
	case req.ResetToken != "":
		claims, err := s.tokens.ParseReset(req.ResetToken)
		if err != nil {
			return nil, err
		}
		user, err = s.users.GetByID(ctx, claims.UserID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		if err != nil {
			return nil, err
		}
		if passwordFingerprint(user.PasswordHash) != claims.Fingerprint {
			return nil, ErrInvalidToken
		}
	case req.Email != "" && req.Code != "":
		email := utils.NormalizeEmail(req.Email)
		if err := s.codes.Verify(ctx, email, req.Code, models.PurposeResetPassword); err != nil {
			return nil, err
		}
		var err error
		user, err = s.users.GetByEmail(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, newValidationError("resetToken", "either resetToken or email and code are required")
	}

	hash, err := s.HashPassword(req.NewPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	logger.Log.WithField("user_id", user.ID).Info("[auth][reset] password rotated")
	return &models.AuthResponse{Success: true, Message: msgPasswordReset}, nil
}

func (s *AuthService) Me(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

// EnsureAdmin seeds an admin account when the email is not taken yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil || exists {
		return err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	now := s.now()
	admin := &models.User{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: hash,
		AccountType:  authz.AccountAdmin,
		IsVerified:   true,
		VerifiedAt:   &now,
	}
	if err := s.users.Create(ctx, admin); err != nil && !errors.Is(err, repositories.ErrDuplicate) {
		return err
	}
	logger.Log.WithField("user_id", admin.ID).Info("[auth][bootstrap] admin account created")
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return newValidationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return newValidationError("email", "must be a valid email address")
	}
	return nil
}
