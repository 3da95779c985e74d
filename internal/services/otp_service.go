package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"veriboard/internal/logger"
	"veriboard/internal/metrics"
	"veriboard/internal/models"
	"veriboard/internal/repositories"
	"veriboard/internal/utils"
)

const (
	defaultOTPTTL         = 10 * time.Minute
	defaultOTPMaxAttempts = 5
)

type OTPOptions struct {
	TTL         time.Duration
	MaxAttempts int
	// HashCost is the bcrypt cost for stored codes; zero means bcrypt.DefaultCost.
	HashCost int
}

// OTPService issues and consumes one-time codes. At most one code is active per
// (email, purpose); a new request replaces the previous code.
type OTPService struct {
	repo    repositories.OTPRepository
	limiter RateLimiter
	opts    OTPOptions
	now     func() time.Time
}

func NewOTPService(repo repositories.OTPRepository, limiter RateLimiter, opts OTPOptions) *OTPService {
	if opts.TTL <= 0 {
		opts.TTL = defaultOTPTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultOTPMaxAttempts
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &OTPService{repo: repo, limiter: limiter, opts: opts, now: time.Now}
}

// Request creates a fresh code for (email, purpose) and returns it in clear
// for the caller to dispatch. The clear code is never persisted.
func (s *OTPService) Request(ctx context.Context, email string, purpose models.OTPPurpose) (string, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return "", newValidationError("email", "is required")
	}
	if !purpose.Valid() {
		return "", newValidationError("purpose", "is invalid")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("otp:%s:%s", purpose, email))
		if err != nil {
			return "", err
		}
		if !allowed {
			metrics.OTPRateLimited(string(purpose))
			logger.Log.WithFields(logrus.Fields{"purpose": purpose}).Warn("[otp][request] rate limited")
			return "", ErrTooManyRequests
		}
	}

	code, err := utils.NewNumericCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.opts.HashCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}

	expiresAt := s.now().Add(s.opts.TTL)
	if err := s.repo.Upsert(ctx, email, purpose, string(hash), expiresAt); err != nil {
		return "", err
	}

	metrics.OTPIssued(string(purpose))
	logger.Log.WithFields(logrus.Fields{"purpose": purpose, "expires_at": expiresAt}).Debug("[otp][request] issued")
	return code, nil
}

// Verify consumes the active code on success. Each failed comparison counts as an
// attempt; once MaxAttempts is reached the code is discarded. Concurrent callers
// presenting the same code get exactly one success.
func (s *OTPService) Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) error {
	email = utils.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || !purpose.Valid() {
		return ErrInvalidOrExpiredCode
	}

	rec, err := s.repo.GetActive(ctx, email, purpose, s.now())
	if errors.Is(err, repositories.ErrNotFound) {
		metrics.OTPVerified(string(purpose), "missing")
		return ErrInvalidOrExpiredCode
	}
	if err != nil {
		return err
	}

	if rec.Attempts >= s.opts.MaxAttempts {
		_, _ = s.repo.Delete(ctx, rec.ID, rec.CodeHash)
		metrics.OTPVerified(string(purpose), "locked")
		return ErrInvalidOrExpiredCode
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)); err != nil {
		attempts, incErr := s.repo.IncrementAttempts(ctx, rec.ID, rec.CodeHash)
		if errors.Is(incErr, repositories.ErrNotFound) {
			metrics.OTPVerified(string(purpose), "missing")
			return ErrInvalidOrExpiredCode
		}
		if incErr != nil {
			return incErr
		}
		if attempts >= s.opts.MaxAttempts {
			if _, delErr := s.repo.Delete(ctx, rec.ID, rec.CodeHash); delErr != nil {
				logger.Log.WithError(delErr).Warn("[otp][verify] discard after max attempts failed")
			}
			metrics.OTPVerified(string(purpose), "locked")
			logger.Log.WithFields(logrus.Fields{"purpose": purpose}).Warn("[otp][verify] max attempts reached, code discarded")
			return ErrInvalidOrExpiredCode
		}
		metrics.OTPVerified(string(purpose), "mismatch")
		return ErrInvalidOrExpiredCode
	}

	deleted, err := s.repo.Delete(ctx, rec.ID, rec.CodeHash)
	if err != nil {
		return err
	}
	if !deleted {
		metrics.OTPVerified(string(purpose), "missing")
		return ErrInvalidOrExpiredCode
	}

	metrics.OTPVerified(string(purpose), "ok")
	return nil
}

// PurgeExpired removes rows that expired more than olderThan ago.
func (s *OTPService) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.PurgeExpired(ctx, s.now().Add(-olderThan))
}
