package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	audienceSession      = "session"
	audienceRegistration = "registration"
	audienceReset        = "password-reset"

	ticketTTL = 10 * time.Minute
)

// SessionClaims is the bearer token payload checked by the auth middleware.
type SessionClaims struct {
	UserID      int    `json:"user_id"`
	AccountType string `json:"account_type"`
	jwt.RegisteredClaims
}

// RegistrationClaims carries the pending registration back to verify-email.
// It is signed, so the client cannot alter the email or account type.
type RegistrationClaims struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	AccountType  string `json:"account_type"`
	jwt.RegisteredClaims
}

// ResetClaims authorizes one password change. Fingerprint is derived from the
// password hash at issue time, so the ticket dies once the password rotates.
type ResetClaims struct {
	UserID      int    `json:"user_id"`
	Email       string `json:"email"`
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, sessionTTL time.Duration) *TokenService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), sessionTTL: sessionTTL, now: time.Now}
}

func (s *TokenService) registered(audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims jwt.Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *TokenService) parse(tokenStr, audience string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (s *TokenService) IssueSession(userID int, accountType string) (string, error) {
	return s.sign(&SessionClaims{
		UserID:           userID,
		AccountType:      accountType,
		RegisteredClaims: s.registered(audienceSession, s.sessionTTL),
	})
}

func (s *TokenService) ParseSession(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(tokenStr, audienceSession, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) IssueRegistration(email, name, passwordHash, accountType string) (string, error) {
	return s.sign(&RegistrationClaims{
		Email:            email,
		Name:             name,
		PasswordHash:     passwordHash,
		AccountType:      accountType,
		RegisteredClaims: s.registered(audienceRegistration, ticketTTL),
	})
}

func (s *TokenService) ParseRegistration(tokenStr string) (*RegistrationClaims, error) {
	claims := &RegistrationClaims{}
	if err := s.parse(tokenStr, audienceRegistration, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) IssueReset(userID int, email, passwordHash string) (string, error) {
	return s.sign(&ResetClaims{
		UserID:           userID,
		Email:            email,
		Fingerprint:      passwordFingerprint(passwordHash),
		RegisteredClaims: s.registered(audienceReset, ticketTTL),
	})
}

func (s *TokenService) ParseReset(tokenStr string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := s.parse(tokenStr, audienceReset, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func passwordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}
