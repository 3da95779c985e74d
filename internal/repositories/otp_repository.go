package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"veriboard/internal/models"
)

type OTPRepository interface {
	// Upsert replaces any code for (email, purpose) in a single statement.
	Upsert(ctx context.Context, email string, purpose models.OTPPurpose, codeHash string, expiresAt time.Time) error
	GetActive(ctx context.Context, email string, purpose models.OTPPurpose, now time.Time) (*models.OTPCode, error)
	// IncrementAttempts returns the new attempt count, or ErrNotFound when the row was replaced meanwhile.
	IncrementAttempts(ctx context.Context, id int64, codeHash string) (int, error)
	// Delete reports whether this call removed the row.
	Delete(ctx context.Context, id int64, codeHash string) (bool, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type otpRepository struct {
	DB *sql.DB
}

func NewOTPRepository(db *sql.DB) OTPRepository {
	return &otpRepository{DB: db}
}

func (r *otpRepository) Upsert(ctx context.Context, email string, purpose models.OTPPurpose, codeHash string, expiresAt time.Time) error {
	const q = `
		INSERT INTO otp_codes (email, purpose, code_hash, attempts, expires_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (email, purpose) DO UPDATE
		SET code_hash  = EXCLUDED.code_hash,
		    attempts   = 0,
		    expires_at = EXCLUDED.expires_at,
		    created_at = NOW()
	`
	if _, err := r.DB.ExecContext(ctx, q, email, string(purpose), codeHash, expiresAt); err != nil {
		return fmt.Errorf("otp upsert: %w", err)
	}
	return nil
}

func (r *otpRepository) GetActive(ctx context.Context, email string, purpose models.OTPPurpose, now time.Time) (*models.OTPCode, error) {
	const q = `
		SELECT id, email, purpose, code_hash, attempts, expires_at, created_at
		FROM otp_codes
		WHERE email = $1 AND purpose = $2 AND expires_at > $3
	`
	var c models.OTPCode
	var purposeStr string
	err := r.DB.QueryRowContext(ctx, q, email, string(purpose), now).Scan(
		&c.ID, &c.Email, &purposeStr, &c.CodeHash, &c.Attempts, &c.ExpiresAt, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp get active: %w", err)
	}
	c.Purpose = models.OTPPurpose(purposeStr)
	return &c, nil
}

func (r *otpRepository) IncrementAttempts(ctx context.Context, id int64, codeHash string) (int, error) {
	const q = `
		UPDATE otp_codes
		SET attempts = attempts + 1
		WHERE id = $1 AND code_hash = $2
		RETURNING attempts
	`
	var attempts int
	err := r.DB.QueryRowContext(ctx, q, id, codeHash).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("otp increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *otpRepository) Delete(ctx context.Context, id int64, codeHash string) (bool, error) {
	const q = `DELETE FROM otp_codes WHERE id = $1 AND code_hash = $2 RETURNING id`
	var deleted int64
	err := r.DB.QueryRowContext(ctx, q, id, codeHash).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("otp delete: %w", err)
	}
	return true, nil
}

func (r *otpRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("otp purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
