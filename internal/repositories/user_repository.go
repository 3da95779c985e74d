package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"veriboard/internal/authz"
	"veriboard/internal/models"
)

type UserRepository interface {
	// Create inserts a bare account (used for the bootstrap admin).
	Create(ctx context.Context, user *models.User) error
	// CreateWithProfile inserts the account and its candidate or company row in one transaction.
	CreateWithProfile(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	GetCandidateByUserID(ctx context.Context, userID int) (*models.Candidate, error)
	GetCandidateByID(ctx context.Context, id int) (*models.Candidate, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, email, name, password_hash, account_type, is_verified, verified_at, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (email, name, password_hash, account_type, is_verified, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRowContext(ctx, q,
		user.Email, user.Name, user.PasswordHash, user.AccountType, user.IsVerified, user.VerifiedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

func (r *userRepository) CreateWithProfile(ctx context.Context, user *models.User) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("user create: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertUser = `
		INSERT INTO users (email, name, password_hash, account_type, is_verified, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertUser,
		user.Email, user.Name, user.PasswordHash, user.AccountType, user.IsVerified, user.VerifiedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("user create: %w", err)
	}

	switch user.AccountType {
	case authz.AccountCandidate:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO candidates (user_id, full_name) VALUES ($1, $2)`, user.ID, user.Name)
	case authz.AccountCompany:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO companies (user_id, company_name) VALUES ($1, $2)`, user.ID, user.Name)
	}
	if err != nil {
		return fmt.Errorf("user create profile: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("user create: commit: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.DB.QueryRowContext(ctx, q, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.DB.QueryRowContext(ctx, q, email))
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetCandidateByUserID(ctx context.Context, userID int) (*models.Candidate, error) {
	const q = `SELECT id, user_id, full_name, created_at FROM candidates WHERE user_id = $1`
	return scanCandidate(r.DB.QueryRowContext(ctx, q, userID))
}

func (r *userRepository) GetCandidateByID(ctx context.Context, id int) (*models.Candidate, error) {
	const q = `SELECT id, user_id, full_name, created_at FROM candidates WHERE id = $1`
	return scanCandidate(r.DB.QueryRowContext(ctx, q, id))
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	c := &models.Candidate{}
	err := row.Scan(&c.ID, &c.UserID, &c.FullName, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("candidate scan: %w", err)
	}
	return c, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var verifiedAt sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.AccountType,
		&u.IsVerified, &verifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user scan: %w", err)
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.VerifiedAt = &t
	}
	return u, nil
}
