package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"veriboard/internal/models"
)

type CompanyRepository interface {
	GetByID(ctx context.Context, id int) (*models.Company, error)
	GetByUserID(ctx context.Context, userID int) (*models.Company, error)
	// FindVerifiedByName matches a normalized name against verified companies only.
	FindVerifiedByName(ctx context.Context, normalizedName string) (*models.Company, error)
	ListPending(ctx context.Context) ([]*models.Company, error)
	AttachDocument(ctx context.Context, id int, key string, from []string, upload UploadFunc) (*models.Company, error)
	UpdateStatus(ctx context.Context, id int, ch models.StatusChange) (*models.Company, error)
}

type companyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) CompanyRepository {
	return &companyRepository{db: db}
}

const companyColumns = `
	id, user_id, company_name, verification_status, verification_document, rejection_reason,
	verified_by, verified_at, created_at, updated_at`

func (r *companyRepository) GetByID(ctx context.Context, id int) (*models.Company, error) {
	q := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	return scanCompany(r.db.QueryRowContext(ctx, q, id))
}

func (r *companyRepository) GetByUserID(ctx context.Context, userID int) (*models.Company, error) {
	q := `SELECT ` + companyColumns + ` FROM companies WHERE user_id = $1`
	return scanCompany(r.db.QueryRowContext(ctx, q, userID))
}

func (r *companyRepository) FindVerifiedByName(ctx context.Context, normalizedName string) (*models.Company, error) {
	q := `SELECT ` + companyColumns + `
		FROM companies
		WHERE LOWER(regexp_replace(btrim(company_name), '\s+', ' ', 'g')) = $1
		  AND verification_status = 'verified'
		ORDER BY id
		LIMIT 1`
	return scanCompany(r.db.QueryRowContext(ctx, q, normalizedName))
}

func (r *companyRepository) ListPending(ctx context.Context) ([]*models.Company, error) {
	q := `SELECT ` + companyColumns + `
		FROM companies
		WHERE verification_status IN ('pending', 'in_review') AND verification_document <> ''
		ORDER BY updated_at, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pending companies: %w", err)
	}
	defer rows.Close()

	res := make([]*models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *companyRepository) AttachDocument(ctx context.Context, id int, key string, from []string, upload UploadFunc) (_ *models.Company, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("attach company document: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `
		UPDATE companies
		SET verification_document = $2,
		    verification_status = 'pending',
		    rejection_reason = '',
		    verified_by = NULL,
		    verified_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND verification_status = ANY($3)
		RETURNING ` + companyColumns
	c, err := scanCompany(tx.QueryRowContext(ctx, q, id, key, pq.Array(from)))
	if errors.Is(err, ErrNotFound) {
		err = ErrConflict
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if err = upload(ctx); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("attach company document: commit: %w", err)
	}
	return c, nil
}

func (r *companyRepository) UpdateStatus(ctx context.Context, id int, ch models.StatusChange) (*models.Company, error) {
	q := `
		UPDATE companies
		SET verification_status = $2,
		    rejection_reason = $3,
		    verified_by = $4,
		    verified_at = CASE WHEN $2 = 'verified' THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND verification_status = ANY($5) AND verification_document <> ''
		RETURNING ` + companyColumns
	c, err := scanCompany(r.db.QueryRowContext(ctx, q,
		id, ch.To, ch.RejectionReason, ch.ActorID, pq.Array(ch.From)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConflict
	}
	return c, err
}

func scanCompany(row rowScanner) (*models.Company, error) {
	var (
		c          models.Company
		verifiedBy sql.NullInt64
		verifiedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.CompanyName, &c.VerificationStatus, &c.VerificationDocument, &c.RejectionReason,
		&verifiedBy, &verifiedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan company: %w", err)
	}
	if verifiedBy.Valid {
		id := int(verifiedBy.Int64)
		c.VerifiedBy = &id
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		c.VerifiedAt = &t
	}
	return &c, nil
}
