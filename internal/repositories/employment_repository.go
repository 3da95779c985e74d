package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"veriboard/internal/models"
)

// UploadFunc runs inside the row's transaction; an error rolls the row update back.
type UploadFunc func(ctx context.Context) error

type EmploymentRepository interface {
	Create(ctx context.Context, e *models.Employment) error
	GetByID(ctx context.Context, id int) (*models.Employment, error)
	ListByCandidate(ctx context.Context, candidateID int) ([]*models.Employment, error)
	ListForCompany(ctx context.Context, companyID int, statuses []string) ([]*models.Employment, error)
	AttachDocument(ctx context.Context, id int, key, status string, from []string, upload UploadFunc) (*models.Employment, error)
	UpdateStatus(ctx context.Context, id int, ch models.StatusChange) (*models.Employment, error)
}

type employmentRepository struct {
	db *sql.DB
}

func NewEmploymentRepository(db *sql.DB) EmploymentRepository {
	return &employmentRepository{db: db}
}

const employmentColumns = `
	id, candidate_id, company_id, company_name, position, start_date, end_date,
	verification_status, document_key, rejection_reason, notes, verified_by, verified_at,
	created_at, updated_at`

func (r *employmentRepository) Create(ctx context.Context, e *models.Employment) error {
	const q = `
		INSERT INTO employment_history (candidate_id, company_id, company_name, position, start_date, end_date, verification_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	if e.VerificationStatus == "" {
		e.VerificationStatus = models.StatusPending
	}
	err := r.db.QueryRowContext(ctx, q,
		e.CandidateID, e.CompanyID, e.CompanyName, e.Position, e.StartDate, e.EndDate, e.VerificationStatus,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create employment: %w", err)
	}
	return nil
}

func (r *employmentRepository) GetByID(ctx context.Context, id int) (*models.Employment, error) {
	q := `SELECT ` + employmentColumns + ` FROM employment_history WHERE id = $1`
	return scanEmployment(r.db.QueryRowContext(ctx, q, id))
}

func (r *employmentRepository) ListByCandidate(ctx context.Context, candidateID int) ([]*models.Employment, error) {
	q := `SELECT ` + employmentColumns + `
		FROM employment_history
		WHERE candidate_id = $1
		ORDER BY start_date DESC, id DESC`
	return r.list(ctx, q, candidateID)
}

func (r *employmentRepository) ListForCompany(ctx context.Context, companyID int, statuses []string) ([]*models.Employment, error) {
	q := `SELECT ` + employmentColumns + `
		FROM employment_history
		WHERE company_id = $1 AND verification_status = ANY($2)
		ORDER BY updated_at DESC, id DESC`
	return r.list(ctx, q, companyID, pq.Array(statuses))
}

func (r *employmentRepository) AttachDocument(ctx context.Context, id int, key, status string, from []string, upload UploadFunc) (_ *models.Employment, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("attach document: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `
		UPDATE employment_history
		SET document_key = $2,
		    verification_status = $3,
		    rejection_reason = '',
		    verified_by = NULL,
		    verified_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND verification_status = ANY($4)
		RETURNING ` + employmentColumns
	e, err := scanEmployment(tx.QueryRowContext(ctx, q, id, key, status, pq.Array(from)))
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
		return nil, fmt.Errorf("attach document: commit: %w", err)
	}
	return e, nil
}

func (r *employmentRepository) UpdateStatus(ctx context.Context, id int, ch models.StatusChange) (*models.Employment, error) {
	q := `
		UPDATE employment_history
		SET verification_status = $2,
		    notes = $3,
		    rejection_reason = $4,
		    verified_by = $5,
		    verified_at = CASE WHEN $2 = 'verified' THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND verification_status = ANY($6)
		RETURNING ` + employmentColumns
	e, err := scanEmployment(r.db.QueryRowContext(ctx, q,
		id, ch.To, ch.Notes, ch.RejectionReason, ch.ActorID, pq.Array(ch.From)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConflict
	}
	return e, err
}

func (r *employmentRepository) list(ctx context.Context, q string, args ...any) ([]*models.Employment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list employments: %w", err)
	}
	defer rows.Close()

	res := make([]*models.Employment, 0)
	for rows.Next() {
		e, err := scanEmployment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func scanEmployment(row rowScanner) (*models.Employment, error) {
	var (
		e          models.Employment
		companyID  sql.NullInt64
		endDate    sql.NullTime
		verifiedBy sql.NullInt64
		verifiedAt sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.CandidateID, &companyID, &e.CompanyName, &e.Position, &e.StartDate, &endDate,
		&e.VerificationStatus, &e.DocumentKey, &e.RejectionReason, &e.Notes, &verifiedBy, &verifiedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan employment: %w", err)
	}
	if companyID.Valid {
		id := int(companyID.Int64)
		e.CompanyID = &id
	}
	if endDate.Valid {
		t := endDate.Time
		e.EndDate = &t
	}
	if verifiedBy.Valid {
		id := int(verifiedBy.Int64)
		e.VerifiedBy = &id
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		e.VerifiedAt = &t
	}
	e.HasDocument = e.DocumentKey != ""
	return &e, nil
}
