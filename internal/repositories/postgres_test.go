package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veriboard/internal/authz"
	"veriboard/internal/migrations"
	"veriboard/internal/models"
)

// openTestDB connects to VERIBOARD_TEST_DATABASE_URL, migrates it and empties every table.
// The database is shared between tests, so these tests do not run in parallel.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("VERIBOARD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("VERIBOARD_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Ping())
	require.NoError(t, migrations.Up(db))
	_, err = db.Exec(`TRUNCATE otp_codes, employment_history, candidates, companies, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func seedAccount(t *testing.T, db *sql.DB, email, accountType string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, PasswordHash: "x", AccountType: accountType, IsVerified: true}
	require.NoError(t, NewUserRepository(db).CreateWithProfile(context.Background(), u))
	return u
}

func TestOTPUpsertSupersedesPreviousCode(t *testing.T) {
	db := openTestDB(t)
	repo := NewOTPRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, "a@x.com", models.PurposeRegister, "hash-1", now.Add(time.Minute)))
	first, err := repo.GetActive(ctx, "a@x.com", models.PurposeRegister, now)
	require.NoError(t, err)
	n, err := repo.IncrementAttempts(ctx, first.ID, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.Upsert(ctx, "a@x.com", models.PurposeRegister, "hash-2", now.Add(time.Minute)))
	second, err := repo.GetActive(ctx, "a@x.com", models.PurposeRegister, now)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", second.CodeHash)
	assert.Equal(t, 0, second.Attempts)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM otp_codes WHERE email = 'a@x.com'`).Scan(&rows))
	assert.Equal(t, 1, rows)

	// a verifier still holding the old hash must not touch the new code
	_, err = repo.IncrementAttempts(ctx, first.ID, "hash-1")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err := repo.Delete(ctx, first.ID, "hash-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetActive(ctx, "a@x.com", models.PurposeLogin2FA, now)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetActive(ctx, "a@x.com", models.PurposeRegister, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOTPDeleteHasSingleWinner(t *testing.T) {
	db := openTestDB(t)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "a@x.com", models.PurposeResetPassword, "hash", time.Now().Add(time.Minute)))
	code, err := repo.GetActive(ctx, "a@x.com", models.PurposeResetPassword, time.Now())
	require.NoError(t, err)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Delete(ctx, code.ID, "hash")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestOTPPurgeExpired(t *testing.T) {
	db := openTestDB(t)
	repo := NewOTPRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, "old@x.com", models.PurposeRegister, "h", now.Add(-time.Minute)))
	require.NoError(t, repo.Upsert(ctx, "new@x.com", models.PurposeRegister, "h", now.Add(time.Minute)))

	n, err := repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetActive(ctx, "new@x.com", models.PurposeRegister, now)
	assert.NoError(t, err)
}

func TestEmploymentGuardedStatusUpdate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	admin := seedAccount(t, db, "admin@x.com", authz.AccountAdmin)
	cand := seedAccount(t, db, "alice@x.com", authz.AccountCandidate)
	profile, err := NewUserRepository(db).GetCandidateByUserID(ctx, cand.ID)
	require.NoError(t, err)

	repo := NewEmploymentRepository(db)
	e := &models.Employment{
		CandidateID: profile.ID, CompanyName: "Acme", Position: "Engineer",
		StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, e))
	assert.Equal(t, models.StatusPending, e.VerificationStatus)

	ch := models.StatusChange{
		From: []string{models.StatusPending, models.StatusInReview}, To: models.StatusVerified,
		ActorID: admin.ID, Notes: "checked",
	}
	got, err := repo.UpdateStatus(ctx, e.ID, ch)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, got.VerificationStatus)
	assert.Equal(t, "checked", got.Notes)
	require.NotNil(t, got.VerifiedBy)
	assert.Equal(t, admin.ID, *got.VerifiedBy)
	assert.NotNil(t, got.VerifiedAt)

	// the row already left the allowed states
	_, err = repo.UpdateStatus(ctx, e.ID, models.StatusChange{
		From: []string{models.StatusPending}, To: models.StatusRejected, ActorID: admin.ID, RejectionReason: "late",
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.UpdateStatus(ctx, e.ID+1000, ch)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestEmploymentAttachDocumentRollsBackOnUploadError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	cand := seedAccount(t, db, "alice@x.com", authz.AccountCandidate)
	profile, err := NewUserRepository(db).GetCandidateByUserID(ctx, cand.ID)
	require.NoError(t, err)

	repo := NewEmploymentRepository(db)
	e := &models.Employment{
		CandidateID: profile.ID, CompanyName: "Acme", Position: "Engineer",
		StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, e))

	uploadErr := errors.New("bucket unavailable")
	_, err = repo.AttachDocument(ctx, e.ID, "docs/1.pdf", models.StatusInReview,
		[]string{models.StatusPending}, func(context.Context) error { return uploadErr })
	assert.ErrorIs(t, err, uploadErr)

	stored, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.DocumentKey)
	assert.Equal(t, models.StatusPending, stored.VerificationStatus)

	attached, err := repo.AttachDocument(ctx, e.ID, "docs/1.pdf", models.StatusInReview,
		[]string{models.StatusPending}, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, attached.VerificationStatus)
	assert.Equal(t, "docs/1.pdf", attached.DocumentKey)
}

func TestCompanyDecisionRequiresSubmittedDocument(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	admin := seedAccount(t, db, "admin@x.com", authz.AccountAdmin)
	owner := seedAccount(t, db, "hr@acme.com", authz.AccountCompany)

	repo := NewCompanyRepository(db)
	company, err := repo.GetByUserID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, company.VerificationStatus)

	approve := models.StatusChange{
		From: []string{models.StatusPending, models.StatusInReview}, To: models.StatusVerified, ActorID: admin.ID,
	}
	_, err = repo.UpdateStatus(ctx, company.ID, approve)
	assert.ErrorIs(t, err, ErrConflict)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = repo.AttachDocument(ctx, company.ID, "companies/1.pdf",
		[]string{models.StatusPending, models.StatusRejected}, func(context.Context) error { return errors.New("boom") })
	require.Error(t, err)
	stored, err := repo.GetByID(ctx, company.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.VerificationDocument)

	_, err = repo.AttachDocument(ctx, company.ID, "companies/1.pdf",
		[]string{models.StatusPending, models.StatusRejected}, func(context.Context) error { return nil })
	require.NoError(t, err)
	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	verified, err := repo.UpdateStatus(ctx, company.ID, approve)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, verified.VerificationStatus)
	require.NotNil(t, verified.VerifiedAt)

	found, err := repo.FindVerifiedByName(ctx, "hr@acme.com")
	require.NoError(t, err)
	assert.Equal(t, company.ID, found.ID)

	_, err = repo.UpdateStatus(ctx, company.ID, approve)
	assert.ErrorIs(t, err, ErrConflict)
}
