package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veriboard/internal/authz"
	"veriboard/internal/models"
	"veriboard/internal/pdf"
)

type verificationFixture struct {
	svc         *VerificationService
	users       *fakeUserRepo
	companies   *fakeCompanyRepo
	employments *fakeEmploymentRepo
	store       *fakeStore
	notifier    *recordingNotifier
	admin       Actor
}

func newVerificationFixture() *verificationFixture {
	users := newFakeUserRepo()
	companies := newFakeCompanyRepo()
	users.companies = companies
	employments := newFakeEmploymentRepo()
	store := newFakeStore()
	notifier := &recordingNotifier{}
	f := &verificationFixture{
		svc: NewVerificationService(users, employments, companies, store,
			pdf.NewCertificateGenerator(""), notifier, VerificationOptions{MaxUploadBytes: 1024}),
		users:       users,
		companies:   companies,
		employments: employments,
		store:       store,
		notifier:    notifier,
	}
	f.admin = users.addAccount("admin@x.com", authz.AccountAdmin)
	return f
}

// addCompany creates a company account with the given verification status.
func (f *verificationFixture) addCompany(email, name, status string) (Actor, *models.Company) {
	actor := f.users.addAccount(email, authz.AccountCompany)
	return actor, f.companies.add(actor.UserID, name, status)
}

func (f *verificationFixture) createEmployment(t *testing.T, actor Actor, company string) *models.Employment {
	t.Helper()
	e, err := f.svc.CreateEmployment(context.Background(), actor, models.CreateEmploymentRequest{
		CompanyName: company, Position: "Engineer", StartDate: "2020-01-01", EndDate: "2022-12-31",
	})
	require.NoError(t, err)
	return e
}

func TestCompanyNameVariantsResolveToSameVerifiedCompany(t *testing.T) {
	f := newVerificationFixture()
	_, acme := f.addCompany("hr@acme.com", "Acme Inc", models.StatusVerified)
	alice := f.users.addCandidate("alice@x.com", "Alice")
	bob := f.users.addCandidate("bob@x.com", "Bob")

	e1 := f.createEmployment(t, alice, "Acme Inc")
	e2 := f.createEmployment(t, bob, "ACME  INC ")

	require.NotNil(t, e1.CompanyID)
	require.NotNil(t, e2.CompanyID)
	assert.Equal(t, acme.ID, *e1.CompanyID)
	assert.Equal(t, acme.ID, *e2.CompanyID)
	assert.Equal(t, models.StatusPending, e1.VerificationStatus)
	assert.Equal(t, "ACME INC", e2.CompanyName)
}

func TestUnverifiedCompanyNameIsNotLinked(t *testing.T) {
	f := newVerificationFixture()
	f.addCompany("hr@acme.com", "Acme Inc", models.StatusPending)
	alice := f.users.addCandidate("alice@x.com", "Alice")

	e := f.createEmployment(t, alice, "acme inc")
	assert.Nil(t, e.CompanyID)
}

func TestCreateEmploymentValidation(t *testing.T) {
	f := newVerificationFixture()
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()

	_, err := f.svc.CreateEmployment(ctx, alice, models.CreateEmploymentRequest{
		CompanyName: "Acme", Position: "Dev", StartDate: "2022-01-01", EndDate: "2021-01-01",
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "end_date", vErr.Field)

	unknown := 999
	_, err = f.svc.CreateEmployment(ctx, alice, models.CreateEmploymentRequest{
		CompanyID: &unknown, CompanyName: "Acme", Position: "Dev", StartDate: "2022-01-01",
	})
	assert.ErrorAs(t, err, &vErr)

	_, err = f.svc.CreateEmployment(ctx, f.admin, models.CreateEmploymentRequest{
		CompanyName: "Acme", Position: "Dev", StartDate: "2022-01-01",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEmployerApprovesLinkedRecord(t *testing.T) {
	f := newVerificationFixture()
	employer, _ := f.addCompany("hr@acme.com", "Acme Inc", models.StatusVerified)
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()

	e := f.createEmployment(t, alice, "Acme Inc")
	submitted, err := f.svc.SubmitEmploymentDocument(ctx, alice, e.ID, pdfUpload("%PDF-1.4 offer letter"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, submitted.VerificationStatus)
	assert.True(t, submitted.HasDocument)
	assert.Equal(t, 0, f.notifier.count())

	reqs, err := f.svc.ListVerificationRequests(ctx, employer)
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	approved, err := f.svc.EmployerDecide(ctx, employer, e.ID, true, models.Decision{Notes: "confirmed by HR"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, approved.VerificationStatus)
	require.NotNil(t, approved.VerifiedBy)
	assert.Equal(t, employer.UserID, *approved.VerifiedBy)
	assert.NotNil(t, approved.VerifiedAt)
	assert.Equal(t, "confirmed by HR", approved.Notes)

	_, err = f.svc.EmployerDecide(ctx, employer, e.ID, true, models.Decision{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.EmployerDecide(ctx, employer, e.ID, false, models.Decision{Reason: "changed mind"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newVerificationFixture()
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()
	e := f.createEmployment(t, alice, "Globex")

	_, err := f.svc.AdminDecideEmployment(ctx, f.admin, e.ID, false, models.Decision{Reason: "   "})
	assert.ErrorIs(t, err, ErrReasonRequired)

	rejected, err := f.svc.AdminDecideEmployment(ctx, f.admin, e.ID, false, models.Decision{Reason: "no such employee"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.VerificationStatus)
	assert.Equal(t, "no such employee", rejected.RejectionReason)
	assert.Nil(t, rejected.VerifiedAt)

	_, err = f.svc.AdminDecideEmployment(ctx, f.admin, e.ID, true, models.Decision{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectedRecordCanBeResubmitted(t *testing.T) {
	f := newVerificationFixture()
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()
	e := f.createEmployment(t, alice, "Globex")

	_, err := f.svc.AdminDecideEmployment(ctx, f.admin, e.ID, false, models.Decision{Reason: "unreadable"})
	require.NoError(t, err)

	again, err := f.svc.SubmitEmploymentDocument(ctx, alice, e.ID, pdfUpload("%PDF-1.4 clearer scan"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.VerificationStatus)
	assert.Empty(t, again.RejectionReason)

	_, err = f.svc.AdminDecideEmployment(ctx, f.admin, e.ID, true, models.Decision{})
	require.NoError(t, err)
	_, err = f.svc.SubmitEmploymentDocument(ctx, alice, e.ID, pdfUpload("%PDF-1.4 another"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEmployerAuthorizationUsesCompanyID(t *testing.T) {
	f := newVerificationFixture()
	f.addCompany("hr@acme.com", "Acme Inc", models.StatusVerified)
	impostor, _ := f.addCompany("hr@fake.com", "ACME INC", models.StatusVerified)
	unverified, _ := f.addCompany("hr@new.com", "Newco", models.StatusPending)
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()

	e := f.createEmployment(t, alice, "Acme Inc")

	_, err := f.svc.EmployerDecide(ctx, impostor, e.ID, true, models.Decision{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.EmployerDecide(ctx, unverified, e.ID, true, models.Decision{})
	assert.ErrorIs(t, err, ErrCompanyNotVerified)
	_, err = f.svc.ListVerificationRequests(ctx, unverified)
	assert.ErrorIs(t, err, ErrCompanyNotVerified)

	_, err = f.svc.EmployerDecide(ctx, alice, e.ID, true, models.Decision{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUnlinkedSubmissionAlertsAdmins(t *testing.T) {
	f := newVerificationFixture()
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()
	e := f.createEmployment(t, alice, "Initech")

	res, err := f.svc.SubmitEmploymentDocument(ctx, alice, e.ID, pdfUpload("%PDF-1.4 payslip"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, res.VerificationStatus)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, 1, f.store.len())
}

func TestUploadFailureLeavesRecordUntouched(t *testing.T) {
	f := newVerificationFixture()
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()
	e := f.createEmployment(t, alice, "Initech")

	f.store.uploadErr = errors.New("bucket unreachable")
	_, err := f.svc.SubmitEmploymentDocument(ctx, alice, e.ID, pdfUpload("%PDF-1.4 payslip"))
	require.Error(t, err)

	stored, err := f.employments.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.DocumentKey)
	assert.Equal(t, models.StatusPending, stored.VerificationStatus)
	assert.Equal(t, 0, f.notifier.count())
}

func TestSubmitDocumentChecks(t *testing.T) {
	f := newVerificationFixture()
	alice := f.users.addCandidate("alice@x.com", "Alice")
	bob := f.users.addCandidate("bob@x.com", "Bob")
	ctx := context.Background()
	e := f.createEmployment(t, alice, "Initech")

	_, err := f.svc.SubmitEmploymentDocument(ctx, alice, e.ID, pdfUpload(strings.Repeat("x", 2048)))
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	doc := pdfUpload("hello")
	doc.ContentType = "text/plain"
	_, err = f.svc.SubmitEmploymentDocument(ctx, alice, e.ID, doc)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = f.svc.SubmitEmploymentDocument(ctx, bob, e.ID, pdfUpload("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SubmitEmploymentDocument(ctx, alice, 404, pdfUpload("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompanyVerificationLifecycle(t *testing.T) {
	f := newVerificationFixture()
	employer, company := f.addCompany("hr@acme.com", "Acme Inc", models.StatusPending)
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()

	_, err := f.svc.ListPendingCompanies(ctx, employer)
	assert.ErrorIs(t, err, ErrForbidden)

	submitted, err := f.svc.SubmitCompanyDocument(ctx, employer, pdfUpload("%PDF-1.4 registration"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, submitted.VerificationStatus)
	assert.Equal(t, 1, f.notifier.count())

	pending, err := f.svc.ListPendingCompanies(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.svc.AdminDecideCompany(ctx, employer, company.ID, true, models.Decision{})
	assert.ErrorIs(t, err, ErrForbidden)

	verified, err := f.svc.AdminDecideCompany(ctx, f.admin, company.ID, true, models.Decision{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, verified.VerificationStatus)

	_, err = f.svc.AdminDecideCompany(ctx, f.admin, company.ID, false, models.Decision{Reason: "late"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// once verified, new records with the company name link to it
	e := f.createEmployment(t, alice, "acme inc")
	require.NotNil(t, e.CompanyID)
	assert.Equal(t, company.ID, *e.CompanyID)
}

func TestAdminCannotDecideCompanyWithoutDocument(t *testing.T) {
	f := newVerificationFixture()
	_, company := f.addCompany("hr@acme.com", "Acme Inc", models.StatusPending)
	ctx := context.Background()

	_, err := f.svc.AdminDecideCompany(ctx, f.admin, company.ID, true, models.Decision{})
	assert.ErrorIs(t, err, ErrNothingToReview)
	_, err = f.svc.AdminDecideCompany(ctx, f.admin, company.ID, false, models.Decision{Reason: "no papers"})
	assert.ErrorIs(t, err, ErrNothingToReview)

	assert.Equal(t, models.StatusPending, f.companies.get(company.ID).VerificationStatus)
	assert.Nil(t, f.companies.get(company.ID).VerifiedBy)
}

func TestDocumentURLAccess(t *testing.T) {
	f := newVerificationFixture()
	employer, _ := f.addCompany("hr@acme.com", "Acme Inc", models.StatusVerified)
	other, _ := f.addCompany("hr@globex.com", "Globex", models.StatusVerified)
	alice := f.users.addCandidate("alice@x.com", "Alice")
	bob := f.users.addCandidate("bob@x.com", "Bob")
	ctx := context.Background()

	e := f.createEmployment(t, alice, "Acme Inc")
	_, err := f.svc.DocumentURL(ctx, alice, e.ID)
	assert.ErrorIs(t, err, ErrDocumentMissing)

	_, err = f.svc.SubmitEmploymentDocument(ctx, alice, e.ID, pdfUpload("%PDF-1.4"))
	require.NoError(t, err)

	for _, actor := range []Actor{alice, employer, f.admin} {
		url, err := f.svc.DocumentURL(ctx, actor, e.ID)
		require.NoError(t, err)
		assert.Contains(t, url, "employments/")
		assert.Contains(t, url, "ttl=15m0s")
	}
	for _, actor := range []Actor{bob, other} {
		_, err := f.svc.DocumentURL(ctx, actor, e.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	}
}

func TestCertificateOnlyForVerifiedRecords(t *testing.T) {
	f := newVerificationFixture()
	alice := f.users.addCandidate("alice@x.com", "Alice")
	ctx := context.Background()
	e := f.createEmployment(t, alice, "Initech")

	var buf bytes.Buffer
	err := f.svc.WriteCertificate(ctx, alice, e.ID, &buf)
	assert.ErrorIs(t, err, ErrNotVerified)

	_, err = f.svc.AdminDecideEmployment(ctx, f.admin, e.ID, true, models.Decision{})
	require.NoError(t, err)

	require.NoError(t, f.svc.WriteCertificate(ctx, alice, e.ID, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestBuildStatusChangeSources(t *testing.T) {
	ch, err := buildStatusChange(models.StatusInReview, 3, true, models.Decision{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.StatusPending, models.StatusInReview}, ch.From)
	assert.Equal(t, models.StatusVerified, ch.To)
	assert.Equal(t, 3, ch.ActorID)
}
