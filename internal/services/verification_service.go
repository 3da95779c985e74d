package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"veriboard/internal/authz"
	"veriboard/internal/logger"
	"veriboard/internal/models"
	"veriboard/internal/pdf"
	"veriboard/internal/repositories"
	"veriboard/internal/utils"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultPresignTTL     = 15 * time.Minute
	dateLayout            = "2006-01-02"
)

var allowedDocumentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

type DocumentStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type CertificateWriter interface {
	Write(w io.Writer, data pdf.CertificateData) error
}

// Actor is the authenticated caller as seen by the service layer.
type Actor struct {
	UserID      int
	AccountType string
}

type DocumentUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Filename    string
}

type VerificationOptions struct {
	MaxUploadBytes int64
	PresignTTL     time.Duration
}

// VerificationService tracks the pending/in_review/verified/rejected lifecycle of
// employment records and company profiles.
type VerificationService struct {
	users       repositories.UserRepository
	employments repositories.EmploymentRepository
	companies   repositories.CompanyRepository
	store       DocumentStore
	certs       CertificateWriter
	notifier    AdminNotifier
	opts        VerificationOptions
	now         func() time.Time
}

func NewVerificationService(
	users repositories.UserRepository,
	employments repositories.EmploymentRepository,
	companies repositories.CompanyRepository,
	store DocumentStore,
	certs CertificateWriter,
	notifier AdminNotifier,
	opts VerificationOptions,
) *VerificationService {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = defaultPresignTTL
	}
	if notifier == nil {
		notifier = NoopNotifier()
	}
	return &VerificationService{
		users:       users,
		employments: employments,
		companies:   companies,
		store:       store,
		certs:       certs,
		notifier:    notifier,
		opts:        opts,
		now:         time.Now,
	}
}

func (s *VerificationService) MaxUploadBytes() int64 { return s.opts.MaxUploadBytes }

// ===== candidate side =====

// CreateEmployment records a position for the calling candidate. Without an explicit
// company id the name is matched case-insensitively against verified companies and,
// when found, the record is linked to that company.
func (s *VerificationService) CreateEmployment(ctx context.Context, actor Actor, req models.CreateEmploymentRequest) (*models.Employment, error) {
	candidate, err := s.candidateFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	name := strings.Join(strings.Fields(req.CompanyName), " ")
	position := strings.TrimSpace(req.Position)
	if name == "" {
		return nil, newValidationError("company_name", "is required")
	}
	if position == "" {
		return nil, newValidationError("position", "is required")
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, newValidationError("start_date", "must be YYYY-MM-DD")
	}
	var end *time.Time
	if req.EndDate != "" {
		t, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return nil, newValidationError("end_date", "must be YYYY-MM-DD")
		}
		if t.Before(start) {
			return nil, newValidationError("end_date", "must not be before start_date")
		}
		end = &t
	}

	e := &models.Employment{
		CandidateID:        candidate.ID,
		CompanyName:        name,
		Position:           position,
		StartDate:          start,
		EndDate:            end,
		VerificationStatus: models.StatusPending,
	}

	if req.CompanyID != nil {
		company, err := s.companies.GetByID(ctx, *req.CompanyID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newValidationError("company_id", "unknown company")
		}
		if err != nil {
			return nil, err
		}
		e.CompanyID = &company.ID
	} else {
		company, err := s.companies.FindVerifiedByName(ctx, utils.NormalizeCompanyName(name))
		switch {
		case err == nil:
			e.CompanyID = &company.ID
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, err
		}
	}

	if err := s.employments.Create(ctx, e); err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{
		"employment_id": e.ID,
		"candidate_id":  candidate.ID,
		"linked":        e.CompanyID != nil,
	}).Info("[verification][employment] created")
	return e, nil
}

func (s *VerificationService) ListEmployments(ctx context.Context, actor Actor) ([]*models.Employment, error) {
	candidate, err := s.candidateFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.employments.ListByCandidate(ctx, candidate.ID)
}

// SubmitEmploymentDocument uploads the evidence and moves the record to review.
// Records linked to a verified company go to in_review for the employer; the rest
// wait as pending for an admin. The row update and the upload commit together.
func (s *VerificationService) SubmitEmploymentDocument(ctx context.Context, actor Actor, employmentID int, doc DocumentUpload) (*models.Employment, error) {
	candidate, err := s.candidateFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	ext, err := s.checkUpload(doc)
	if err != nil {
		return nil, err
	}

	e, err := s.getEmployment(ctx, employmentID)
	if err != nil {
		return nil, err
	}
	if e.CandidateID != candidate.ID {
		return nil, ErrForbidden
	}
	if !slices.Contains(resubmittableStatuses, e.VerificationStatus) {
		return nil, ErrInvalidTransition
	}

	target := models.StatusPending
	if e.CompanyID != nil {
		company, err := s.companies.GetByID(ctx, *e.CompanyID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		if company != nil && company.VerificationStatus == models.StatusVerified {
			target = models.StatusInReview
		}
	}

	key := fmt.Sprintf("employments/%d/%s%s", e.ID, uuid.NewString(), ext)
	updated, err := s.employments.AttachDocument(ctx, e.ID, key, target, resubmittableStatuses, s.uploadFunc(key, doc))
	if errors.Is(err, repositories.ErrConflict) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	s.dropObject(ctx, e.DocumentKey, key)

	logger.Log.WithFields(logrus.Fields{"employment_id": e.ID, "status": target}).Info("[verification][employment] document submitted")
	if target == models.StatusPending {
		s.notifier.NotifyAdmins(ctx, fmt.Sprintf(
			"New employment verification #%d: <b>%s</b> at <b>%s</b>",
			e.ID, escapeHTML(e.Position), escapeHTML(e.CompanyName)))
	}
	return updated, nil
}

// ===== employer side =====

func (s *VerificationService) ListVerificationRequests(ctx context.Context, actor Actor) ([]*models.Employment, error) {
	company, err := s.verifiedCompanyFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.employments.ListForCompany(ctx, company.ID, []string{models.StatusPending, models.StatusInReview})
}

// EmployerDecide lets a verified company approve or reject records linked to it by id.
func (s *VerificationService) EmployerDecide(ctx context.Context, actor Actor, employmentID int, approve bool, d models.Decision) (*models.Employment, error) {
	company, err := s.verifiedCompanyFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	e, err := s.getEmployment(ctx, employmentID)
	if err != nil {
		return nil, err
	}
	if e.CompanyID == nil || *e.CompanyID != company.ID {
		return nil, ErrForbidden
	}
	return s.decideEmployment(ctx, e, actor.UserID, approve, d)
}

// ===== admin side =====

func (s *VerificationService) AdminDecideEmployment(ctx context.Context, actor Actor, employmentID int, approve bool, d models.Decision) (*models.Employment, error) {
	if actor.AccountType != authz.AccountAdmin {
		return nil, ErrForbidden
	}
	e, err := s.getEmployment(ctx, employmentID)
	if err != nil {
		return nil, err
	}
	return s.decideEmployment(ctx, e, actor.UserID, approve, d)
}

func (s *VerificationService) ListPendingCompanies(ctx context.Context, actor Actor) ([]*models.Company, error) {
	if actor.AccountType != authz.AccountAdmin {
		return nil, ErrForbidden
	}
	return s.companies.ListPending(ctx)
}

func (s *VerificationService) AdminDecideCompany(ctx context.Context, actor Actor, companyID int, approve bool, d models.Decision) (*models.Company, error) {
	if actor.AccountType != authz.AccountAdmin {
		return nil, ErrForbidden
	}
	company, err := s.companies.GetByID(ctx, companyID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ch, err := buildStatusChange(company.VerificationStatus, actor.UserID, approve, d)
	if err != nil {
		return nil, err
	}
	if company.VerificationDocument == "" {
		return nil, ErrNothingToReview
	}
	updated, err := s.companies.UpdateStatus(ctx, company.ID, ch)
	if errors.Is(err, repositories.ErrConflict) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{"company_id": company.ID, "status": ch.To, "actor": actor.UserID}).Info("[verification][company] decided")
	return updated, nil
}

func (s *VerificationService) CompanyDocumentURL(ctx context.Context, actor Actor, companyID int) (string, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if actor.AccountType != authz.AccountAdmin && company.UserID != actor.UserID {
		return "", ErrForbidden
	}
	return s.presign(ctx, company.VerificationDocument)
}

// ===== company side =====

func (s *VerificationService) MyCompany(ctx context.Context, actor Actor) (*models.Company, error) {
	return s.companyFor(ctx, actor)
}

// SubmitCompanyDocument uploads registration evidence and queues the company for admin review.
func (s *VerificationService) SubmitCompanyDocument(ctx context.Context, actor Actor, doc DocumentUpload) (*models.Company, error) {
	company, err := s.companyFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	ext, err := s.checkUpload(doc)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(resubmittableStatuses, company.VerificationStatus) {
		return nil, ErrInvalidTransition
	}

	key := fmt.Sprintf("companies/%d/%s%s", company.ID, uuid.NewString(), ext)
	updated, err := s.companies.AttachDocument(ctx, company.ID, key, resubmittableStatuses, s.uploadFunc(key, doc))
	if errors.Is(err, repositories.ErrConflict) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	s.dropObject(ctx, company.VerificationDocument, key)

	logger.Log.WithField("company_id", company.ID).Info("[verification][company] document submitted")
	s.notifier.NotifyAdmins(ctx, fmt.Sprintf(
		"Company verification requested #%d: <b>%s</b>", company.ID, escapeHTML(company.CompanyName)))
	return updated, nil
}

// ===== documents & certificates =====

// DocumentURL returns a short-lived download link for the record's evidence.
func (s *VerificationService) DocumentURL(ctx context.Context, actor Actor, employmentID int) (string, error) {
	e, err := s.viewableEmployment(ctx, actor, employmentID)
	if err != nil {
		return "", err
	}
	return s.presign(ctx, e.DocumentKey)
}

// WriteCertificate renders a PDF certificate for a verified record.
func (s *VerificationService) WriteCertificate(ctx context.Context, actor Actor, employmentID int, w io.Writer) error {
	e, err := s.viewableEmployment(ctx, actor, employmentID)
	if err != nil {
		return err
	}
	if e.VerificationStatus != models.StatusVerified {
		return ErrNotVerified
	}
	if s.certs == nil {
		return errors.New("certificate generator not configured")
	}

	candidate, err := s.users.GetCandidateByID(ctx, e.CandidateID)
	if err != nil {
		return err
	}
	verifiedAt := s.now()
	if e.VerifiedAt != nil {
		verifiedAt = *e.VerifiedAt
	}
	return s.certs.Write(w, pdf.CertificateData{
		EmploymentID:  e.ID,
		CandidateName: candidate.FullName,
		CompanyName:   e.CompanyName,
		Position:      e.Position,
		StartDate:     e.StartDate,
		EndDate:       e.EndDate,
		VerifiedAt:    verifiedAt,
		IssuedAt:      s.now(),
	})
}

// ===== helpers =====

func (s *VerificationService) decideEmployment(ctx context.Context, e *models.Employment, actorID int, approve bool, d models.Decision) (*models.Employment, error) {
	ch, err := buildStatusChange(e.VerificationStatus, actorID, approve, d)
	if err != nil {
		return nil, err
	}
	updated, err := s.employments.UpdateStatus(ctx, e.ID, ch)
	if errors.Is(err, repositories.ErrConflict) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{"employment_id": e.ID, "status": ch.To, "actor": actorID}).Info("[verification][employment] decided")
	return updated, nil
}

func buildStatusChange(current string, actorID int, approve bool, d models.Decision) (models.StatusChange, error) {
	to := models.StatusVerified
	reason := ""
	if !approve {
		to = models.StatusRejected
		reason = strings.TrimSpace(d.Reason)
		if reason == "" {
			return models.StatusChange{}, ErrReasonRequired
		}
	}
	if !canTransition(current, to, VerificationTransitions) {
		return models.StatusChange{}, ErrInvalidTransition
	}
	return models.StatusChange{
		From:            sourcesFor(to, VerificationTransitions),
		To:              to,
		ActorID:         actorID,
		Notes:           strings.TrimSpace(d.Notes),
		RejectionReason: reason,
	}, nil
}

func (s *VerificationService) checkUpload(doc DocumentUpload) (string, error) {
	if s.store == nil {
		return "", ErrStorageUnavailable
	}
	if doc.Reader == nil || doc.Size <= 0 {
		return "", newValidationError("document", "file is required")
	}
	if doc.Size > s.opts.MaxUploadBytes {
		return "", ErrDocumentTooLarge
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(doc.ContentType, ";")[0]))
	ext, ok := allowedDocumentTypes[ct]
	if !ok {
		return "", newValidationError("document", "must be a PDF, PNG or JPEG file")
	}
	if e := strings.ToLower(path.Ext(doc.Filename)); e == ".jpeg" || e == ".jpg" || e == ".png" || e == ".pdf" {
		ext = e
	}
	return ext, nil
}

func (s *VerificationService) uploadFunc(key string, doc DocumentUpload) repositories.UploadFunc {
	return func(ctx context.Context) error {
		if err := s.store.Upload(ctx, key, io.LimitReader(doc.Reader, doc.Size), doc.Size, doc.ContentType); err != nil {
			logger.Log.WithField("key", key).WithError(err).Error("[verification][upload] storage upload failed")
			return err
		}
		return nil
	}
}

// dropObject removes a replaced document once the new one is committed.
func (s *VerificationService) dropObject(ctx context.Context, oldKey, newKey string) {
	if oldKey == "" || oldKey == newKey {
		return
	}
	if err := s.store.Delete(ctx, oldKey); err != nil {
		logger.Log.WithField("key", oldKey).WithError(err).Warn("[verification][upload] old document not removed")
	}
}

func (s *VerificationService) presign(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrDocumentMissing
	}
	if s.store == nil {
		return "", ErrStorageUnavailable
	}
	return s.store.PresignedURL(ctx, key, s.opts.PresignTTL)
}

// viewableEmployment allows the owning candidate, the linked verified company and admins.
func (s *VerificationService) viewableEmployment(ctx context.Context, actor Actor, employmentID int) (*models.Employment, error) {
	e, err := s.getEmployment(ctx, employmentID)
	if err != nil {
		return nil, err
	}
	switch actor.AccountType {
	case authz.AccountAdmin:
		return e, nil
	case authz.AccountCandidate:
		candidate, err := s.candidateFor(ctx, actor)
		if err != nil {
			return nil, err
		}
		if candidate.ID == e.CandidateID {
			return e, nil
		}
	case authz.AccountCompany:
		company, err := s.verifiedCompanyFor(ctx, actor)
		if err != nil {
			return nil, err
		}
		if e.CompanyID != nil && *e.CompanyID == company.ID {
			return e, nil
		}
	}
	return nil, ErrForbidden
}

func (s *VerificationService) getEmployment(ctx context.Context, id int) (*models.Employment, error) {
	e, err := s.employments.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *VerificationService) candidateFor(ctx context.Context, actor Actor) (*models.Candidate, error) {
	if actor.AccountType != authz.AccountCandidate {
		return nil, ErrForbidden
	}
	c, err := s.users.GetCandidateByUserID(ctx, actor.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrForbidden
	}
	return c, err
}

func (s *VerificationService) companyFor(ctx context.Context, actor Actor) (*models.Company, error) {
	if actor.AccountType != authz.AccountCompany {
		return nil, ErrForbidden
	}
	c, err := s.companies.GetByUserID(ctx, actor.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrForbidden
	}
	return c, err
}

func (s *VerificationService) verifiedCompanyFor(ctx context.Context, actor Actor) (*models.Company, error) {
	c, err := s.companyFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if c.VerificationStatus != models.StatusVerified {
		return nil, ErrCompanyNotVerified
	}
	return c, nil
}
