package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"veriboard/internal/models"
	"veriboard/internal/services"
)

// VerificationService is the part of services.VerificationService the HTTP layer needs.
type VerificationService interface {
	MaxUploadBytes() int64
	CreateEmployment(ctx context.Context, actor services.Actor, req models.CreateEmploymentRequest) (*models.Employment, error)
	ListEmployments(ctx context.Context, actor services.Actor) ([]*models.Employment, error)
	SubmitEmploymentDocument(ctx context.Context, actor services.Actor, employmentID int, doc services.DocumentUpload) (*models.Employment, error)
	ListVerificationRequests(ctx context.Context, actor services.Actor) ([]*models.Employment, error)
	EmployerDecide(ctx context.Context, actor services.Actor, employmentID int, approve bool, d models.Decision) (*models.Employment, error)
	AdminDecideEmployment(ctx context.Context, actor services.Actor, employmentID int, approve bool, d models.Decision) (*models.Employment, error)
	ListPendingCompanies(ctx context.Context, actor services.Actor) ([]*models.Company, error)
	AdminDecideCompany(ctx context.Context, actor services.Actor, companyID int, approve bool, d models.Decision) (*models.Company, error)
	CompanyDocumentURL(ctx context.Context, actor services.Actor, companyID int) (string, error)
	MyCompany(ctx context.Context, actor services.Actor) (*models.Company, error)
	SubmitCompanyDocument(ctx context.Context, actor services.Actor, doc services.DocumentUpload) (*models.Company, error)
	DocumentURL(ctx context.Context, actor services.Actor, employmentID int) (string, error)
	WriteCertificate(ctx context.Context, actor services.Actor, employmentID int, w io.Writer) error
}

type decisionBody struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (d decisionBody) toModel() models.Decision {
	return models.Decision{Notes: d.Notes, Reason: d.Reason}
}

// multipart framing on top of the file itself
const multipartOverhead = 1 << 20

// readDocument pulls the "document" part out of a multipart body. The body is capped so
// oversized uploads stop at the reader instead of being buffered to disk.
func readDocument(c *gin.Context, maxBytes int64) (services.DocumentUpload, func(), error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	fh, err := c.FormFile("document")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.DocumentUpload{}, func() {}, services.ErrDocumentTooLarge
		}
		return services.DocumentUpload{}, func() {}, &services.ValidationError{Field: "document", Message: "file is required"}
	}
	if fh.Size > maxBytes {
		return services.DocumentUpload{}, func() {}, services.ErrDocumentTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return services.DocumentUpload{}, func() {}, err
	}

	// The client-declared type is not trusted; sniff the leading bytes instead.
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return services.DocumentUpload{}, func() {}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return services.DocumentUpload{}, func() {}, err
	}

	return services.DocumentUpload{
		Reader:      f,
		Size:        fh.Size,
		ContentType: http.DetectContentType(head[:n]),
		Filename:    fh.Filename,
	}, func() { f.Close() }, nil
}
