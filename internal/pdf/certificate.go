package pdf

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData is everything printed on an employment verification certificate.
type CertificateData struct {
	EmploymentID  int
	CandidateName string
	CompanyName   string
	Position      string
	StartDate     time.Time
	EndDate       *time.Time
	VerifiedAt    time.Time
	IssuedAt      time.Time
}

type CertificateGenerator struct {
	FontPath string // optional TTF for non-Latin names; core Helvetica otherwise
	fontName string
}

func NewCertificateGenerator(fontPath string) *CertificateGenerator {
	g := &CertificateGenerator{FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		if _, err := os.Stat(fontPath); err == nil {
			g.fontName = "DejaVu"
		} else {
			g.FontPath = ""
		}
	}
	return g
}

// Write renders the certificate as a single A4 page.
func (g *CertificateGenerator) Write(w io.Writer, data CertificateData) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Employment verification #%d", data.EmploymentID), true)
	pdf.SetAuthor("VeriBoard", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	tr := func(s string) string { return s }
	if g.FontPath != "" {
		pdf.AddUTF8Font(g.fontName, "", g.FontPath)
		pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 20)
	pdf.CellFormat(0, 12, tr("Employment Verification Certificate"), "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("No. VB-%06d", data.EmploymentID)), "", 1, "C", false, 0, "")
	g.hr(pdf)

	period := data.StartDate.Format("02 Jan 2006") + " - present"
	if data.EndDate != nil {
		period = data.StartDate.Format("02 Jan 2006") + " - " + data.EndDate.Format("02 Jan 2006")
	}

	g.row(pdf, tr, "Candidate", data.CandidateName)
	g.row(pdf, tr, "Employer", data.CompanyName)
	g.row(pdf, tr, "Position", data.Position)
	g.row(pdf, tr, "Period", period)
	g.row(pdf, tr, "Verified on", data.VerifiedAt.Format("02 Jan 2006"))
	g.hr(pdf)

	pdf.SetFont(g.fontName, "", 10)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf(
		"This certifies that the employment record above was verified on the VeriBoard platform. Issued %s.",
		data.IssuedAt.Format("02 Jan 2006 15:04 MST"))), "", "L", false)

	return pdf.Output(w)
}

func (g *CertificateGenerator) row(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(45, 9, tr(label+":"), "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 12)
	pdf.CellFormat(0, 9, tr(value), "", 1, "L", false, 0, "")
}

func (g *CertificateGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 3
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 5)
}
