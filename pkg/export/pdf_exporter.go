package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders rosters and certificates.
type PDFExporter struct {
	now func() time.Time
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

// Render creates a tabular PDF document with a title.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 15, 10)
	e.footer(pdf)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(data.Headers))

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, tr(row[header]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// Certificate holds the fields printed on an enrollment certificate.
type Certificate struct {
	Number          string
	StudentName     string
	StudentDocument string
	InstitutionName string
	DaneCode        string
	Municipality    string
	CourseLabel     string
	RegisteredAt    time.Time
}

// RenderCertificate produces a one page enrollment certificate.
func (e *PDFExporter) RenderCertificate(cert Certificate) ([]byte, error) {
	if cert.StudentName == "" || cert.InstitutionName == "" {
		return nil, fmt.Errorf("certificate requires student and institution")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 25, 20)
	e.footer(pdf)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(strings.ToUpper(cert.InstitutionName)), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("DANE %s - %s", cert.DaneCode, cert.Municipality)), "", 1, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "CERTIFICADO DE MATRICULA", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	course := cert.CourseLabel
	if course == "" {
		course = "por asignar"
	}
	body := fmt.Sprintf(
		"La institucion %s certifica que el estudiante %s, identificado con documento %s, "+
			"se encuentra matriculado en el curso %s desde el %s.",
		cert.InstitutionName, cert.StudentName, cert.StudentDocument, course,
		cert.RegisteredAt.Format("2006-01-02"),
	)
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 7, tr(body), "", "J", false)
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, tr("Certificado No. "+cert.Number), "", 1, "L", false, 0, "")

	return output(pdf)
}

func (e *PDFExporter) footer(pdf *gofpdf.Fpdf) {
	generated := e.now().UTC().Format(time.RFC3339)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Matrischol - %s - %d", generated, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
