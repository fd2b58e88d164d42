package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RGB is a fill colour for a PDF cell.
type RGB struct {
	R, G, B int
}

// CellFill picks a background for a body cell; ok=false leaves it white.
type CellFill func(value string) (RGB, bool)

// PDFExporter renders tables into a single-page-per-screen tabular PDF.
type PDFExporter struct {
	fill CellFill
}

// NewPDFExporter constructs a PDF exporter. fill may be nil.
func NewPDFExporter(fill CellFill) *PDFExporter {
	return &PDFExporter{fill: fill}
}

// ContentType is the MIME type of the rendered output.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

const (
	pdfMarginMM     = 10.0
	pdfLabelWidthMM = 45.0
)

// Render creates a PDF with the title, the table and its footer. Wide tables switch to
// landscape and give the first column a fixed label width.
func (e *PDFExporter) Render(table Table) ([]byte, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	orientation, usable := "P", 190.0
	if len(table.Headers) > 8 {
		orientation, usable = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pdfMarginMM, 15, pdfMarginMM)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if table.Title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 10, tr(table.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	widths := columnWidths(len(table.Headers), usable)
	header := func() {
		pdf.SetFont("Arial", "B", 7)
		for i, h := range table.Headers {
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	pdf.SetFont("Arial", "", 7)
	for _, row := range table.Rows {
		_, pageHeight := pdf.GetPageSize()
		if pdf.GetY()+6 > pageHeight-15 {
			pdf.AddPage()
			header()
			pdf.SetFont("Arial", "", 7)
		}
		for i := range table.Headers {
			value := table.cell(row, i)
			fill := false
			if e.fill != nil && i > 0 {
				if c, ok := e.fill(value); ok {
					pdf.SetFillColor(c.R, c.G, c.B)
					fill = true
				}
			}
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, tr(value), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(table.Footer) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 8)
		for _, line := range table.Footer {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns int, usable float64) []float64 {
	widths := make([]float64, columns)
	if columns == 1 {
		widths[0] = usable
		return widths
	}
	label := pdfLabelWidthMM
	if label > usable/2 {
		label = usable / 2
	}
	widths[0] = label
	rest := (usable - label) / float64(columns-1)
	for i := 1; i < columns; i++ {
		widths[i] = rest
	}
	return widths
}
