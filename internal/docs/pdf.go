package docs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/raykov/gofpdf"
)

// PDFRenderer writes documents as A4 PDF files. FontPath may point to a
// TTF with Cyrillic glyphs; without it the built-in Helvetica is used
// and non-latin titles degrade.
type PDFRenderer struct {
	FontPath string
}

const (
	pdfMarginMM  = 15.0
	pdfRowHeight = 8.0
	pdfTitleSize = 14.0
	pdfBodySize  = 10.0
)

func (r *PDFRenderer) Render(doc *Document, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMarginMM, pdfMarginMM, pdfMarginMM)
	pdf.AddPage()

	font := "Helvetica"
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	if r.FontPath != "" {
		font = "document"
		pdf.AddUTF8Font(font, "", r.FontPath)
		translate = func(s string) string { return s }
	}

	pdf.SetFont(font, "", pdfTitleSize)
	pdf.CellFormat(0, pdfRowHeight+2, translate(doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pageW, _ := pdf.GetPageSize()
	usable := pageW - 2*pdfMarginMM

	cols := len(doc.Columns)
	if cols == 0 {
		// Field sheets have two columns per row.
		cols = 2
	}
	colW := usable / float64(cols)

	pdf.SetFont(font, "", pdfBodySize)
	if len(doc.Columns) > 0 {
		for _, h := range doc.Columns {
			pdf.CellFormat(colW, pdfRowHeight, translate(h), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, row := range doc.Rows {
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(colW, pdfRowHeight, translate(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Save renders a document into dir under a fresh unguessable name and
// returns the full path.
func Save(doc *Document, r Renderer, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+".pdf")
	if err := r.Render(doc, path); err != nil {
		return "", err
	}
	return path, nil
}
