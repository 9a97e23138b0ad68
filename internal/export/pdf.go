package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

// pdfWidths are per-column widths in millimeters, sized for landscape A4
// with 10mm margins.
var pdfWidths = []float64{16, 45, 45, 16, 45, 28, 28, 18, 24, 12}

// pdfBudgets cap cell text length per column so rows keep a bounded height
// on a fixed-width page.
var pdfBudgets = []int{12, 90, 90, 12, 90, 40, 40, 10, 26, 5}

const (
	pdfLineHeight = 4.0
	pdfFontSize   = 7.0
)

// WritePDF renders the matrix as a paginated table. The core fonts cannot
// encode Turkish characters, so text is folded to ASCII by stripping
// diacritics; this is a renderer limitation of the output format only.
func WritePDF(w io.Writer, m Matrix, title string) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(tableWidth(), 7, asciiFold(title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	var header MatrixRow
	for _, row := range m.Rows {
		if row.Type == RowHeader {
			header = row
			break
		}
	}
	printHeader := func() {
		if header.Cells == nil {
			return
		}
		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(217, 217, 217)
		for i, cell := range header.Cells {
			pdf.CellFormat(pdfWidths[i], 6, clip(cell, pdfBudgets[i]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	printHeader()

	for _, row := range m.Rows {
		if pdf.GetY() > 185 {
			pdf.AddPage()
			printHeader()
		}
		switch row.Type {
		case RowHeader:
			// Already printed at the top of each page.
		case RowSection:
			pdf.SetFont("Helvetica", "B", pdfFontSize+1)
			pdf.SetFillColor(189, 215, 238)
			pdf.CellFormat(tableWidth(), 6, asciiFold(row.Cells[0]), "1", 1, "L", true, 0, "")
		case RowSubsection:
			pdf.SetFont("Helvetica", "B", pdfFontSize)
			pdf.SetFillColor(221, 235, 247)
			pdf.CellFormat(tableWidth(), 5, asciiFold(row.Cells[0]), "1", 1, "L", true, 0, "")
		case RowData:
			pdf.SetFont("Helvetica", "", pdfFontSize)
			for i, cell := range row.Cells {
				pdf.CellFormat(pdfWidths[i], pdfLineHeight+1, clip(cell, pdfBudgets[i]), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func tableWidth() float64 {
	var total float64
	for _, w := range pdfWidths {
		total += w
	}
	return total
}

// clip folds to ASCII and truncates to the column's character budget, marking
// truncation with an ellipsis. Truncation counts runes, not bytes; the fold
// only covers Turkish diacritics and other multibyte text may pass through.
func clip(s string, budget int) string {
	s = asciiFold(s)
	r := []rune(s)
	if len(r) <= budget {
		return s
	}
	if budget <= 3 {
		return string(r[:budget])
	}
	return string(r[:budget-3]) + "..."
}

var turkishFolder = strings.NewReplacer(
	"ç", "c", "Ç", "C",
	"ğ", "g", "Ğ", "G",
	"ı", "i", "İ", "I",
	"ö", "o", "Ö", "O",
	"ş", "s", "Ş", "S",
	"ü", "u", "Ü", "U",
)

func asciiFold(s string) string { return turkishFolder.Replace(s) }
