// Package export turns a grouped rollup tree into downloadable report
// formats. The shaping is format-independent: both writers walk the same
// Matrix.
package export

import (
	"fmt"
	"strings"

	"belkon/internal/domain"
	"belkon/internal/rollup"
)

// Headers are the fixed column labels of the report, in order.
var Headers = []string{
	"Koşul Kodu",
	"Koşul",
	"Mevcut Durum",
	"Eylem Kodu",
	"Eylem",
	"Sorumlu Birim",
	"İşbirliği Yapılacak Birim",
	"Hedef Tarih",
	"Durum",
	"Tamamlanma (%)",
}

// ColumnWidths are spreadsheet column widths, index-aligned with Headers.
var ColumnWidths = []float64{12, 42, 42, 12, 42, 26, 26, 13, 22, 14}

// StatusLabels maps lifecycle statuses to their Turkish display names.
var StatusLabels = map[string]string{
	domain.StatusNotStarted: "Başlamadı",
	domain.StatusInProgress: "Devam Ediyor",
	domain.StatusCompleted:  "Tamamlandı",
	domain.StatusCancelled:  "İptal Edildi",
	domain.StatusOngoing:    "Sürekli İzleniyor",
}

// AllUnitsLabel renders the all-units assignment.
const AllUnitsLabel = "Tüm Birimler"

type RowType int

const (
	RowHeader RowType = iota
	// RowSection is a full-width component header.
	RowSection
	// RowSubsection is a full-width standard header.
	RowSubsection
	RowData
)

// MatrixRow is one output row. Section rows carry a single cell spanning the
// full width; data rows carry exactly len(Headers) cells.
type MatrixRow struct {
	Type  RowType
	Cells []string
}

type Matrix struct {
	Rows []MatrixRow
}

// Build flattens the grouped tree into the report matrix. The condition's
// descriptive columns appear only on the first row of each condition group,
// simulating merged cells in flat row formats.
func Build(tree rollup.Tree) Matrix {
	m := Matrix{Rows: []MatrixRow{{Type: RowHeader, Cells: append([]string(nil), Headers...)}}}
	for _, comp := range tree.Components {
		m.Rows = append(m.Rows, MatrixRow{
			Type:  RowSection,
			Cells: []string{sectionLabel(comp.Code, comp.Name)},
		})
		for _, std := range comp.Standards {
			m.Rows = append(m.Rows, MatrixRow{
				Type:  RowSubsection,
				Cells: []string{sectionLabel(std.Code, std.Name)},
			})
			for _, cond := range std.Conditions {
				for i, row := range cond.Rows {
					cells := make([]string, len(Headers))
					if i == 0 {
						cells[0] = cond.Code
						cells[1] = cond.Description
						cells[2] = cond.Situation
					}
					cells[3] = row.Code
					cells[4] = row.Title
					if row.Kind == rollup.RowAction {
						cells[5] = assignmentLabel(row.Responsible)
						cells[6] = assignmentLabel(row.Collaborating)
						if row.TargetDate != nil {
							cells[7] = *row.TargetDate
						}
						cells[8] = statusLabel(row)
						cells[9] = fmt.Sprintf("%d", row.Progress)
					}
					m.Rows = append(m.Rows, MatrixRow{Type: RowData, Cells: cells})
				}
			}
		}
	}
	return m
}

func sectionLabel(code, name string) string {
	if name == "" {
		return code
	}
	return code + " - " + name
}

func assignmentLabel(a rollup.Assignment) string {
	if a.All {
		return AllUnitsLabel
	}
	parts := make([]string, 0, len(a.Names)+len(a.UnitNames))
	parts = append(parts, a.Names...)
	parts = append(parts, a.UnitNames...)
	return strings.Join(parts, ", ")
}

func statusLabel(r rollup.Row) string {
	label := StatusLabels[r.Status]
	if label == "" {
		label = r.Status
	}
	if r.Delayed() {
		label = fmt.Sprintf("%s (%d gün gecikme)", label, r.DelayDays)
	}
	return label
}
