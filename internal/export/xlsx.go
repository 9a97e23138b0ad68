package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Eylem Planı"

// WriteXLSX serializes the matrix as a spreadsheet: styled header, component
// and standard rows merged across the full width, fixed column widths.
func WriteXLSX(w io.Writer, m Matrix) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, width := range ColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D9D9D9"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return err
	}
	sectionStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"BDD7EE"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	subsectionStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(ColumnWidths))
	if err != nil {
		return err
	}
	for rowIdx, row := range m.Rows {
		n := rowIdx + 1
		first, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		switch row.Type {
		case RowHeader, RowData:
			for colIdx, cell := range row.Cells {
				name, err := excelize.CoordinatesToCellName(colIdx+1, n)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheetName, name, cell); err != nil {
					return fmt.Errorf("cell %s: %w", name, err)
				}
			}
			style := dataStyle
			if row.Type == RowHeader {
				style = headerStyle
			}
			if err := f.SetCellStyle(sheetName, first, lastCol+fmt.Sprint(n), style); err != nil {
				return err
			}
		case RowSection, RowSubsection:
			if err := f.SetCellValue(sheetName, first, row.Cells[0]); err != nil {
				return err
			}
			if err := f.MergeCell(sheetName, first, lastCol+fmt.Sprint(n)); err != nil {
				return fmt.Errorf("merge row %d: %w", n, err)
			}
			style := sectionStyle
			if row.Type == RowSubsection {
				style = subsectionStyle
			}
			if err := f.SetCellStyle(sheetName, first, lastCol+fmt.Sprint(n), style); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
