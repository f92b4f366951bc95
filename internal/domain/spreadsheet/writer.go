// Package spreadsheet renders normalized tables as xlsx workbooks (and an
// optional CSV sidecar) and reads them back for validation.
package spreadsheet

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-extractor/internal/domain/normalizer"
)

const (
	sheetName = "Sheet1"

	headerFill = "1F4E78"
	headerFont = "FFFFFF"
	bandFill   = "F2F2F2"

	minColumnWidth = 10
	maxColumnWidth = 50
)

// OutputName is the workbook file name for a document stem.
func OutputName(stem string) string {
	return stem + "_output.xlsx"
}

// Writer renders tables as styled workbooks: a bold white-on-blue header,
// banded data rows, a bold TOTAL row and columns sized to their content.
type Writer struct{}

// NewWriter creates a Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Encode renders table as an xlsx workbook with a single sheet.
func (w *Writer) Encode(table normalizer.Table) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	header := make([]interface{}, len(table.Columns))
	widths := make([]int, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = string(col)
		widths[i] = utf8.RuneCountInString(string(col))
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if len(table.Columns) == 0 {
		return f.WriteToBuffer()
	}

	lastCol, err := excelize.ColumnNumberToName(len(table.Columns))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve column: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", styles.header); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range table.Rows {
		rowNum := i + 2
		values := make([]interface{}, len(table.Columns))
		for j, col := range table.Columns {
			cell := row[col]
			values[j] = cell
			widths[j] = max(widths[j], utf8.RuneCountInString(cell))
		}

		first, _ := excelize.CoordinatesToCellName(1, rowNum)
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), rowNum)
		if err := f.SetSheetRow(sheetName, first, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", rowNum, err)
		}

		style := 0
		switch {
		case row.IsTotal():
			style = styles.total
		case i%2 == 1:
			style = styles.band
		}
		if style != 0 {
			if err := f.SetCellStyle(sheetName, first, last, style); err != nil {
				return nil, fmt.Errorf("failed to style row %d: %w", rowNum, err)
			}
		}
	}

	for i, width := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		size := float64(min(max(width+2, minColumnWidth), maxColumnWidth))
		if err := f.SetColWidth(sheetName, name, name, size); err != nil {
			return nil, fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	return f.WriteToBuffer()
}

type styleSet struct {
	header int
	band   int
	total  int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error

	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: headerFont},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}

	s.band, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{bandFill}, Pattern: 1},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create band style: %w", err)
	}

	s.total, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "top", Color: headerFill, Style: 1}},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create total style: %w", err)
	}

	return s, nil
}
