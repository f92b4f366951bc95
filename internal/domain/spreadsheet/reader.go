package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/normalizer"
)

// Read loads the first sheet of a workbook back into a table. The first row
// is the header; cells past the end of a short row are blank.
func Read(r io.Reader) (normalizer.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return normalizer.Table{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return normalizer.Table{}, fmt.Errorf("no sheet found")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return normalizer.Table{}, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return normalizer.Table{}, nil
	}

	table := normalizer.Table{Columns: make([]extraction.Column, 0, len(rows[0]))}
	for _, h := range rows[0] {
		table.Columns = append(table.Columns, extraction.Column(strings.TrimSpace(h)))
	}

	for _, cells := range rows[1:] {
		row := make(normalizer.Row, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(cells) {
				row[col] = cells[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
