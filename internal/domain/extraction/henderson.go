package extraction

import (
	"strings"
	"unicode"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

// HendersonStrategy reads the statement table row by row: the third cell is
// the document number and must be all digits, the last cell is the amount
// with "," thousands separators. Header rows fail the digit check.
//
// It runs inside the remote extraction service; dispatchers never queue it.
type HendersonStrategy struct{}

func (HendersonStrategy) ID() ID { return Henderson }

func (HendersonStrategy) Extract(text document.Text) Table {
	table := Table{Columns: []Column{ColumnReference, ColumnAmount}}

	for _, line := range text.Lines() {
		cells := strings.Fields(line)
		if len(cells) < 3 || !allDigits(cells[2]) {
			continue
		}
		d, err := money.ParseUS(cells[len(cells)-1])
		if err != nil {
			table.Skipped++
			continue
		}
		table.Records = append(table.Records, RawRecord{Reference: cells[2], Amount: Numeric(d)})
	}

	return table
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
