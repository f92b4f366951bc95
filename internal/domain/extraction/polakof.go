package extraction

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

var polakofDocumentRe = regexp.MustCompile(`Documento\s+(A?\d+):\s+([-\d.,]+)\s+UYU`)

// PolakofStrategy reads "Documento <ref>: <amount> UYU" entries. Amounts
// use "," as thousands separator and "." for decimals.
type PolakofStrategy struct{}

func (PolakofStrategy) ID() ID { return Polakof }

func (PolakofStrategy) Extract(text document.Text) Table {
	table := Table{Columns: []Column{ColumnReference, ColumnAmount}}

	for _, m := range polakofDocumentRe.FindAllStringSubmatch(text.Joined(), -1) {
		d, err := money.ParseUS(m[2])
		if err != nil {
			table.Skipped++
			continue
		}
		table.Records = append(table.Records, RawRecord{Reference: strings.TrimSpace(m[1]), Amount: Numeric(d)})
	}

	return table
}
