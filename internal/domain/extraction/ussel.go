package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

var (
	usselOpsRe = regexp.MustCompile(
		`(FAC|RR|NM|NA|NC)\s+Nº[:\s]*(\d{5,8})\s+por\s+\$\s*` +
			`(-?(?:\d{1,3}(?:\.\d{3})+|\d+)(?:[.,]\d+)?)`)
	thousandsOnlyRe  = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+$`)
	usselResRefRe    = regexp.MustCompile(`FA-(\d{5,8})`)
	usselResAmountRe = regexp.MustCompile(`\$?\s*(-?\d{1,3}(?:\.\d{3})*,\d{2})`)
)

// UsselOpsStrategy reads "<KIND> Nº <ref> por $ <amount>" operations and
// folds them per reference: RR operations are withholdings, everything else
// is the original amount. References keep their first-seen order.
type UsselOpsStrategy struct{}

func (UsselOpsStrategy) ID() ID { return UsselOps }

func (UsselOpsStrategy) Extract(text document.Text) Table {
	table := Table{Columns: []Column{ColumnReference, ColumnOriginalAmount, ColumnWithholding}}

	index := make(map[string]int)
	for _, m := range usselOpsRe.FindAllStringSubmatch(text.Joined(), -1) {
		kind, ref, raw := m[1], m[2], m[3]

		amount, err := parseOperationAmount(raw)
		if err != nil {
			table.Skipped++
			continue
		}

		i, ok := index[ref]
		if !ok {
			i = len(table.Records)
			index[ref] = i
			table.Records = append(table.Records, RawRecord{Reference: ref})
		}
		if kind == "RR" {
			table.Records[i].Withholding = Numeric(amount)
		} else {
			table.Records[i].OriginalAmount = Numeric(amount)
		}
	}

	return table
}

// parseOperationAmount accepts locale amounts ("1.234,56"), grouped integers
// ("1.500") and plain decimals ("1500.50").
func parseOperationAmount(raw string) (decimal.Decimal, error) {
	if strings.Contains(raw, ",") || thousandsOnlyRe.MatchString(raw) {
		return money.ParseLocale(raw)
	}
	return decimal.NewFromString(raw)
}

// UsselResStrategy reads one record per "FA-<ref>" line with the first
// locale amount on that line.
type UsselResStrategy struct{}

func (UsselResStrategy) ID() ID { return UsselRes }

func (UsselResStrategy) Extract(text document.Text) Table {
	table := Table{Columns: []Column{ColumnReference, ColumnAmount}}

	for _, line := range text.Lines() {
		if !strings.Contains(line, "FA-") {
			continue
		}
		ref := usselResRefRe.FindStringSubmatch(line)
		amount := usselResAmountRe.FindStringSubmatch(line)
		if ref == nil || amount == nil {
			continue
		}
		d, err := money.ParseLocale(amount[1])
		if err != nil {
			table.Skipped++
			continue
		}
		table.Records = append(table.Records, RawRecord{Reference: ref[1], Amount: Numeric(d)})
	}

	return table
}
