package extraction

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

var (
	macroReferenceRe = regexp.MustCompile(`\bA\d{5,8}\b`)
	macroUplift      = decimal.RequireFromString("1.22")
)

// MacroOpsStrategy takes the A-series reference and the last amount of
// every line carrying both.
type MacroOpsStrategy struct{}

func (MacroOpsStrategy) ID() ID { return MacroOps }

func (MacroOpsStrategy) Extract(text document.Text) Table {
	table := Table{Columns: []Column{ColumnReference, ColumnAmount}}

	for _, line := range text.Lines() {
		ref := macroReferenceRe.FindString(line)
		found := signedLocaleAmountRe.FindAllString(line, -1)
		if ref == "" || len(found) == 0 {
			continue
		}
		d, err := money.ParseLocale(found[len(found)-1])
		if err != nil {
			table.Skipped++
			continue
		}
		table.Records = append(table.Records, RawRecord{Reference: ref, Amount: Numeric(d)})
	}

	return table
}

// MacroResStrategy reconciles withholding summaries. A first pass finds the
// most frequent two character reference prefix; records with any other
// prefix get their base amount uplifted by 22% and are flagged Adjusted.
// Frequency ties go to the prefix seen first.
type MacroResStrategy struct{}

func (MacroResStrategy) ID() ID { return MacroRes }

func (MacroResStrategy) Extract(text document.Text) Table {
	table := Table{Columns: []Column{ColumnReference, ColumnAmount, ColumnWithholding, ColumnAdjusted}}

	lines := text.Lines()
	majority, ok := majorityPrefix(lines)
	if !ok {
		return table
	}

	for _, line := range lines {
		ref := macroReferenceRe.FindString(line)
		found := signedLocaleAmountRe.FindAllString(line, -1)
		if ref == "" || len(found) < 2 {
			continue
		}
		amounts, ok := parseAll(found[len(found)-2], found[len(found)-1])
		if !ok {
			table.Skipped++
			continue
		}

		base, adjusted := amounts[0], ref[:2] != majority
		if adjusted {
			base = base.Mul(macroUplift).Round(2)
		}
		table.Records = append(table.Records, RawRecord{
			Reference:   ref,
			Amount:      Numeric(base),
			Withholding: Numeric(amounts[1]),
			Adjusted:    boolPtr(adjusted),
		})
	}

	return table
}

func majorityPrefix(lines []string) (string, bool) {
	counts := make(map[string]int)
	var order []string
	for _, line := range lines {
		ref := macroReferenceRe.FindString(line)
		if ref == "" {
			continue
		}
		prefix := ref[:2]
		if counts[prefix] == 0 {
			order = append(order, prefix)
		}
		counts[prefix]++
	}

	best := ""
	for _, prefix := range order {
		if best == "" || counts[prefix] > counts[best] {
			best = prefix
		}
	}
	return best, best != ""
}
