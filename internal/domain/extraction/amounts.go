package extraction

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

var (
	// localeAmountRe matches "1.234,56" style amounts, unsigned.
	localeAmountRe = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}`)
	// signedLocaleAmountRe matches "-1.234,56" style amounts.
	signedLocaleAmountRe = regexp.MustCompile(`-?\d{1,3}(?:\.\d{3})*,\d{2}`)
)

// pairRecords zips two independently extracted lists by position, truncating
// to the shorter one.
func pairRecords(refs []string, amounts []decimal.Decimal) []RawRecord {
	n := min(len(refs), len(amounts))
	records := make([]RawRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, RawRecord{Reference: refs[i], Amount: Numeric(amounts[i])})
	}
	return records
}

// parseAll parses every locale amount, stopping at the first failure.
func parseAll(texts ...string) ([]decimal.Decimal, bool) {
	out := make([]decimal.Decimal, 0, len(texts))
	for _, t := range texts {
		d, err := money.ParseLocale(t)
		if err != nil {
			return nil, false
		}
		out = append(out, d)
	}
	return out, true
}
