package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
)

const (
	kindAdvance    = "C.ASU"
	kindInvoice    = "FA"
	kindCreditNote = "NC"
)

var (
	gduReferenceRe = regexp.MustCompile(`(\d{4,8}-\d)`)
	gduAmountRe    = regexp.MustCompile(`-?\d{1,8},\d{2}`)
)

// GDUStrategy classifies each line by keyword into advance payment
// (C.ASU), invoice or credit note. Advance payments carry only an amount;
// every other kind needs amount, discount and withholding. Invoice
// references are prefixed here, so the normalizer keeps references as they
// are and appends the TOTAL row.
type GDUStrategy struct{}

func (GDUStrategy) ID() ID { return GDU }

func (GDUStrategy) Extract(text document.Text) Table {
	table := Table{
		Columns: []Column{ColumnReference, ColumnAmount, ColumnDiscount, ColumnWithholding, ColumnKind},
		Policy:  Policy{KeepReferences: true, AppendTotal: true},
	}

	for _, line := range text.Lines() {
		ref := gduReferenceRe.FindString(line)
		if ref == "" {
			continue
		}
		found := gduAmountRe.FindAllString(line, -1)
		if len(found) == 0 {
			continue
		}

		kind := gduKind(line)
		if kind == kindAdvance {
			amounts, ok := parseAll(found[0])
			if !ok {
				table.Skipped++
				continue
			}
			table.Records = append(table.Records, RawRecord{
				Reference:   ref,
				Amount:      Numeric(amounts[0]),
				Discount:    Numeric(decimal.Zero),
				Withholding: Numeric(decimal.Zero),
				Kind:        kindAdvance,
			})
			continue
		}

		if len(found) < 3 {
			continue
		}
		amounts, ok := parseAll(found[0], found[1], found[2])
		if !ok {
			table.Skipped++
			continue
		}
		if kind == kindInvoice {
			ref = invoiceReference(ref)
		}
		table.Records = append(table.Records, RawRecord{
			Reference:   ref,
			Amount:      Numeric(amounts[0]),
			Discount:    Numeric(amounts[1]),
			Withholding: Numeric(amounts[2]),
			Kind:        kind,
		})
	}

	return table
}

func gduKind(line string) string {
	switch {
	case strings.Contains(line, "C.ASU"):
		return kindAdvance
	case strings.Contains(line, "Fact"):
		return kindInvoice
	case strings.Contains(line, "Devol"):
		return kindCreditNote
	}
	return ""
}

// invoiceReference drops the check digit and prefixes the document number.
// Seven digit numbers only take the B- series when they start with 1.
func invoiceReference(ref string) string {
	nr, _, _ := strings.Cut(ref, "-")
	switch {
	case len(nr) == 8, len(nr) == 7 && strings.HasPrefix(nr, "1"):
		return "B-" + nr
	case len(nr) == 6:
		return "A-0" + nr
	case len(nr) == 5:
		return "A-00" + nr
	}
	return nr
}
