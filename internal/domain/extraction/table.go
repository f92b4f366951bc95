// Package extraction provides the per-vendor extraction strategies that turn
// statement page text into raw records, and the closed registry that maps
// extractor identifiers to them.
package extraction

import (
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

// Column is a canonical spreadsheet column name.
type Column string

const (
	ColumnReference      Column = "Referencia"
	ColumnAmount         Column = "Monto"
	ColumnDiscount       Column = "Descuento"
	ColumnWithholding    Column = "Retención"
	ColumnKind           Column = "Tipo"
	ColumnOriginalAmount Column = "Monto Original"
	ColumnAdjusted       Column = "Ajustado"
)

// Columns lists every canonical column in display order.
var Columns = []Column{
	ColumnReference,
	ColumnAmount,
	ColumnDiscount,
	ColumnWithholding,
	ColumnKind,
	ColumnOriginalAmount,
	ColumnAdjusted,
}

// IsMonetary reports whether the column carries amounts.
func (c Column) IsMonetary() bool {
	switch c {
	case ColumnAmount, ColumnDiscount, ColumnWithholding, ColumnOriginalAmount:
		return true
	}
	return false
}

// Amount is a monetary value as a strategy produced it: either already
// numeric or still in source (locale) text. The zero value is "absent".
type Amount struct {
	value   decimal.Decimal
	text    string
	numeric bool
	set     bool
}

// Numeric wraps a parsed amount.
func Numeric(d decimal.Decimal) Amount {
	return Amount{value: d, numeric: true, set: true}
}

// Formatted wraps an amount still in locale text, e.g. "1.234,56".
func Formatted(text string) Amount {
	return Amount{text: text, set: true}
}

// IsSet reports whether the amount was extracted at all.
func (a Amount) IsSet() bool { return a.set }

// IsNumeric reports whether the amount was already parsed.
func (a Amount) IsNumeric() bool { return a.numeric }

// Decimal returns the numeric value, parsing locale text when needed.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	if !a.set {
		return decimal.Zero, false
	}
	if a.numeric {
		return a.value, true
	}
	d, err := money.ParseLocale(a.text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// String renders numeric amounts in the canonical locale format and returns
// text amounts unchanged.
func (a Amount) String() string {
	switch {
	case !a.set:
		return ""
	case a.numeric:
		return money.FormatLocale(a.value)
	default:
		return a.text
	}
}

// RawRecord is one line item as extracted.
type RawRecord struct {
	Reference      string
	Amount         Amount
	Discount       Amount
	Withholding    Amount
	OriginalAmount Amount
	Kind           string
	Adjusted       *bool
}

// Money returns the amount held in a monetary column.
func (r RawRecord) Money(c Column) Amount {
	switch c {
	case ColumnAmount:
		return r.Amount
	case ColumnDiscount:
		return r.Discount
	case ColumnWithholding:
		return r.Withholding
	case ColumnOriginalAmount:
		return r.OriginalAmount
	}
	return Amount{}
}

// Policy tells the normalizer how much of a table is already canonical.
type Policy struct {
	// KeepReferences leaves references as extracted; the strategy already
	// prefixed the ones that need it.
	KeepReferences bool
	// AppendTotal adds a "TOTAL:" row summing the monetary columns when at
	// least one record exists.
	AppendTotal bool
}

// Table is the output of a strategy.
type Table struct {
	Columns []Column
	Records []RawRecord
	Policy  Policy
	// Skipped counts candidate lines dropped because an amount did not parse.
	Skipped int
}

// Has reports whether the table declares column c.
func (t Table) Has(c Column) bool {
	for _, col := range t.Columns {
		if col == c {
			return true
		}
	}
	return false
}

// Strategy turns the text of one vendor's statement into raw records. It is
// pure: it reads only the text it is given.
type Strategy interface {
	ID() ID
	Extract(text document.Text) Table
}

func boolPtr(b bool) *bool { return &b }
