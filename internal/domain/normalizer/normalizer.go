// Package normalizer turns extracted records into the canonical table that
// is written to the spreadsheet: prefixed references, locale formatted
// amounts, sorted rows and an optional TOTAL row.
package normalizer

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

// TotalReference marks the synthesized totals row.
const TotalReference = "TOTAL:"

// totalColumns are the columns summed into the TOTAL row.
var totalColumns = []extraction.Column{
	extraction.ColumnAmount,
	extraction.ColumnDiscount,
	extraction.ColumnWithholding,
}

// Row maps a column to its cell text. Missing columns are blank cells.
type Row map[extraction.Column]string

// Reference returns the row's reference cell.
func (r Row) Reference() string {
	return r[extraction.ColumnReference]
}

// IsTotal reports whether the row is the synthesized totals row.
func (r Row) IsTotal() bool {
	return strings.TrimSpace(r.Reference()) == TotalReference
}

// Table is a normalized table ready to be written.
type Table struct {
	Columns []extraction.Column
	Rows    []Row
}

// Empty reports whether the table carries nothing worth writing: no rows, or
// no row with a non-blank reference.
func (t Table) Empty() bool {
	for _, row := range t.Rows {
		if !row.IsTotal() && strings.TrimSpace(row.Reference()) != "" {
			return false
		}
	}
	return true
}

// DataRows returns every row except the TOTAL row.
func (t Table) DataRows() []Row {
	rows := make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		if !row.IsTotal() {
			rows = append(rows, row)
		}
	}
	return rows
}

// Normalize canonicalizes references and amounts, sorts rows by reference
// and appends the TOTAL row when the table's policy asks for it. It is
// deterministic and never fails.
func Normalize(in extraction.Table) Table {
	out := Table{
		Columns: append([]extraction.Column(nil), in.Columns...),
		Rows:    make([]Row, 0, len(in.Records)+1),
	}

	for _, rec := range in.Records {
		out.Rows = append(out.Rows, normalizeRecord(in, rec))
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i].Reference() < out.Rows[j].Reference()
	})

	if in.Policy.AppendTotal && len(in.Records) > 0 {
		out.Rows = append(out.Rows, totalRow(in))
	}

	return out
}

func normalizeRecord(in extraction.Table, rec extraction.RawRecord) Row {
	row := make(Row, len(in.Columns))
	for _, col := range in.Columns {
		switch {
		case col == extraction.ColumnReference:
			if in.Policy.KeepReferences {
				row[col] = strings.TrimSpace(rec.Reference)
			} else {
				row[col] = Reference(rec.Reference)
			}
		case col.IsMonetary():
			row[col] = Amount(rec.Money(col))
		case col == extraction.ColumnKind:
			row[col] = rec.Kind
		case col == extraction.ColumnAdjusted:
			row[col] = adjusted(rec.Adjusted)
		}
	}
	return row
}

// Amount renders an extracted amount in the canonical locale format. Text
// amounts that do not parse are kept verbatim.
func Amount(a extraction.Amount) string {
	if d, ok := a.Decimal(); ok {
		return money.FormatLocale(d)
	}
	return a.String()
}

func adjusted(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "Sí"
	default:
		return "No"
	}
}

func totalRow(in extraction.Table) Row {
	row := Row{extraction.ColumnReference: TotalReference}
	for _, col := range totalColumns {
		if !in.Has(col) {
			continue
		}
		values := make([]decimal.Decimal, 0, len(in.Records))
		for _, rec := range in.Records {
			if d, ok := rec.Money(col).Decimal(); ok {
				values = append(values, d)
			}
		}
		row[col] = money.FormatLocale(money.Sum(money.UYU, values...))
	}
	if in.Has(extraction.ColumnKind) {
		row[extraction.ColumnKind] = ""
	}
	return row
}
