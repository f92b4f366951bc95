package remote

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
)

// EncodeRecords renders a table as flat objects keyed by column name.
// Parsed amounts are JSON numbers; absent values are null.
func EncodeRecords(t extraction.Table) []map[string]any {
	out := make([]map[string]any, 0, len(t.Records))
	for _, rec := range t.Records {
		obj := make(map[string]any, len(t.Columns))
		for _, col := range t.Columns {
			switch {
			case col == extraction.ColumnReference:
				obj[string(col)] = rec.Reference
			case col == extraction.ColumnKind:
				obj[string(col)] = rec.Kind
			case col == extraction.ColumnAdjusted:
				obj[string(col)] = rec.Adjusted
			case col.IsMonetary():
				obj[string(col)] = amountValue(rec.Money(col))
			}
		}
		out = append(out, obj)
	}
	return out
}

func amountValue(a extraction.Amount) any {
	if !a.IsSet() {
		return nil
	}
	if d, ok := a.Decimal(); ok {
		return json.Number(d.String())
	}
	return a.String()
}

// DecodeRecords parses a JSON array of flat records. Keys that are not
// canonical column names are ignored; the table declares every canonical
// column that appears in at least one record.
func DecodeRecords(r io.Reader) (extraction.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return extraction.Table{}, fmt.Errorf("failed to decode records: %w", err)
	}

	seen := make(map[extraction.Column]bool)
	table := extraction.Table{Records: make([]extraction.RawRecord, 0, len(raw))}

	for i, obj := range raw {
		var rec extraction.RawRecord
		for _, col := range extraction.Columns {
			v, ok := obj[string(col)]
			if !ok {
				continue
			}
			seen[col] = true
			if err := setField(&rec, col, v); err != nil {
				return extraction.Table{}, fmt.Errorf("record %d: %w", i, err)
			}
		}
		table.Records = append(table.Records, rec)
	}

	for _, col := range extraction.Columns {
		if seen[col] {
			table.Columns = append(table.Columns, col)
		}
	}
	return table, nil
}

func setField(rec *extraction.RawRecord, col extraction.Column, v any) error {
	if v == nil {
		return nil
	}

	switch {
	case col == extraction.ColumnReference:
		switch t := v.(type) {
		case string:
			rec.Reference = t
		case json.Number:
			rec.Reference = t.String()
		default:
			return fmt.Errorf("%s: unexpected %T", col, v)
		}
	case col == extraction.ColumnKind:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s: unexpected %T", col, v)
		}
		rec.Kind = s
	case col == extraction.ColumnAdjusted:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%s: unexpected %T", col, v)
		}
		rec.Adjusted = &b
	case col.IsMonetary():
		a, err := amountFrom(v)
		if err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
		switch col {
		case extraction.ColumnAmount:
			rec.Amount = a
		case extraction.ColumnDiscount:
			rec.Discount = a
		case extraction.ColumnWithholding:
			rec.Withholding = a
		case extraction.ColumnOriginalAmount:
			rec.OriginalAmount = a
		}
	}
	return nil
}

func amountFrom(v any) (extraction.Amount, error) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return extraction.Amount{}, err
		}
		return extraction.Numeric(d), nil
	case string:
		if t == "" {
			return extraction.Amount{}, nil
		}
		return extraction.Formatted(t), nil
	}
	return extraction.Amount{}, fmt.Errorf("unexpected %T", v)
}
