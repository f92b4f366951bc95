package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

func dec(s string) extraction.Amount {
	return extraction.Numeric(decimal.RequireFromString(s))
}

// ============================================================================
// References
// ============================================================================

func TestReference(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"five digits", "12345", "A-0012345"},
		{"six digits", "123456", "A-0123456"},
		{"seven digits", "1234567", "B-1234567"},
		{"eight digits", "12345678", "B-12345678"},
		{"letter prefix", "A123456", "A-0123456"},
		{"nine digits takes first eight", "123456789", "B-12345678"},
		{"too short", "1234", ""},
		{"no digits", "abc", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reference(tt.in))
		})
	}
}

func TestCanonicalReference_Totality(t *testing.T) {
	gen := money.NewTestDataGeneratorWithSeed(7)
	prefixes := map[int]string{5: "A-00", 6: "A-0", 7: "B-", 8: "B-"}

	for i := 0; i < 200; i++ {
		for n := 1; n <= 12; n++ {
			digits := gen.Reference(n)
			got := CanonicalReference(digits)

			if prefix, ok := prefixes[n]; ok {
				assert.Equal(t, prefix+digits, got)
			} else {
				assert.Equal(t, digits, got)
			}
		}
	}
}

// ============================================================================
// Normalize
// ============================================================================

func TestNormalize_SortsAndFormats(t *testing.T) {
	in := extraction.Table{
		Columns: []extraction.Column{extraction.ColumnReference, extraction.ColumnAmount},
		Records: []extraction.RawRecord{
			{Reference: "1234567", Amount: dec("10")},
			{Reference: "12345", Amount: extraction.Formatted("1.234,56")},
			{Reference: "A123456", Amount: dec("-0.5")},
			{Reference: "n/a", Amount: extraction.Formatted("n/a")},
		},
	}

	out := Normalize(in)

	require.Len(t, out.Rows, 4)
	assert.Equal(t, in.Columns, out.Columns)
	assert.Equal(t, Row{"Referencia": "", "Monto": "n/a"}, out.Rows[0])
	assert.Equal(t, Row{"Referencia": "A-0012345", "Monto": "1234,56"}, out.Rows[1])
	assert.Equal(t, Row{"Referencia": "A-0123456", "Monto": "-0,50"}, out.Rows[2])
	assert.Equal(t, Row{"Referencia": "B-1234567", "Monto": "10,00"}, out.Rows[3])
	assert.False(t, out.Empty())
}

func TestNormalize_KeepReferencesAndTotal(t *testing.T) {
	in := extraction.Table{
		Columns: []extraction.Column{
			extraction.ColumnReference, extraction.ColumnAmount, extraction.ColumnDiscount,
			extraction.ColumnWithholding, extraction.ColumnKind,
		},
		Records: []extraction.RawRecord{
			{Reference: "B-1234567", Amount: dec("1000"), Discount: dec("10"), Withholding: dec("5"), Kind: "FA"},
			{Reference: "12345-6", Amount: dec("1500"), Discount: dec("0"), Withholding: dec("0"), Kind: "C.ASU"},
			{Reference: "98765-4", Amount: dec("-20.10"), Discount: dec("0"), Withholding: dec("0.25"), Kind: "NC"},
		},
		Policy: extraction.Policy{KeepReferences: true, AppendTotal: true},
	}

	out := Normalize(in)

	require.Len(t, out.Rows, 4)
	assert.Equal(t, "12345-6", out.Rows[0].Reference())
	assert.Equal(t, "98765-4", out.Rows[1].Reference())
	assert.Equal(t, "B-1234567", out.Rows[2].Reference())
	assert.Equal(t, "C.ASU", out.Rows[0][extraction.ColumnKind])

	total := out.Rows[3]
	assert.True(t, total.IsTotal())
	assert.Equal(t, "2479,90", total[extraction.ColumnAmount])
	assert.Equal(t, "10,00", total[extraction.ColumnDiscount])
	assert.Equal(t, "5,25", total[extraction.ColumnWithholding])
	assert.Equal(t, "", total[extraction.ColumnKind])

	assert.Len(t, out.DataRows(), 3)
}

func TestNormalize_NoTotalWithoutRecords(t *testing.T) {
	in := extraction.Table{
		Columns: []extraction.Column{extraction.ColumnReference, extraction.ColumnAmount},
		Policy:  extraction.Policy{AppendTotal: true},
	}

	out := Normalize(in)

	assert.Empty(t, out.Rows)
	assert.True(t, out.Empty())
}

func TestNormalize_OptionalColumns(t *testing.T) {
	yes, no := true, false
	in := extraction.Table{
		Columns: []extraction.Column{
			extraction.ColumnReference, extraction.ColumnOriginalAmount,
			extraction.ColumnWithholding, extraction.ColumnAdjusted,
		},
		Records: []extraction.RawRecord{
			{Reference: "22222", OriginalAmount: dec("12"), Adjusted: &yes},
			{Reference: "11111", Withholding: dec("3.5"), Adjusted: &no},
		},
	}

	out := Normalize(in)

	require.Len(t, out.Rows, 2)
	assert.Equal(t, Row{"Referencia": "A-0011111", "Monto Original": "", "Retención": "3,50", "Ajustado": "No"}, out.Rows[0])
	assert.Equal(t, Row{"Referencia": "A-0022222", "Monto Original": "12,00", "Retención": "", "Ajustado": "Sí"}, out.Rows[1])
}

func TestTable_Empty(t *testing.T) {
	blank := Table{Rows: []Row{{"Referencia": " "}, {"Referencia": ""}}}
	assert.True(t, blank.Empty())

	onlyTotal := Table{Rows: []Row{{"Referencia": TotalReference, "Monto": "0,00"}}}
	assert.True(t, onlyTotal.Empty())

	assert.False(t, Table{Rows: []Row{{"Referencia": "A-0012345"}}}.Empty())
}
