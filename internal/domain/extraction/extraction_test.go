package extraction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
)

type row struct {
	ref    string
	amount string
}

func rows(t *testing.T, table Table) []row {
	t.Helper()
	out := make([]row, 0, len(table.Records))
	for _, r := range table.Records {
		out = append(out, row{ref: r.Reference, amount: r.Amount.String()})
	}
	return out
}

// ============================================================================
// Registry
// ============================================================================

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name string
		in   string
		want ID
	}{
		{"canonical", "tata", Tata},
		{"case and spaces", " TATA ", Tata},
		{"legacy gdu", "extract_GDU", GDU},
		{"legacy ussel ops", "extract_ops_ussel", UsselOps},
		{"legacy macro res", "extract_res_macro", MacroRes},
		{"legacy remote", "call_henderson_microservice", Henderson},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Unknown(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve("extract_acme")
	assert.ErrorIs(t, err, ErrUnknownExtractor)

	_, err = reg.Strategy(ID("acme"))
	assert.ErrorIs(t, err, ErrUnknownExtractor)
}

func TestRegistry_Strategies(t *testing.T) {
	reg := NewRegistry()

	ids := reg.IDs()
	require.Len(t, ids, 9)
	assert.Equal(t, Bowerey, ids[0])

	for _, id := range ids {
		s, err := reg.Strategy(id)
		require.NoError(t, err)
		assert.Equal(t, id, s.ID())
		assert.Equal(t, id == Henderson, reg.IsRemote(id))
	}
}

// ============================================================================
// Amount
// ============================================================================

func TestAmount(t *testing.T) {
	var absent Amount
	assert.False(t, absent.IsSet())
	assert.Equal(t, "", absent.String())
	_, ok := absent.Decimal()
	assert.False(t, ok)

	text := Formatted("1.234,56")
	assert.False(t, text.IsNumeric())
	assert.Equal(t, "1.234,56", text.String())
	d, ok := text.Decimal()
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("1234.56")))

	num := Numeric(decimal.RequireFromString("-10.5"))
	assert.Equal(t, "-10,50", num.String())

	_, ok = Formatted("n/a").Decimal()
	assert.False(t, ok)
}

// ============================================================================
// Strategies
// ============================================================================

func TestTata(t *testing.T) {
	text := document.NewText(
		"INFORMACIÓN DE REFERENCIA\nFac: A12345\nFac: 1234567\nResolución 123",
		"2183165 Cuenta 1.234,56\n2183165 Otro 500,00\n2183165 Final 99,99\n9999999 Ajeno 1,00",
	)

	table := TataStrategy{}.Extract(text)

	assert.Equal(t, []Column{ColumnReference, ColumnAmount}, table.Columns)
	assert.Equal(t, []row{{"12345", "1234,56"}, {"1234567", "500,00"}}, rows(t, table))
	assert.Equal(t, Policy{}, table.Policy)
}

func TestTata_NoSection(t *testing.T) {
	table := TataStrategy{}.Extract(document.NewText("2183165 Cuenta 1.234,56"))
	assert.Empty(t, table.Records)
}

func TestBowerey(t *testing.T) {
	text := document.NewText(
		"Glosa 12345z9AB\nItem 1,00 2,00 3,50\nItem 10,00 20,00",
		"glosa 654321z\nItem 1.000,00 2,00 300,25\nglosa 777777z",
	)

	table := BoweryStrategy{}.Extract(text)

	assert.Equal(t, []row{{"12345", "3,50"}, {"654321", "300,25"}}, rows(t, table))
}

func TestGDU(t *testing.T) {
	text := document.NewText(
		"12345-6 C.ASU Anticipo 1500,00\n" +
			"1234567-8 Fact 1000,00 10,00 5,00\n" +
			"2345678-1 Fact 100,00 1,00 2,00\n" +
			"123456-7 Fact 50,00 0,00 1,00\n" +
			"98765-4 Devol -20,00 0,00 0,00\n" +
			"55555-5 Fact 10,00 2,00\n" +
			"no reference 10,00",
	)

	table := GDUStrategy{}.Extract(text)

	assert.Equal(t, Policy{KeepReferences: true, AppendTotal: true}, table.Policy)
	assert.True(t, table.Has(ColumnKind))
	require.Len(t, table.Records, 5)

	tests := []struct {
		ref, amount, discount, withholding, kind string
	}{
		{"12345-6", "1500,00", "0,00", "0,00", "C.ASU"},
		{"B-1234567", "1000,00", "10,00", "5,00", "FA"},
		{"2345678", "100,00", "1,00", "2,00", "FA"},
		{"A-0123456", "50,00", "0,00", "1,00", "FA"},
		{"98765-4", "-20,00", "0,00", "0,00", "NC"},
	}
	for i, tt := range tests {
		r := table.Records[i]
		assert.Equal(t, tt.ref, r.Reference)
		assert.Equal(t, tt.amount, r.Amount.String())
		assert.Equal(t, tt.discount, r.Discount.String())
		assert.Equal(t, tt.withholding, r.Withholding.String())
		assert.Equal(t, tt.kind, r.Kind)
	}
}

func TestInvoiceReference(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12345678-1", "B-12345678"},
		{"1234567-1", "B-1234567"},
		{"7654321-1", "7654321"},
		{"123456-1", "A-0123456"},
		{"12345-1", "A-0012345"},
		{"1234-1", "1234"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, invoiceReference(tt.in))
		})
	}
}

func TestUsselOps(t *testing.T) {
	text := document.NewText(
		"FAC Nº 12345 por $ 1.500\nRR Nº: 12345 por $ 30,50",
		"NC Nº 67890 por $ -200.75\nFAC Nº 11111 por $ 12",
	)

	table := UsselOpsStrategy{}.Extract(text)

	assert.Equal(t, []Column{ColumnReference, ColumnOriginalAmount, ColumnWithholding}, table.Columns)
	require.Len(t, table.Records, 3)

	assert.Equal(t, "12345", table.Records[0].Reference)
	assert.Equal(t, "1500,00", table.Records[0].OriginalAmount.String())
	assert.Equal(t, "30,50", table.Records[0].Withholding.String())

	assert.Equal(t, "67890", table.Records[1].Reference)
	assert.Equal(t, "-200,75", table.Records[1].OriginalAmount.String())
	assert.False(t, table.Records[1].Withholding.IsSet())

	assert.Equal(t, "11111", table.Records[2].Reference)
	assert.Equal(t, "12,00", table.Records[2].OriginalAmount.String())
}

func TestUsselRes(t *testing.T) {
	text := document.NewText("FA-123456 Cliente $ 1.234,56\nFA- sin ref 10,00\nOtra 55,00")

	table := UsselResStrategy{}.Extract(text)

	assert.Equal(t, []row{{"123456", "1234,56"}}, rows(t, table))
}

func TestMacroOps(t *testing.T) {
	text := document.NewText("Doc A123456 x 1.000,00 -50,00\nA12 10,00\nnothing 1,00")

	table := MacroOpsStrategy{}.Extract(text)

	assert.Equal(t, []row{{"A123456", "-50,00"}}, rows(t, table))
}

func TestMacroRes(t *testing.T) {
	text := document.NewText(
		"A1234567 100,00 10,00\nA1999999 200,00 20,00",
		"A2123456 100,00 5,00\nA1555555 solo 1,00",
	)

	table := MacroResStrategy{}.Extract(text)

	require.Len(t, table.Records, 3)
	assert.Equal(t, []row{{"A1234567", "100,00"}, {"A1999999", "200,00"}, {"A2123456", "122,00"}}, rows(t, table))
	assert.False(t, *table.Records[0].Adjusted)
	assert.True(t, *table.Records[2].Adjusted)
	assert.Equal(t, "5,00", table.Records[2].Withholding.String())
}

func TestMacroRes_TieGoesToFirstPrefix(t *testing.T) {
	text := document.NewText("A2111111 1,00 1,00\nA1222222 1,00 1,00")

	table := MacroResStrategy{}.Extract(text)

	require.Len(t, table.Records, 2)
	assert.False(t, *table.Records[0].Adjusted)
	assert.True(t, *table.Records[1].Adjusted)
	assert.Equal(t, "1,22", table.Records[1].Amount.String())
}

func TestMacroRes_NoReferences(t *testing.T) {
	table := MacroResStrategy{}.Extract(document.NewText("nothing here 1,00 2,00"))
	assert.Empty(t, table.Records)
	assert.Len(t, table.Columns, 4)
}

func TestPolakof(t *testing.T) {
	text := document.NewText("Documento A123: 1,234.56 UYU\nDocumento 4567: -10.00 UYU\nDocumento 99: 1.2.3 UYU")

	table := PolakofStrategy{}.Extract(text)

	assert.Equal(t, []row{{"A123", "1234,56"}, {"4567", "-10,00"}}, rows(t, table))
	assert.Equal(t, 1, table.Skipped)
}

func TestHenderson(t *testing.T) {
	text := document.NewText(
		"Fecha Tipo Numero Detalle Importe\n" +
			"01/02 FAC 123456 Servicio 1,234.50\n" +
			"02/02 NC ABC x 10.00\n" +
			"short 1",
	)

	table := HendersonStrategy{}.Extract(text)

	assert.Equal(t, []row{{"123456", "1234,50"}}, rows(t, table))
}
