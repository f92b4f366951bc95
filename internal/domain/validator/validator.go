// Package validator checks a normalized table against the reconciliation
// rules and renders the audit report written next to the spreadsheet.
package validator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/normalizer"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

// NoWarnings is the only finding line of a clean report.
const NoWarnings = "Sin advertencias detectadas."

// maxReferenceDigits is the longest reference number accepted without a
// finding, even though the normalizer prefixes 8 digit references.
const maxReferenceDigits = 7

var totalTolerance = decimal.New(1, -2)

// Check identifies the rule a finding violates.
type Check string

const (
	CheckNegative  Check = "negative"
	CheckDuplicate Check = "duplicate"
	CheckLength    Check = "length"
	CheckTotal     Check = "total"
	CheckMissing   Check = "missing"
)

// Finding is one rule violation.
type Finding struct {
	Check   Check
	Message string
}

// Report is the ordered outcome of validating one table.
type Report struct {
	Source   string
	Findings []Finding
}

// Clean reports whether no finding was raised.
func (r Report) Clean() bool { return len(r.Findings) == 0 }

// Lines renders the report: a header naming the source document followed by
// one finding per line, or the no-warnings line.
func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Findings)+1)
	lines = append(lines, fmt.Sprintf("[Validación de %s]", r.Source))
	if r.Clean() {
		return append(lines, NoWarnings)
	}
	for _, f := range r.Findings {
		lines = append(lines, f.Message)
	}
	return lines
}

// String returns the report file content.
func (r Report) String() string {
	return strings.Join(r.Lines(), "\n")
}

// ReportName is the report file name for a document stem.
func ReportName(stem string) string {
	return stem + "_validation.txt"
}

// Validate runs every check over table. Checks are independent; a cell that
// does not parse only skips that cell (or column) for the check at hand.
func Validate(table normalizer.Table, source string) Report {
	r := Report{Source: source}
	has := make(map[extraction.Column]bool, len(table.Columns))
	for _, c := range table.Columns {
		has[c] = true
	}

	if has[extraction.ColumnReference] && has[extraction.ColumnAmount] {
		r.checkNegative(table)
	}
	if has[extraction.ColumnReference] {
		r.checkDuplicates(table)
		r.checkLength(table)
		r.checkTotals(table, has)
	}
	r.checkMissing(table)

	return r
}

func (r *Report) add(check Check, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Check: check, Message: fmt.Sprintf(format, args...)})
}

// checkNegative flags A-0 series references (but not A-00) carrying a
// negative amount.
func (r *Report) checkNegative(table normalizer.Table) {
	for _, row := range table.Rows {
		ref := strings.TrimSpace(row.Reference())
		if !strings.HasPrefix(ref, "A-0") || strings.HasPrefix(ref, "A-00") {
			continue
		}
		amount, ok := parseCell(row[extraction.ColumnAmount])
		if ok && amount.IsNegative() {
			r.add(CheckNegative, "Referencia %s tiene monto negativo: %s", ref, amount.StringFixed(2))
		}
	}
}

// checkDuplicates flags references seen twice or more, in order of first
// appearance. Blank references are left to checkMissing.
func (r *Report) checkDuplicates(table normalizer.Table) {
	counts := make(map[string]int)
	var order []string
	for _, row := range table.Rows {
		ref := strings.TrimSpace(row.Reference())
		if ref == "" || ref == normalizer.TotalReference {
			continue
		}
		if counts[ref] == 0 {
			order = append(order, ref)
		}
		counts[ref]++
	}
	for _, ref := range order {
		if counts[ref] >= 2 {
			r.add(CheckDuplicate, "Referencia duplicada: %s aparece %d veces", ref, counts[ref])
		}
	}
}

func (r *Report) checkLength(table normalizer.Table) {
	for _, row := range table.Rows {
		ref := row.Reference()
		digits := 0
		for _, c := range ref {
			if unicode.IsDigit(c) {
				digits++
			}
		}
		if digits > maxReferenceDigits {
			r.add(CheckLength, "Referencia con más de %d dígitos: %s", maxReferenceDigits, ref)
		}
	}
}

// checkTotals compares the first TOTAL row with the sum of the data rows for
// each summed column the table declares.
func (r *Report) checkTotals(table normalizer.Table, has map[extraction.Column]bool) {
	var total normalizer.Row
	for _, row := range table.Rows {
		if row.IsTotal() {
			total = row
			break
		}
	}
	if total == nil {
		return
	}

	data := table.DataRows()
	for _, col := range []extraction.Column{extraction.ColumnAmount, extraction.ColumnDiscount, extraction.ColumnWithholding} {
		if !has[col] {
			continue
		}
		declared, ok := parseCell(total[col])
		if !ok {
			continue
		}
		sum, ok := sumColumn(data, col)
		if !ok {
			continue
		}
		if sum.Sub(declared).Abs().GreaterThan(totalTolerance) {
			r.add(CheckTotal, "Total en '%s' incorrecto: declarado %s vs suma real %s",
				col, declared.StringFixed(2), sum.StringFixed(2))
		}
	}
}

// checkMissing flags rows without a reference or without any parseable
// amount. Row numbers match the spreadsheet: the header is row 1.
func (r *Report) checkMissing(table normalizer.Table) {
	for i, row := range table.Rows {
		ref := strings.TrimSpace(row.Reference())
		refOK := ref != "" && !strings.EqualFold(ref, "nan")

		_, amountOK := parseCell(row[extraction.ColumnAmount])
		if !amountOK {
			_, amountOK = parseCell(row[extraction.ColumnOriginalAmount])
		}

		if !refOK || !amountOK {
			r.add(CheckMissing, "Fila %d con campos faltantes (Referencia o Monto/Monto Original)", i+2)
		}
	}
}

// sumColumn adds the non-blank cells of col. It fails when any of them does
// not parse.
func sumColumn(rows []normalizer.Row, col extraction.Column) (decimal.Decimal, bool) {
	sum := decimal.Zero
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		d, ok := parseCell(cell)
		if !ok {
			return decimal.Zero, false
		}
		sum = sum.Add(d)
	}
	return sum, true
}

func parseCell(cell string) (decimal.Decimal, bool) {
	d, err := money.ParseLocale(cell)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
