package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

var (
	tataSectionRe    = regexp.MustCompile(`(?s)INFORMACIÓN DE REFERENCIA(.+?)Resolución`)
	tataReferenceRe  = regexp.MustCompile(`Fac:\s*A?(\d{5,8})`)
	tataAmountLineRe = regexp.MustCompile(`^\s*2183165\s+`)
	tataAmountRe     = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})*,\d{2}`)
)

// TataStrategy reads references from the "INFORMACIÓN DE REFERENCIA"
// section and amounts from the last column of lines starting with the
// vendor account code, then pairs them by position.
type TataStrategy struct{}

func (TataStrategy) ID() ID { return Tata }

func (TataStrategy) Extract(text document.Text) Table {
	joined := strings.Join(text.Pages, "\n")

	var refs []string
	if section := tataSectionRe.FindStringSubmatch(joined); section != nil {
		for _, line := range strings.Split(section[1], "\n") {
			if m := tataReferenceRe.FindStringSubmatch(line); m != nil {
				refs = append(refs, strings.TrimSpace(m[1]))
			}
		}
	}

	var amounts []decimal.Decimal
	skipped := 0
	for _, line := range text.Lines() {
		if !tataAmountLineRe.MatchString(line) {
			continue
		}
		fields := strings.Fields(line)
		last := fields[len(fields)-1]
		if !tataAmountRe.MatchString(last) {
			continue
		}
		d, err := money.ParseLocale(last)
		if err != nil {
			skipped++
			continue
		}
		amounts = append(amounts, d)
	}

	return Table{
		Columns: []Column{ColumnReference, ColumnAmount},
		Records: pairRecords(refs, amounts),
		Skipped: skipped,
	}
}
