package extraction

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

var boweryGlosaRe = regexp.MustCompile(`[Gg]losa\s+(\d{5,8})z(?:\d*[A-Z]*)?`)

// BoweryStrategy collects "Glosa <ref>z" tokens and the withholding (third
// amount) of every line carrying exactly three amounts, page by page, then
// pairs both lists by position.
type BoweryStrategy struct{}

func (BoweryStrategy) ID() ID { return Bowerey }

func (BoweryStrategy) Extract(text document.Text) Table {
	var refs []string
	var amounts []decimal.Decimal
	skipped := 0

	for i, page := range text.Pages {
		for _, m := range boweryGlosaRe.FindAllStringSubmatch(page, -1) {
			refs = append(refs, m[1])
		}
		for _, line := range text.PageLines(i) {
			found := localeAmountRe.FindAllString(line, -1)
			if len(found) != 3 {
				continue
			}
			d, err := money.ParseLocale(found[2])
			if err != nil {
				skipped++
				continue
			}
			amounts = append(amounts, d)
		}
	}

	return Table{
		Columns: []Column{ColumnReference, ColumnAmount},
		Records: pairRecords(refs, amounts),
		Skipped: skipped,
	}
}
