package document

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// TextExtractor returns the page text of a document. maxPages <= 0 reads
// every page.
type TextExtractor interface {
	Text(ctx context.Context, doc Document, maxPages int) (Text, error)
}

// PDFExtractor extracts page text with pdfcpu: the file is validated
// (relaxed), each page content stream is decoded and its text-showing
// operators are replayed into lines.
type PDFExtractor struct {
	conf *model.Configuration
}

// NewPDFExtractor creates a pdfcpu backed TextExtractor.
func NewPDFExtractor() *PDFExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

// Text implements TextExtractor.
func (e *PDFExtractor) Text(ctx context.Context, doc Document, maxPages int) (Text, error) {
	if len(doc.Content) == 0 {
		return Text{}, fmt.Errorf("failed to read %s: empty document", doc.Name())
	}

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(doc.Content), e.conf)
	if err != nil {
		return Text{}, fmt.Errorf("failed to read pdf %s: %w", doc.Name(), err)
	}

	last := pdfCtx.PageCount
	if maxPages > 0 && maxPages < last {
		last = maxPages
	}

	pages := make([]string, 0, last)
	for pageNr := 1; pageNr <= last; pageNr++ {
		if err := ctx.Err(); err != nil {
			return Text{}, err
		}

		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil {
			return Text{}, fmt.Errorf("failed to extract page %d of %s: %w", pageNr, doc.Name(), err)
		}
		if r == nil {
			pages = append(pages, "")
			continue
		}

		data, err := io.ReadAll(r)
		if err != nil {
			return Text{}, fmt.Errorf("failed to read page %d of %s: %w", pageNr, doc.Name(), err)
		}
		pages = append(pages, ContentStreamText(data))
	}

	return Text{Pages: pages}, nil
}
