package spreadsheet

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/normalizer"
)

// CSVName is the CSV sidecar file name for a document stem.
func CSVName(stem string) string {
	return stem + "_output.csv"
}

// csvRecord is the sidecar layout. Every canonical column is present so the
// file shape does not depend on the vendor.
type csvRecord struct {
	Reference      string `csv:"Referencia"`
	Amount         string `csv:"Monto"`
	Discount       string `csv:"Descuento"`
	Withholding    string `csv:"Retención"`
	Kind           string `csv:"Tipo"`
	OriginalAmount string `csv:"Monto Original"`
	Adjusted       string `csv:"Ajustado"`
}

// EncodeCSV renders table as CSV with a fixed header.
func EncodeCSV(table normalizer.Table) (*bytes.Buffer, error) {
	records := make([]*csvRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		records = append(records, &csvRecord{
			Reference:      row[extraction.ColumnReference],
			Amount:         row[extraction.ColumnAmount],
			Discount:       row[extraction.ColumnDiscount],
			Withholding:    row[extraction.ColumnWithholding],
			Kind:           row[extraction.ColumnKind],
			OriginalAmount: row[extraction.ColumnOriginalAmount],
			Adjusted:       row[extraction.ColumnAdjusted],
		})
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(&records, &buf); err != nil {
		return nil, fmt.Errorf("failed to encode CSV: %w", err)
	}
	return &buf, nil
}
