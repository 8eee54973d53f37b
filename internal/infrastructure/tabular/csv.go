package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

// csvSheetName is what a spreadsheet tool calls the single sheet of a CSV.
const csvSheetName = "Sheet1"

type CSVReader struct{}

func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

func (r *CSVReader) ReadTable(ctx context.Context, filename string, body io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		records = append(records, record)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return buildTable(filename, csvSheetName, records), nil
}
