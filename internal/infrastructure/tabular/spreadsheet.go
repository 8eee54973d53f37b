package tabular

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

// SpreadsheetReader reads the first worksheet of an xlsx workbook.
type SpreadsheetReader struct{}

func NewSpreadsheetReader() *SpreadsheetReader {
	return &SpreadsheetReader{}
}

func (r *SpreadsheetReader) ReadTable(ctx context.Context, filename string, body io.Reader) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	book, err := excelize.OpenReader(body)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	records, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return buildTable(filename, sheets[0], records), nil
}
