package tabular

import (
	"fmt"
	"strings"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

const blankHeader = "__EMPTY"

// uniqueHeaders names blank columns __EMPTY, __EMPTY_1, ... and suffixes
// repeated names with _1, _2 so every cell keeps its own header.
func uniqueHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for idx, header := range raw {
		name := strings.TrimSpace(header)
		if name == "" {
			name = blankHeader
		}
		base := name
		for {
			if _, taken := seen[name]; !taken {
				break
			}
			seen[base]++
			name = fmt.Sprintf("%s_%d", base, seen[base])
		}
		seen[name] = 0
		out[idx] = name
	}
	return out
}

// buildTable turns raw records into rows keyed by the first record. Records
// without any value are dropped; whitespace-only values are kept so the
// pipeline can report them.
func buildTable(source, sheet string, records [][]string) *domain.Table {
	table := &domain.Table{Source: source, Sheet: sheet, Rows: []domain.Row{}}
	if len(records) == 0 {
		return table
	}

	width := 0
	for _, record := range records {
		width = max(width, len(record))
	}
	rawHeaders := make([]string, width)
	copy(rawHeaders, records[0])
	headers := uniqueHeaders(rawHeaders)

	for _, record := range records[1:] {
		if isEmptyRecord(record) {
			continue
		}
		row := make(domain.Row, 0, width)
		for col, header := range headers {
			value := ""
			if col < len(record) {
				value = record[col]
			}
			row = append(row, domain.Cell{Header: header, Value: value})
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func isEmptyRecord(record []string) bool {
	for _, value := range record {
		if value != "" {
			return false
		}
	}
	return true
}
