package usecase

import (
	"strings"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

const (
	jobToken   = "job"
	emailToken = "email"
	nameToken  = "name"
)

// NormalizeRow maps a schema-free row onto canonical applicant fields.
//
// Headers are matched case-insensitively by substring, and the first header in
// column order containing the token wins. A header such as "Job Title" placed
// before "Job ID" is therefore taken as the job column.
func NormalizeRow(row domain.Row, defaultJobID string) (domain.NormalizedRow, error) {
	jobID := matchedValue(row, jobToken)
	if jobID == "" {
		jobID = strings.TrimSpace(defaultJobID)
	}
	if jobID == "" {
		return domain.NormalizedRow{}, domain.NewValidationError(domain.SkipMissingJobID)
	}

	content := rowContent(row)
	if strings.TrimSpace(content) == "" {
		return domain.NormalizedRow{}, domain.NewValidationError(domain.SkipEmptyContent)
	}

	return domain.NormalizedRow{
		JobID:          jobID,
		ApplicantEmail: matchedValue(row, emailToken),
		ApplicantName:  matchedValue(row, nameToken),
		Content:        content,
	}, nil
}

func matchCell(row domain.Row, token string) (domain.Cell, bool) {
	for _, cell := range row {
		if strings.Contains(strings.ToLower(cell.Header), token) {
			return cell, true
		}
	}
	return domain.Cell{}, false
}

func matchedValue(row domain.Row, token string) string {
	cell, ok := matchCell(row, token)
	if !ok {
		return ""
	}
	return strings.TrimSpace(cell.Value)
}

func rowContent(row domain.Row) string {
	lines := make([]string, 0, len(row))
	for _, cell := range row {
		if strings.TrimSpace(cell.Value) == "" {
			continue
		}
		lines = append(lines, cell.Header+": "+cell.Value)
	}
	return strings.Join(lines, "\n")
}
