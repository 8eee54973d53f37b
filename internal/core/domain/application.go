package domain

import "time"

// Cell is one header/value pair of a source row.
type Cell struct {
	Header string `json:"header"`
	Value  string `json:"value"`
}

// Row keeps cells in source column order; header matching depends on it.
type Row []Cell

// Table is a parsed tabular source: the first sheet of a workbook or a CSV file.
type Table struct {
	Source string
	Sheet  string
	Rows   []Row
}

type NormalizedRow struct {
	JobID          string
	ApplicantEmail string
	ApplicantName  string
	Content        string
}

type ApplicationChunk struct {
	ID             string         `json:"id"`
	JobID          string         `json:"job_id"`
	ApplicantEmail string         `json:"applicant_email,omitempty"`
	ApplicantName  string         `json:"applicant_name,omitempty"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata"`
	Embedding      []float32      `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
}

type IngestOptions struct {
	DefaultJobID    string
	AllowDuplicates bool
	// Diagnostics attaches the first row errors to the report.
	Diagnostics bool
}

type SkipReason string

const (
	SkipMissingJobID      SkipReason = "missing job_id"
	SkipEmptyContent      SkipReason = "empty content"
	SkipDuplicate         SkipReason = "duplicate"
	SkipDuplicateCheck    SkipReason = "duplicate check failed"
	SkipEmbeddingFailed   SkipReason = "embedding failed"
	SkipPersistenceFailed SkipReason = "persistence failed"
)

const (
	MaxReportedRowErrors      = 5
	DefaultRetrievalLimit     = 8
	DefaultEmbeddingDimension = 768
	NoRowsMessage             = "No rows found in file"
)

type RowError struct {
	Row            int        `json:"row"`
	Reason         SkipReason `json:"reason"`
	Message        string     `json:"message,omitempty"`
	Status         int        `json:"status,omitempty"`
	Body           string     `json:"body,omitempty"`
	URL            string     `json:"url,omitempty"`
	ApplicantName  string     `json:"applicant_name,omitempty"`
	ApplicantEmail string     `json:"applicant_email,omitempty"`
}

type IngestReport struct {
	JobID    string     `json:"job_id,omitempty"`
	Source   string     `json:"source,omitempty"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Total    int        `json:"total"`
	Message  string     `json:"message"`
	Errors   []RowError `json:"errors,omitempty"`
}

// SheetIngestRequest asks a worker to ingest a remote CSV export.
type SheetIngestRequest struct {
	JobID           string    `json:"job_id"`
	CSVURL          string    `json:"csv_url"`
	AllowDuplicates bool      `json:"allow_duplicates"`
	Diagnostics     bool      `json:"diagnostics,omitempty"`
	RequestedAt     time.Time `json:"requested_at"`
}
