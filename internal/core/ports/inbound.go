package ports

import (
	"context"
	"io"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

// ApplicationIngestor is the inbound contract for applicant spreadsheet ingestion.
type ApplicationIngestor interface {
	IngestSpreadsheet(ctx context.Context, filename string, body io.Reader, opts domain.IngestOptions) (*domain.IngestReport, error)
	IngestCSV(ctx context.Context, filename string, body io.Reader, opts domain.IngestOptions) (*domain.IngestReport, error)
	IngestRemoteCSV(ctx context.Context, csvURL string, opts domain.IngestOptions) (*domain.IngestReport, error)
}

// ApplicantQuestionAnswerer is the inbound contract for job-scoped RAG answers.
type ApplicantQuestionAnswerer interface {
	Answer(ctx context.Context, jobID, question string) (*domain.AnswerResponse, error)
}

// FeedbackRecorder stores reviewer feedback on generated answers.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, feedback *domain.Feedback) error
	GetFeedback(ctx context.Context, id string) (*domain.Feedback, error)
}

// ChatHistoryReader exposes and clears the per-job question history.
type ChatHistoryReader interface {
	ChatHistory(ctx context.Context, jobID string) ([]domain.ChatMessage, error)
	ClearChatHistory(ctx context.Context, jobID string) (int64, error)
}

// SheetIngestScheduler queues remote sheet ingestion for a worker.
type SheetIngestScheduler interface {
	PublishSheetIngest(ctx context.Context, request domain.SheetIngestRequest) error
}
