package ports

import (
	"context"
	"io"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel produces generated text for a fully composed prompt.
type ChatModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChunkStore persists application chunks and searches them by similarity.
type ChunkStore interface {
	Insert(ctx context.Context, chunk *domain.ApplicationChunk) error
	ExistsApplicant(ctx context.Context, jobID, applicantEmail string) (bool, error)
	SearchSimilar(ctx context.Context, jobID string, queryVector []float32, limit int) ([]domain.RetrievedChunk, error)
}

// FeedbackStore persists answer feedback.
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, feedback *domain.Feedback) error
	GetFeedback(ctx context.Context, id string) (*domain.Feedback, error)
}

// ChatHistoryStore keeps the question and answer turns of each job.
type ChatHistoryStore interface {
	AppendChatMessages(ctx context.Context, messages ...*domain.ChatMessage) error
	ListChatMessages(ctx context.Context, jobID string) ([]domain.ChatMessage, error)
	DeleteChatMessages(ctx context.Context, jobID string) (int64, error)
}

// TableReader parses a tabular source into ordered rows.
type TableReader interface {
	ReadTable(ctx context.Context, filename string, body io.Reader) (*domain.Table, error)
}

// RemoteFetcher downloads a remote document.
type RemoteFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// StagingStorage holds transient local copies of sources.
type StagingStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// ReportPublisher announces finished ingestion runs.
type ReportPublisher interface {
	PublishIngestReport(ctx context.Context, report domain.IngestReport) error
}

// SheetIngestQueue publishes and consumes remote sheet ingestion requests.
type SheetIngestQueue interface {
	PublishSheetIngest(ctx context.Context, request domain.SheetIngestRequest) error
	SubscribeSheetIngest(ctx context.Context, handler func(context.Context, domain.SheetIngestRequest) error) error
}
