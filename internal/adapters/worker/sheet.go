package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
	"github.com/kirillkom/applicant-rag/internal/observability/metrics"
)

const ServiceName = "hrrag-worker"

// SheetJobHandler runs one queued remote sheet ingestion with its own deadline.
type SheetJobHandler struct {
	ingestor     ports.ApplicationIngestor
	metrics      *metrics.WorkerMetrics
	timeout      time.Duration
	defaultJobID string
	now          func() time.Time
}

func NewSheetJobHandler(ingestor ports.ApplicationIngestor, m *metrics.WorkerMetrics, timeout time.Duration) *SheetJobHandler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &SheetJobHandler{
		ingestor: ingestor,
		metrics:  m,
		timeout:  timeout,
		now:      time.Now,
	}
}

// WithDefaultJobID sets the job id used for requests queued without one.
func (h *SheetJobHandler) WithDefaultJobID(jobID string) *SheetJobHandler {
	h.defaultJobID = strings.TrimSpace(jobID)
	return h
}

func (h *SheetJobHandler) Handle(ctx context.Context, request domain.SheetIngestRequest) error {
	start := h.now()
	if h.metrics != nil {
		h.metrics.StartJob()
		if !request.RequestedAt.IsZero() {
			h.metrics.ObserveQueueLag(ServiceName, start.Sub(request.RequestedAt))
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	jobID := strings.TrimSpace(request.JobID)
	if jobID == "" {
		jobID = h.defaultJobID
	}

	report, err := h.ingestor.IngestRemoteCSV(jobCtx, request.CSVURL, domain.IngestOptions{
		DefaultJobID:    jobID,
		AllowDuplicates: request.AllowDuplicates,
		Diagnostics:     request.Diagnostics,
	})

	if h.metrics != nil {
		h.metrics.FinishJob(ServiceName, h.now().Sub(start), err)
		inserted, skipped := 0, 0
		if report != nil {
			inserted, skipped = report.Inserted, report.Skipped
		}
		h.metrics.RAG().RecordIngest("sheet", inserted, skipped, err)
	}
	if err != nil {
		return err
	}

	slog.Info("sheet_job_completed",
		"job_id", jobID,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"total", report.Total,
	)
	return nil
}
