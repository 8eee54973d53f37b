package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/observability/metrics"
)

type ingestorFake struct {
	url      string
	opts     domain.IngestOptions
	deadline bool
	err      error
}

func (f *ingestorFake) IngestSpreadsheet(context.Context, string, io.Reader, domain.IngestOptions) (*domain.IngestReport, error) {
	return nil, errors.New("not used")
}

func (f *ingestorFake) IngestCSV(context.Context, string, io.Reader, domain.IngestOptions) (*domain.IngestReport, error) {
	return nil, errors.New("not used")
}

func (f *ingestorFake) IngestRemoteCSV(ctx context.Context, csvURL string, opts domain.IngestOptions) (*domain.IngestReport, error) {
	f.url = csvURL
	f.opts = opts
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestReport{Inserted: 3, Skipped: 1, Total: 4}, nil
}

func scrape(t *testing.T, m *metrics.WorkerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestSheetJobHandlerRunsIngestion(t *testing.T) {
	ingestor := &ingestorFake{}
	m := metrics.NewWorkerMetrics(ServiceName)
	h := NewSheetJobHandler(ingestor, m, time.Minute)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	err := h.Handle(context.Background(), domain.SheetIngestRequest{
		JobID:           "job-5",
		CSVURL:          "https://docs.example.com/a.csv",
		AllowDuplicates: true,
		Diagnostics:     true,
		RequestedAt:     now.Add(-3 * time.Second),
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if ingestor.url != "https://docs.example.com/a.csv" || !ingestor.deadline {
		t.Fatalf("unexpected call url=%q deadline=%v", ingestor.url, ingestor.deadline)
	}
	if ingestor.opts != (domain.IngestOptions{DefaultJobID: "job-5", AllowDuplicates: true, Diagnostics: true}) {
		t.Fatalf("unexpected options %+v", ingestor.opts)
	}

	body := scrape(t, m)
	for _, want := range []string{
		`hrrag_worker_sheet_jobs_total{service="hrrag-worker",status="success"} 1`,
		`hrrag_worker_queue_lag_seconds_sum{service="hrrag-worker"} 3`,
		`hrrag_ingest_rows_total{result="inserted",service="hrrag-worker",source="sheet"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in\n%s", want, body)
		}
	}
}

func TestSheetJobHandlerReportsFailure(t *testing.T) {
	ingestor := &ingestorFake{err: domain.WrapError(domain.ErrTemporary, "fetch", errors.New("503"))}
	m := metrics.NewWorkerMetrics(ServiceName)
	h := NewSheetJobHandler(ingestor, m, 0)

	err := h.Handle(context.Background(), domain.SheetIngestRequest{JobID: "job-5", CSVURL: "https://x/a.csv"})
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !strings.Contains(scrape(t, m), `hrrag_worker_sheet_jobs_total{service="hrrag-worker",status="error"} 1`) {
		t.Fatalf("expected failed job metric")
	}
}

func TestSheetJobHandlerUsesDefaultJob(t *testing.T) {
	ingestor := &ingestorFake{}
	h := NewSheetJobHandler(ingestor, nil, time.Minute).WithDefaultJobID(" backend-2026 ")

	if err := h.Handle(context.Background(), domain.SheetIngestRequest{CSVURL: "https://x/a.csv"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if ingestor.opts.DefaultJobID != "backend-2026" {
		t.Fatalf("expected default job, got %+v", ingestor.opts)
	}

	if err := h.Handle(context.Background(), domain.SheetIngestRequest{JobID: "job-5", CSVURL: "https://x/a.csv"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if ingestor.opts.DefaultJobID != "job-5" {
		t.Fatalf("queued job id must win, got %+v", ingestor.opts)
	}
}
