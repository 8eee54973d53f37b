package httpadapter

import (
	"context"
	"io"
	"sync"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

type ingestorFake struct {
	mu       sync.Mutex
	calls    []string
	bodies   []string
	opts     []domain.IngestOptions
	report   *domain.IngestReport
	err      error
	sheetURL string
}

func (f *ingestorFake) record(kind, filename string, body io.Reader, opts domain.IngestOptions) (*domain.IngestReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, _ := io.ReadAll(body)
	f.calls = append(f.calls, kind+":"+filename)
	f.bodies = append(f.bodies, string(raw))
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *ingestorFake) IngestSpreadsheet(_ context.Context, filename string, body io.Reader, opts domain.IngestOptions) (*domain.IngestReport, error) {
	return f.record("xlsx", filename, body, opts)
}

func (f *ingestorFake) IngestCSV(_ context.Context, filename string, body io.Reader, opts domain.IngestOptions) (*domain.IngestReport, error) {
	return f.record("csv", filename, body, opts)
}

func (f *ingestorFake) IngestRemoteCSV(_ context.Context, csvURL string, opts domain.IngestOptions) (*domain.IngestReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sheetURL = csvURL
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

type answererFake struct {
	jobID    string
	question string
	resp     *domain.AnswerResponse
	err      error
}

func (f *answererFake) Answer(_ context.Context, jobID, question string) (*domain.AnswerResponse, error) {
	f.jobID = jobID
	f.question = question
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type feedbackFake struct {
	stored map[string]*domain.Feedback
	err    error
}

func newFeedbackFake() *feedbackFake {
	return &feedbackFake{stored: map[string]*domain.Feedback{}}
}

func (f *feedbackFake) RecordFeedback(_ context.Context, feedback *domain.Feedback) error {
	if f.err != nil {
		return f.err
	}
	feedback.ID = "fb-1"
	f.stored[feedback.ID] = feedback
	return nil
}

func (f *feedbackFake) GetFeedback(_ context.Context, id string) (*domain.Feedback, error) {
	feedback, ok := f.stored[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get feedback", io.EOF)
	}
	return feedback, nil
}

type schedulerFake struct {
	requests []domain.SheetIngestRequest
	err      error
}

func (f *schedulerFake) PublishSheetIngest(_ context.Context, request domain.SheetIngestRequest) error {
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, request)
	return nil
}

type historyFake struct {
	messages []domain.ChatMessage
	cleared  string
	err      error
}

func (f *historyFake) ChatHistory(_ context.Context, jobID string) ([]domain.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.ChatMessage{}
	for _, m := range f.messages {
		if m.JobID == jobID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *historyFake) ClearChatHistory(_ context.Context, jobID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.cleared = jobID
	return int64(len(f.messages)), nil
}
