package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/applicant-rag/internal/config"
	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/observability/metrics"
)

func TestAskReturnsAnswer(t *testing.T) {
	answerer := &answererFake{resp: &domain.AnswerResponse{
		Answer:  "Jane has Go experience.",
		Sources: []domain.Source{{ApplicantName: "Jane", ApplicantEmail: "jane@example.com", Snippet: "Name: Jane..."}},
	}}
	m := metrics.NewHTTPServerMetrics(serviceName)
	handler := NewRouter(config.Config{}, &ingestorFake{}, answerer, newFeedbackFake(), WithMetrics(m)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/ask", strings.NewReader(`{"question":"Who knows Go?"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if answerer.jobID != "job-1" || answerer.question != "Who knows Go?" {
		t.Fatalf("unexpected call job=%q question=%q", answerer.jobID, answerer.question)
	}
	var resp domain.AnswerResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].ApplicantEmail != "jane@example.com" {
		t.Fatalf("unexpected sources %+v", resp.Sources)
	}

	scrape := httptest.NewRecorder()
	handler.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), `hrrag_rag_answers_total{outcome="answered",service="hrrag-api"} 1`) {
		t.Fatalf("expected answer metric, got\n%s", scrape.Body.String())
	}
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	answerer := &answererFake{}
	handler := NewRouter(config.Config{}, &ingestorFake{}, answerer, newFeedbackFake()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/ask", strings.NewReader(`{"question":"   "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if answerer.question != "" {
		t.Fatalf("answerer must not be called")
	}
}

func TestAskMapsErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("bad")), http.StatusBadRequest},
		{"config", domain.WrapError(domain.ErrConfig, "chat", errors.New("missing key")), http.StatusInternalServerError},
		{"temporary", domain.WrapError(domain.ErrTemporary, "retrieve", errors.New("db down")), http.StatusServiceUnavailable},
		{"provider", &domain.ProviderError{Kind: domain.ErrProviderHTTP, Operation: "chat", StatusCode: 500}, http.StatusBadGateway},
		{"network", &domain.ProviderError{Kind: domain.ErrNetwork, Operation: "embed", Err: errors.New("dial")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(config.Config{}, &ingestorFake{}, &answererFake{err: tc.err}, newFeedbackFake()).Handler()
			req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/ask", strings.NewReader(`{"question":"q"}`))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestProviderErrorBodyIsNotExposed(t *testing.T) {
	err := &domain.ProviderError{Kind: domain.ErrProviderHTTP, Operation: "chat", URL: "https://x?key=REDACTED", Body: "quota details"}
	handler := NewRouter(config.Config{}, &ingestorFake{}, &answererFake{err: err}, newFeedbackFake()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/ask", strings.NewReader(`{"question":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if strings.Contains(res.Body.String(), "quota details") {
		t.Fatalf("provider body leaked: %s", res.Body.String())
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	handler := NewRouter(config.Config{}, &ingestorFake{}, &answererFake{}, newFeedbackFake()).Handler()

	payload := `{"question":"Who knows Go?","answer":"Jane","helpful":true,"rating":5}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/feedback", strings.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}

	get := httptest.NewRecorder()
	handler.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/v1/feedback/fb-1", nil))
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.Code)
	}
	var stored domain.Feedback
	if err := json.NewDecoder(get.Body).Decode(&stored); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if stored.JobID != "job-1" || stored.Rating == nil || *stored.Rating != 5 {
		t.Fatalf("unexpected feedback %+v", stored)
	}
}

func TestGetFeedbackReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(config.Config{}, &ingestorFake{}, &answererFake{}, newFeedbackFake()).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/feedback/missing", nil))

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestFeedbackValidationMapsTo400(t *testing.T) {
	feedback := newFeedbackFake()
	feedback.err = domain.WrapError(domain.ErrInvalidInput, "record feedback", errors.New("rating 9 out of range 1..5"))
	handler := NewRouter(config.Config{}, &ingestorFake{}, &answererFake{}, feedback).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/feedback", strings.NewReader(`{"question":"q","answer":"a","rating":9}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
