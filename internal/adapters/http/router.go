package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/applicant-rag/internal/config"
	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
	"github.com/kirillkom/applicant-rag/internal/observability/metrics"
)

const (
	serviceName          = "hrrag-api"
	defaultBackpressure  = 250 * time.Millisecond
	multipartMemoryBytes = 8 << 20
)

type Router struct {
	ingestor  ports.ApplicationIngestor
	answerer  ports.ApplicantQuestionAnswerer
	feedback  ports.FeedbackRecorder
	scheduler ports.SheetIngestScheduler
	history   ports.ChatHistoryReader
	metrics   *metrics.HTTPServerMetrics

	defaultDiagnostics bool
	maxUploadBytes     int64
	rateLimitRPS       float64
	rateLimitBurst     int
	maxInFlight        int

	now func() time.Time
}

type RouterOption func(*Router)

// WithSheetScheduler enables async remote sheet ingestion.
func WithSheetScheduler(scheduler ports.SheetIngestScheduler) RouterOption {
	return func(rt *Router) {
		rt.scheduler = scheduler
	}
}

// WithChatHistory serves the per-job question history.
func WithChatHistory(history ports.ChatHistoryReader) RouterOption {
	return func(rt *Router) {
		rt.history = history
	}
}

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func NewRouter(
	cfg config.Config,
	ingestor ports.ApplicationIngestor,
	answerer ports.ApplicantQuestionAnswerer,
	feedback ports.FeedbackRecorder,
	opts ...RouterOption,
) *Router {
	maxUpload := int64(cfg.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	rt := &Router{
		ingestor:           ingestor,
		answerer:           answerer,
		feedback:           feedback,
		defaultDiagnostics: cfg.RAGDiagnostics,
		maxUploadBytes:     maxUpload,
		rateLimitRPS:       cfg.APIRateLimitRPS,
		rateLimitBurst:     cfg.APIRateLimitBurst,
		maxInFlight:        cfg.APIMaxInFlight,
		now:                func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("POST /v1/jobs/{jobID}/applications/xlsx", rt.uploadSpreadsheet)
	mux.HandleFunc("POST /v1/jobs/{jobID}/applications/csv", rt.uploadCSV)
	mux.HandleFunc("POST /v1/jobs/{jobID}/applications/sheet", rt.ingestSheet)
	mux.HandleFunc("POST /v1/jobs/{jobID}/ask", rt.ask)
	mux.HandleFunc("GET /v1/jobs/{jobID}/chat", rt.chatHistory)
	mux.HandleFunc("DELETE /v1/jobs/{jobID}/chat", rt.clearChatHistory)
	mux.HandleFunc("POST /v1/jobs/{jobID}/feedback", rt.createFeedback)
	mux.HandleFunc("GET /v1/feedback/{feedbackID}", rt.getFeedback)

	var handler http.Handler = mux
	handler = backpressureWithReject(handler, rt.maxInFlight, defaultBackpressure, rt.rejected("backpressure"))
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.rejected("rate_limit"))
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return handler
}

func (rt *Router) rejected(reason string) func() {
	return func() {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(serviceName, reason)
		}
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadSpreadsheet(w http.ResponseWriter, r *http.Request) {
	rt.upload(w, r, "xlsx")
}

func (rt *Router) uploadCSV(w http.ResponseWriter, r *http.Request) {
	rt.upload(w, r, "csv")
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request, kind string) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	opts, err := rt.ingestOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := filepath.Base(fileHeader.Filename)
	var report *domain.IngestReport
	switch kind {
	case "xlsx":
		report, err = rt.ingestor.IngestSpreadsheet(r.Context(), filename, file, opts)
	default:
		report, err = rt.ingestor.IngestCSV(r.Context(), filename, file, opts)
	}
	rt.recordIngest(kind, report, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) ingestOptions(r *http.Request) (domain.IngestOptions, error) {
	opts := domain.IngestOptions{
		DefaultJobID: strings.TrimSpace(r.PathValue("jobID")),
		Diagnostics:  rt.defaultDiagnostics,
	}
	query := r.URL.Query()
	if raw := query.Get("allowDuplicates"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, domain.WrapError(domain.ErrInvalidInput, "parse allowDuplicates", err)
		}
		opts.AllowDuplicates = v
	}
	if raw := query.Get("diagnostics"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, domain.WrapError(domain.ErrInvalidInput, "parse diagnostics", err)
		}
		opts.Diagnostics = v
	}
	return opts, nil
}

type sheetRequest struct {
	CSVURL          string `json:"csv_url"`
	AllowDuplicates bool   `json:"allow_duplicates"`
	Diagnostics     *bool  `json:"diagnostics"`
	Async           bool   `json:"async"`
}

func (rt *Router) ingestSheet(w http.ResponseWriter, r *http.Request) {
	var req sheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.CSVURL) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "csv_url is required"})
		return
	}

	jobID := strings.TrimSpace(r.PathValue("jobID"))
	diagnostics := rt.defaultDiagnostics
	if req.Diagnostics != nil {
		diagnostics = *req.Diagnostics
	}

	if req.Async {
		if rt.scheduler == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async sheet ingestion is not configured"})
			return
		}
		request := domain.SheetIngestRequest{
			JobID:           jobID,
			CSVURL:          strings.TrimSpace(req.CSVURL),
			AllowDuplicates: req.AllowDuplicates,
			Diagnostics:     diagnostics,
			RequestedAt:     rt.now(),
		}
		if err := rt.scheduler.PublishSheetIngest(r.Context(), request); err != nil {
			writeError(w, domain.WrapError(domain.ErrTemporary, "queue sheet ingest", err))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "queued",
			"job_id":  jobID,
			"csv_url": request.CSVURL,
		})
		return
	}

	report, err := rt.ingestor.IngestRemoteCSV(r.Context(), req.CSVURL, domain.IngestOptions{
		DefaultJobID:    jobID,
		AllowDuplicates: req.AllowDuplicates,
		Diagnostics:     diagnostics,
	})
	rt.recordIngest("sheet", report, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Answer(r.Context(), strings.TrimSpace(r.PathValue("jobID")), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RAG().RecordAnswer(len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat history is not configured"})
		return
	}
	messages, err := rt.history.ChatHistory(r.Context(), r.PathValue("jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (rt *Router) clearChatHistory(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat history is not configured"})
		return
	}
	deleted, err := rt.history.ClearChatHistory(r.Context(), r.PathValue("jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

type feedbackRequest struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Helpful  *bool           `json:"helpful"`
	Rating   *int            `json:"rating"`
	Notes    string          `json:"notes"`
	Sources  []domain.Source `json:"sources"`
}

func (rt *Router) createFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	feedback := &domain.Feedback{
		JobID:    strings.TrimSpace(r.PathValue("jobID")),
		Question: req.Question,
		Answer:   req.Answer,
		Helpful:  req.Helpful,
		Rating:   req.Rating,
		Notes:    req.Notes,
		Sources:  req.Sources,
	}
	if err := rt.feedback.RecordFeedback(r.Context(), feedback); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": feedback.ID})
}

func (rt *Router) getFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, err := rt.feedback.GetFeedback(r.Context(), r.PathValue("feedbackID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

func (rt *Router) recordIngest(source string, report *domain.IngestReport, err error) {
	if rt.metrics == nil {
		return
	}
	if report == nil {
		rt.metrics.RAG().RecordIngest(source, 0, 0, err)
		return
	}
	rt.metrics.RAG().RecordIngest(source, report.Inserted, report.Skipped, err)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": publicMessage(status, err)})
}

// publicMessage hides provider internals behind a generic text on 5xx.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusBadGateway:
		return "upstream model provider failed"
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusServiceUnavailable:
		return fmt.Sprintf("temporarily unavailable: %v", err)
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
