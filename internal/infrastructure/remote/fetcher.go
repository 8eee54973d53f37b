package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/resilience"
)

const defaultMaxBytes int64 = 32 << 20

// Fetcher downloads CSV exports such as
// https://docs.google.com/spreadsheets/d/{id}/export?format=csv.
type Fetcher struct {
	httpClient *http.Client
	executor   *resilience.Executor
	maxBytes   int64
}

type Options struct {
	Timeout            time.Duration
	MaxBytes           int64
	ResilienceExecutor *resilience.Executor
}

func New(options Options) *Fetcher {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBytes := options.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		maxBytes:   maxBytes,
	}
}

type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("remote csv status: %s", e.Status)
	}
	return fmt.Sprintf("remote csv status: %s: %s", e.Status, strings.TrimSpace(e.Body))
}

// Fetch returns the whole response body. A body over the configured size is
// rejected as invalid input rather than truncated. The caller must close it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch remote csv", fmt.Errorf("unsupported url %q", rawURL))
	}

	body, err := resilience.Do(ctx, f.executor, "remote_fetch", func(ctx context.Context) (io.ReadCloser, error) {
		return f.get(ctx, u.String())
	}, classifyFetchError)
	if err != nil {
		return nil, wrapFetchError(err)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote csv request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read remote csv: %w", err)
	}
	if int64(len(raw)) > f.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch remote csv", fmt.Errorf("remote csv exceeds %d bytes", f.maxBytes))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func classifyFetchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		retryable := resilience.IsRetryableHTTPStatus(statusErr.StatusCode)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// wrapFetchError maps upstream 4xx to invalid input (unshared or wrong sheet)
// and everything transient to a temporary failure.
func wrapFetchError(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !resilience.IsRetryableHTTPStatus(statusErr.StatusCode) {
		return domain.WrapError(domain.ErrInvalidInput, "fetch remote csv", err)
	}
	if classifyFetchError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "fetch remote csv", err)
	}
	return err
}
