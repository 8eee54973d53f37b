package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/resilience"
)

const (
	DefaultAPIBase        = "https://generativelanguage.googleapis.com/v1beta"
	DefaultEmbeddingModel = "text-embedding-004"
	defaultTimeout        = 60 * time.Second
)

type EmbedderConfig struct {
	APIKey       string
	Model        string
	BaseURL      string
	EmbeddingURL string
	Dimension    int
	Timeout      time.Duration
	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	executor   *resilience.Executor
	observe    func(candidate, outcome string)
	onBreaker  func(operation string, to gobreaker.State)
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithExecutor routes provider calls through retry and circuit breaking.
func WithExecutor(executor *resilience.Executor) Option {
	return func(o *options) { o.executor = executor }
}

// WithAttemptObserver reports every chat candidate attempt as success or failure.
func WithAttemptObserver(fn func(candidate, outcome string)) Option {
	return func(o *options) { o.observe = fn }
}

// WithBreakerListener observes the chat cascade's per-candidate breakers.
func WithBreakerListener(fn func(operation string, to gobreaker.State)) Option {
	return func(o *options) { o.onBreaker = fn }
}

func buildOptions(timeout time.Duration, opts []Option) options {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	out := options{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(&out)
	}
	return out
}

// Embedder turns text into fixed-dimension vectors through the Gemini
// embedContent endpoint.
type Embedder struct {
	endpoint  string
	model     string
	dimension int
	limiter   *rate.Limiter
	opts      options
}

func NewEmbedder(cfg EmbedderConfig, opts ...Option) (*Embedder, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, domain.WrapError(domain.ErrConfig, "new gemini embedder", errors.New("GEMINI_API_KEY is required"))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = domain.DefaultEmbeddingDimension
	}

	e := &Embedder{
		endpoint:  EmbeddingURL(cfg.EmbeddingURL, cfg.BaseURL, model, key),
		model:     model,
		dimension: dim,
		opts:      buildOptions(cfg.Timeout, opts),
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e, nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

// EmbeddingURL resolves the embedContent endpoint. An override that does not
// point at an embed path is treated as a host and gets the canonical path.
// The key is added whenever the URL does not already carry one.
func EmbeddingURL(override, base, model, key string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	fallback := fmt.Sprintf("%s/models/%s:embedContent?key=%s", base, model, url.QueryEscape(key))

	override = strings.TrimSpace(override)
	if override == "" {
		return fallback
	}
	u, err := url.Parse(override)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fallback
	}
	if u.Path == "" || u.Path == "/" || !strings.Contains(u.Path, "embed") {
		u.Path = "/v1beta/models/" + model + ":embedContent"
		u.RawPath = ""
	}
	return withKey(u.String(), key)
}

// Normalize returns exactly dim elements, zero padded or truncated.
func Normalize(raw []float32, dim int) []float32 {
	if dim < 0 {
		dim = 0
	}
	out := make([]float32, dim)
	copy(out, raw)
	return out
}

type embedRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding *struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait embed rate limit: %w", err)
		}
	}

	return resilience.Do(ctx, e.opts.executor, "gemini_embed", func(ctx context.Context) ([]float32, error) {
		return e.embedOnce(ctx, text)
	}, classifyGeminiError)
}

func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	request := embedRequest{
		Model:   "models/" + e.model,
		Content: embedContent{Parts: []textPart{{Text: text}}},
	}

	var response embedResponse
	if err := postJSON(ctx, e.opts.httpClient, "embed", e.endpoint, request, &response); err != nil {
		return nil, err
	}
	// An empty values array is still an array and pads to zeros.
	if response.Embedding == nil || response.Embedding.Values == nil {
		return nil, malformed("embed", e.endpoint, "no embedding values in response")
	}
	return Normalize(response.Embedding.Values, e.dimension), nil
}

// EmbedBatch embeds texts one after another, honoring the pacing limiter.
// The first failure aborts the batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for idx, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", idx, err)
		}
		out = append(out, vector)
	}
	return out, nil
}
