package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/resilience"
)

var DefaultChatModels = []string{
	"models/gemini-2.5-flash",
	"models/gemini-flash-latest",
	"models/gemini-2.0-flash",
	"models/gemini-pro-latest",
}

type ChatConfig struct {
	APIKey  string
	BaseURL string
	// CustomURL is tried before any model in Models.
	CustomURL string
	Models    []string
	Timeout   time.Duration
	Breaker   resilience.Config
}

// Candidate is one generateContent endpoint in the fallback order.
type Candidate struct {
	Name string
	URL  string
}

// ChatCascade asks each candidate in turn and returns the first non-empty
// answer. Each candidate gets its own breaker and a single attempt.
type ChatCascade struct {
	candidates []Candidate
	breakers   *resilience.Executor
	opts       options
}

func NewChatCascade(cfg ChatConfig, opts ...Option) (*ChatCascade, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, domain.WrapError(domain.ErrConfig, "new gemini chat", errors.New("GEMINI_CHAT_API_KEY is required"))
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	models := cfg.Models
	if len(models) == 0 {
		models = DefaultChatModels
	}

	var candidates []Candidate
	if custom := strings.TrimSpace(cfg.CustomURL); custom != "" {
		candidates = append(candidates, Candidate{Name: "custom", URL: withKey(custom, key)})
	}
	for _, model := range models {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		if !strings.HasPrefix(model, "models/") {
			model = "models/" + model
		}
		candidates = append(candidates, Candidate{
			Name: model,
			URL:  withKey(fmt.Sprintf("%s/%s:generateContent", base, model), key),
		})
	}

	built := buildOptions(cfg.Timeout, opts)
	breakers := resilience.NewExecutor(resilience.SingleAttempt(cfg.Breaker))
	if built.onBreaker != nil {
		breakers.WithStateListener(built.onBreaker)
	}
	return &ChatCascade{
		candidates: candidates,
		breakers:   breakers,
		opts:       built,
	}, nil
}

// Candidates returns the resolved order with keys redacted.
func (c *ChatCascade) Candidates() []Candidate {
	out := make([]Candidate, 0, len(c.candidates))
	for _, cand := range c.candidates {
		out = append(out, Candidate{Name: cand.Name, URL: redactURL(cand.URL)})
	}
	return out
}

func (c *ChatCascade) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, cand := range c.candidates {
		text, err := resilience.Do(ctx, c.breakers, "gemini_chat:"+cand.Name, func(ctx context.Context) (string, error) {
			return c.attempt(ctx, cand, prompt)
		}, classifyGeminiError)
		if err == nil {
			c.observe(cand.Name, "success")
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("generate: %w", ctxErr)
		}

		c.observe(cand.Name, "failure")
		slog.Warn("chat_candidate_failed", "candidate", cand.Name, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		return "", domain.WrapError(domain.ErrConfig, "generate", errors.New("no chat candidates configured"))
	}
	return "", fmt.Errorf("all %d chat candidates failed: %w", len(c.candidates), lastErr)
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Role  string     `json:"role"`
	Parts []textPart `json:"parts"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []textPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *ChatCascade) attempt(ctx context.Context, cand Candidate, prompt string) (string, error) {
	request := generateRequest{
		Contents: []generateContent{{Role: "user", Parts: []textPart{{Text: prompt}}}},
	}

	var response generateResponse
	if err := postJSON(ctx, c.opts.httpClient, "generate", cand.URL, request, &response); err != nil {
		return "", err
	}
	if len(response.Candidates) == 0 {
		return "", malformed("generate", cand.URL, "no candidates in response")
	}

	texts := make([]string, 0, len(response.Candidates[0].Content.Parts))
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	text := strings.Join(texts, "\n")
	if strings.TrimSpace(text) == "" {
		return "", malformed("generate", cand.URL, "empty candidate text")
	}
	return text, nil
}

func (c *ChatCascade) observe(candidate, outcome string) {
	if c.opts.observe != nil {
		c.opts.observe(candidate, outcome)
	}
}
