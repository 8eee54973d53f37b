package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

const maxErrorBody = 2048

func postJSON(ctx context.Context, client *http.Client, operation, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &domain.ProviderError{Kind: domain.ErrNetwork, Operation: operation, URL: redactURL(endpoint), Err: redactErr(err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &domain.ProviderError{Kind: domain.ErrNetwork, Operation: operation, URL: redactURL(endpoint), Err: redactErr(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return formatGeminiHTTPError(operation, endpoint, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ProviderError{
			Kind:       domain.ErrMalformedResponse,
			Operation:  operation,
			URL:        redactURL(endpoint),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func formatGeminiHTTPError(operation, endpoint string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.ProviderError{
		Kind:       domain.ErrProviderHTTP,
		Operation:  operation,
		URL:        redactURL(endpoint),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func malformed(operation, endpoint, reason string) error {
	return &domain.ProviderError{
		Kind:      domain.ErrMalformedResponse,
		Operation: operation,
		URL:       redactURL(endpoint),
		Err:       errors.New(reason),
	}
}

// redactURL hides the API key before a URL reaches logs or error reports.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if !q.Has("key") {
		return raw
	}
	q.Set("key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}

// redactErr strips the key from *url.Error, whose message embeds the full URL.
func redactErr(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: redactURL(urlErr.URL), Err: urlErr.Err}
	}
	return err
}

// withKey appends key unless the URL already carries one.
func withKey(raw, key string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		return raw
	}
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String()
}
