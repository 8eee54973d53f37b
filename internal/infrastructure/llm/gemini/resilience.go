package gemini

import (
	"context"
	"errors"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/resilience"
)

func classifyGeminiError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var providerErr *domain.ProviderError
	if errors.As(err, &providerErr) {
		switch {
		case errors.Is(providerErr.Kind, domain.ErrNetwork):
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		case errors.Is(providerErr.Kind, domain.ErrProviderHTTP):
			retryable := resilience.IsRetryableHTTPStatus(providerErr.StatusCode)
			return resilience.ErrorClassification{
				Retryable:     retryable,
				RecordFailure: retryable,
			}
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
