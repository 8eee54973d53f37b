package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrConfig marks a missing credential or setting. Never retried.
	ErrConfig = errors.New("configuration error")
	// ErrValidation marks a row-local rejection (missing job id, empty content, duplicate).
	ErrValidation = errors.New("validation error")

	ErrProviderHTTP      = errors.New("provider http error")
	ErrNetwork           = errors.New("provider network error")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ProviderError describes a failed call to a remote model endpoint.
// Kind is one of ErrProviderHTTP, ErrNetwork or ErrMalformedResponse.
type ProviderError struct {
	Kind       error
	Operation  string
	URL        string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	var b strings.Builder
	b.WriteString(e.Operation)
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Status != "" {
		b.WriteString(": ")
		b.WriteString(e.Status)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		b.WriteString(": ")
		b.WriteString(body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ValidationError is a row-level rejection carrying the skip reason.
type ValidationError struct {
	Reason SkipReason
}

func (e *ValidationError) Error() string {
	return string(e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(reason SkipReason) error {
	return &ValidationError{Reason: reason}
}
