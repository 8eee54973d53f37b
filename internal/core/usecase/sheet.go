package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

// IngestRemoteCSV downloads a CSV export (for example a Google Sheet
// `export?format=csv` link) into staging and ingests it. The staged copy is
// removed on every return path.
func (uc *IngestApplicationsUseCase) IngestRemoteCSV(
	ctx context.Context,
	csvURL string,
	opts domain.IngestOptions,
) (*domain.IngestReport, error) {
	csvURL = strings.TrimSpace(csvURL)
	if csvURL == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest remote csv", errors.New("csv url is required"))
	}

	key := "sheet-" + uc.newID() + ".csv"
	defer func() {
		if err := uc.staging.Remove(context.WithoutCancel(ctx), key); err != nil {
			slog.Warn("staging_cleanup_failed", "key", key, "error", err)
		}
	}()

	body, err := uc.fetcher.Fetch(ctx, csvURL)
	if err != nil {
		return nil, fmt.Errorf("fetch remote sheet: %w", err)
	}
	saveErr := uc.staging.Save(ctx, key, body)
	_ = body.Close()
	if saveErr != nil {
		return nil, fmt.Errorf("stage remote sheet: %w", saveErr)
	}

	staged, err := uc.staging.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open staged sheet: %w", err)
	}
	defer staged.Close()

	return uc.IngestCSV(ctx, key, staged, opts)
}
