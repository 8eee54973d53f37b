package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
)

type IngestApplicationsUseCase struct {
	spreadsheets ports.TableReader
	csv          ports.TableReader
	embedder     ports.Embedder
	store        ports.ChunkStore
	fetcher      ports.RemoteFetcher
	staging      ports.StagingStorage
	publisher    ports.ReportPublisher

	now   func() time.Time
	newID func() string
}

func NewIngestApplicationsUseCase(
	spreadsheets ports.TableReader,
	csv ports.TableReader,
	embedder ports.Embedder,
	store ports.ChunkStore,
	fetcher ports.RemoteFetcher,
	staging ports.StagingStorage,
) *IngestApplicationsUseCase {
	return &IngestApplicationsUseCase{
		spreadsheets: spreadsheets,
		csv:          csv,
		embedder:     embedder,
		store:        store,
		fetcher:      fetcher,
		staging:      staging,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// WithReportPublisher announces every finished run. Publish failures are logged only.
func (uc *IngestApplicationsUseCase) WithReportPublisher(publisher ports.ReportPublisher) *IngestApplicationsUseCase {
	uc.publisher = publisher
	return uc
}

func (uc *IngestApplicationsUseCase) IngestSpreadsheet(
	ctx context.Context,
	filename string,
	body io.Reader,
	opts domain.IngestOptions,
) (*domain.IngestReport, error) {
	table, err := uc.spreadsheets.ReadTable(ctx, filename, body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read spreadsheet", err)
	}
	return uc.IngestTable(ctx, table, opts), nil
}

func (uc *IngestApplicationsUseCase) IngestCSV(
	ctx context.Context,
	filename string,
	body io.Reader,
	opts domain.IngestOptions,
) (*domain.IngestReport, error) {
	table, err := uc.csv.ReadTable(ctx, filename, body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read csv", err)
	}
	return uc.IngestTable(ctx, table, opts), nil
}

// IngestTable runs every row through normalize, duplicate check, embed and
// persist. A row failure never stops the batch.
func (uc *IngestApplicationsUseCase) IngestTable(ctx context.Context, table *domain.Table, opts domain.IngestOptions) *domain.IngestReport {
	report := &domain.IngestReport{
		JobID:  strings.TrimSpace(opts.DefaultJobID),
		Source: table.Source,
		Total:  len(table.Rows),
	}
	if len(table.Rows) == 0 {
		report.Message = domain.NoRowsMessage
		uc.publish(ctx, *report)
		return report
	}

	var rowErrors []domain.RowError
	for idx, row := range table.Rows {
		// Header occupies the first line of the sheet.
		rowNumber := idx + 2
		reason, err := uc.ingestRow(ctx, table, row, opts)
		if err == nil {
			report.Inserted++
			continue
		}

		report.Skipped++
		rowErr := newRowError(rowNumber, reason, row, err)
		rowErrors = append(rowErrors, rowErr)
		slog.Warn("row_skipped",
			"source", table.Source,
			"row", rowNumber,
			"reason", string(reason),
			"applicant_email", rowErr.ApplicantEmail,
			"error", err,
		)
	}

	report.Message = fmt.Sprintf("Successfully inserted %d out of %d applications", report.Inserted, report.Total)
	if opts.Diagnostics && len(rowErrors) > 0 {
		if len(rowErrors) > domain.MaxReportedRowErrors {
			rowErrors = rowErrors[:domain.MaxReportedRowErrors]
		}
		report.Errors = rowErrors
	}

	slog.Info("ingest_completed",
		"source", table.Source,
		"sheet", table.Sheet,
		"job_id", report.JobID,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"total", report.Total,
	)
	uc.publish(ctx, *report)
	return report
}

func (uc *IngestApplicationsUseCase) ingestRow(
	ctx context.Context,
	table *domain.Table,
	row domain.Row,
	opts domain.IngestOptions,
) (domain.SkipReason, error) {
	norm, err := NormalizeRow(row, opts.DefaultJobID)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			return validationErr.Reason, err
		}
		return domain.SkipEmptyContent, err
	}

	if !opts.AllowDuplicates && norm.ApplicantEmail != "" {
		exists, err := uc.store.ExistsApplicant(ctx, norm.JobID, norm.ApplicantEmail)
		if err != nil {
			return domain.SkipDuplicateCheck, fmt.Errorf("check duplicate applicant: %w", err)
		}
		if exists {
			return domain.SkipDuplicate, domain.NewValidationError(domain.SkipDuplicate)
		}
	}

	vector, err := uc.embedder.Embed(ctx, norm.Content)
	if err != nil {
		return domain.SkipEmbeddingFailed, fmt.Errorf("embed row: %w", err)
	}

	chunk := &domain.ApplicationChunk{
		ID:             uc.newID(),
		JobID:          norm.JobID,
		ApplicantEmail: norm.ApplicantEmail,
		ApplicantName:  norm.ApplicantName,
		Content:        norm.Content,
		Metadata: map[string]any{
			"source":          table.Source,
			"sheet":           table.Sheet,
			"applicant_email": norm.ApplicantEmail,
			"applicant_name":  norm.ApplicantName,
		},
		Embedding: vector,
		CreatedAt: uc.now(),
	}
	if err := uc.store.Insert(ctx, chunk); err != nil {
		return domain.SkipPersistenceFailed, fmt.Errorf("insert application chunk: %w", err)
	}
	return "", nil
}

func (uc *IngestApplicationsUseCase) publish(ctx context.Context, report domain.IngestReport) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishIngestReport(ctx, report); err != nil {
		slog.Warn("ingest_report_publish_failed", "source", report.Source, "error", err)
	}
}

func newRowError(rowNumber int, reason domain.SkipReason, row domain.Row, err error) domain.RowError {
	out := domain.RowError{
		Row:            rowNumber,
		Reason:         reason,
		Message:        err.Error(),
		ApplicantName:  matchedValue(row, nameToken),
		ApplicantEmail: matchedValue(row, emailToken),
	}
	var providerErr *domain.ProviderError
	if errors.As(err, &providerErr) {
		out.Status = providerErr.StatusCode
		out.Body = providerErr.Body
		out.URL = providerErr.URL
	}
	return out
}
