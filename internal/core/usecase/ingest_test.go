package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

func newIngestForTest(store *memoryStoreFake, embedder *embedderFake) *IngestApplicationsUseCase {
	uc := NewIngestApplicationsUseCase(nil, nil, embedder, store, &fetcherFake{}, newStagingFake())
	seq := 0
	uc.newID = func() string {
		seq++
		return "chunk-" + string(rune('a'+seq-1))
	}
	return uc
}

func applicantsTable() *domain.Table {
	return &domain.Table{
		Source: "applicants.xlsx",
		Sheet:  "Sheet1",
		Rows: []domain.Row{
			row("Job ID", "J1", "Name", "Alice", "Email", "alice@example.com", "Skills", "Go, Kubernetes"),
			row("Job ID", "J1", "Name", "", "Email", "", "Skills", "Python"),
			row("Job ID", "J1", "Name", "Bob", "Email", "bob@example.com", "Skills", "SQL"),
		},
	}
}

func assertCountsBalance(t *testing.T, report *domain.IngestReport) {
	t.Helper()
	if report.Inserted+report.Skipped != report.Total {
		t.Fatalf("inserted(%d)+skipped(%d) != total(%d)", report.Inserted, report.Skipped, report.Total)
	}
}

func TestIngestTableInsertsEveryUsableRow(t *testing.T) {
	store := &memoryStoreFake{}
	uc := newIngestForTest(store, &embedderFake{})

	report := uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{})
	assertCountsBalance(t, report)
	if report.Inserted != 3 || report.Skipped != 0 || report.Total != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Message != "Successfully inserted 3 out of 3 applications" {
		t.Fatalf("unexpected message %q", report.Message)
	}

	first := store.chunks[0]
	if first.JobID != "J1" || first.ApplicantEmail != "alice@example.com" || first.ApplicantName != "Alice" {
		t.Fatalf("unexpected chunk: %+v", first)
	}
	if first.Metadata["source"] != "applicants.xlsx" || first.Metadata["sheet"] != "Sheet1" {
		t.Fatalf("unexpected metadata: %+v", first.Metadata)
	}
	if first.Metadata["applicant_email"] != "alice@example.com" {
		t.Fatalf("expected identity duplicated in metadata, got %+v", first.Metadata)
	}
	if store.chunks[1].Content != "Job ID: J1\nSkills: Python" {
		t.Fatalf("unexpected content for row without identity: %q", store.chunks[1].Content)
	}
}

func TestIngestTableReprocessingSkipsKnownEmailsOnly(t *testing.T) {
	store := &memoryStoreFake{}
	embedder := &embedderFake{}
	uc := newIngestForTest(store, embedder)

	uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{})
	embedder.calls = nil

	report := uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{Diagnostics: true})
	assertCountsBalance(t, report)
	// Rows without an email bypass the duplicate gate and are inserted again.
	if report.Inserted != 1 || report.Skipped != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(embedder.calls) != 1 {
		t.Fatalf("duplicates must not be embedded, got %d embed calls", len(embedder.calls))
	}
	for _, rowErr := range report.Errors {
		if rowErr.Reason != domain.SkipDuplicate {
			t.Fatalf("expected duplicate reason, got %+v", rowErr)
		}
	}
	if store.count() != 4 {
		t.Fatalf("expected 4 stored chunks, got %d", store.count())
	}
}

func TestIngestTableDuplicateWithinSameBatchRegardlessOfOrder(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		store := &memoryStoreFake{}
		uc := newIngestForTest(store, &embedderFake{})
		rows := []domain.Row{
			row("Job", "J1", "Email", "dup@example.com", "Notes", "first"),
			row("Job", "J1", "Email", "dup@example.com", "Notes", "second"),
		}
		if reversed {
			rows[0], rows[1] = rows[1], rows[0]
		}

		report := uc.IngestTable(context.Background(), &domain.Table{Source: "s.csv", Rows: rows}, domain.IngestOptions{})
		assertCountsBalance(t, report)
		if report.Inserted != 1 || report.Skipped != 1 {
			t.Fatalf("reversed=%v: unexpected report %+v", reversed, report)
		}
	}
}

func TestIngestTableAllowDuplicatesSkipsGate(t *testing.T) {
	store := &memoryStoreFake{}
	uc := newIngestForTest(store, &embedderFake{})

	uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{})
	lookups := store.lookups
	report := uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{AllowDuplicates: true})
	if report.Inserted != 3 {
		t.Fatalf("expected all rows inserted, got %+v", report)
	}
	if store.lookups != lookups {
		t.Fatalf("duplicate lookup must not run when duplicates are allowed")
	}
}

func TestIngestTableSkipsMissingJobID(t *testing.T) {
	store := &memoryStoreFake{}
	uc := newIngestForTest(store, &embedderFake{})
	table := &domain.Table{
		Source: "a.csv",
		Rows: []domain.Row{
			row("Name", "No Job", "Skills", "Go"),
			row("Job ID", "J1", "Name", "Ok", "Skills", "Go"),
		},
	}

	report := uc.IngestTable(context.Background(), table, domain.IngestOptions{Diagnostics: true})
	assertCountsBalance(t, report)
	if report.Inserted != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Errors[0].Reason != domain.SkipMissingJobID || report.Errors[0].Row != 2 {
		t.Fatalf("unexpected error: %+v", report.Errors[0])
	}
}

func TestIngestTableSkipsEmptyContent(t *testing.T) {
	store := &memoryStoreFake{}
	embedder := &embedderFake{}
	uc := newIngestForTest(store, embedder)
	table := &domain.Table{
		Source: "a.csv",
		Rows: []domain.Row{
			row("Name", "Ok", "Skills", "Go"),
			row("Name", " ", "Skills", "\t"),
		},
	}

	report := uc.IngestTable(context.Background(), table, domain.IngestOptions{DefaultJobID: "J1", Diagnostics: true})
	assertCountsBalance(t, report)
	if report.Inserted != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Errors[0].Reason != domain.SkipEmptyContent || report.Errors[0].Row != 3 {
		t.Fatalf("unexpected error: %+v", report.Errors[0])
	}
	if len(embedder.calls) != 1 {
		t.Fatalf("empty rows must not be embedded, got %d calls", len(embedder.calls))
	}
}

func TestIngestTableUsesDefaultJobID(t *testing.T) {
	store := &memoryStoreFake{}
	uc := newIngestForTest(store, &embedderFake{})
	table := &domain.Table{Rows: []domain.Row{row("Name", "Ann", "Email", "ann@x.io")}}

	report := uc.IngestTable(context.Background(), table, domain.IngestOptions{DefaultJobID: "job-7"})
	if report.Inserted != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if store.chunks[0].JobID != "job-7" {
		t.Fatalf("expected default job id, got %q", store.chunks[0].JobID)
	}
}

func TestIngestTableCapturesProviderErrorDetails(t *testing.T) {
	store := &memoryStoreFake{}
	uc := newIngestForTest(store, &embedderFake{failOn: "Bob"})

	report := uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{Diagnostics: true})
	assertCountsBalance(t, report)
	if report.Inserted != 2 || report.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	rowErr := report.Errors[0]
	if rowErr.Reason != domain.SkipEmbeddingFailed {
		t.Fatalf("expected embedding failure, got %+v", rowErr)
	}
	if rowErr.Status != 429 || rowErr.Body != "quota exceeded" || !strings.Contains(rowErr.URL, "embedContent") {
		t.Fatalf("expected provider details, got %+v", rowErr)
	}
	if rowErr.ApplicantName != "Bob" || rowErr.ApplicantEmail != "bob@example.com" {
		t.Fatalf("expected applicant identity on error, got %+v", rowErr)
	}
}

func TestIngestTablePersistenceAndLookupFailuresAreRowLocal(t *testing.T) {
	store := &memoryStoreFake{insertErr: errors.New("db down")}
	uc := newIngestForTest(store, &embedderFake{})
	report := uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{Diagnostics: true})
	assertCountsBalance(t, report)
	if report.Skipped != 3 || report.Errors[0].Reason != domain.SkipPersistenceFailed {
		t.Fatalf("unexpected report: %+v", report)
	}

	store = &memoryStoreFake{existsErr: errors.New("lookup failed")}
	embedder := &embedderFake{}
	uc = newIngestForTest(store, embedder)
	report = uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{Diagnostics: true})
	assertCountsBalance(t, report)
	if report.Inserted != 1 || report.Skipped != 2 || report.Errors[0].Reason != domain.SkipDuplicateCheck {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestIngestTableBoundsReportedErrors(t *testing.T) {
	rows := make([]domain.Row, 0, 9)
	for i := 0; i < 9; i++ {
		rows = append(rows, row("Name", "x"))
	}
	uc := newIngestForTest(&memoryStoreFake{}, &embedderFake{})

	report := uc.IngestTable(context.Background(), &domain.Table{Rows: rows}, domain.IngestOptions{Diagnostics: true})
	if report.Skipped != 9 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Errors) != domain.MaxReportedRowErrors {
		t.Fatalf("expected %d reported errors, got %d", domain.MaxReportedRowErrors, len(report.Errors))
	}

	report = uc.IngestTable(context.Background(), &domain.Table{Rows: rows}, domain.IngestOptions{})
	if report.Errors != nil {
		t.Fatalf("errors must be omitted outside diagnostics, got %+v", report.Errors)
	}
}

func TestIngestTableEmptySource(t *testing.T) {
	publisher := &publisherFake{}
	uc := newIngestForTest(&memoryStoreFake{}, &embedderFake{}).WithReportPublisher(publisher)

	report := uc.IngestTable(context.Background(), &domain.Table{Source: "empty.csv"}, domain.IngestOptions{})
	if report.Total != 0 || report.Message != domain.NoRowsMessage {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(publisher.reports) != 1 {
		t.Fatalf("expected report to be published")
	}
}

func TestIngestTablePublishFailureDoesNotChangeReport(t *testing.T) {
	publisher := &publisherFake{err: errors.New("nats down")}
	uc := newIngestForTest(&memoryStoreFake{}, &embedderFake{}).WithReportPublisher(publisher)

	report := uc.IngestTable(context.Background(), applicantsTable(), domain.IngestOptions{})
	if report.Inserted != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(publisher.reports) != 1 || publisher.reports[0].Inserted != 3 {
		t.Fatalf("unexpected published reports: %+v", publisher.reports)
	}
}

func TestIngestSpreadsheetWrapsReaderError(t *testing.T) {
	uc := NewIngestApplicationsUseCase(
		tableReaderFake{err: errors.New("zip: not a valid zip file")},
		nil,
		&embedderFake{},
		&memoryStoreFake{},
		&fetcherFake{},
		newStagingFake(),
	)
	_, err := uc.IngestSpreadsheet(context.Background(), "broken.xlsx", strings.NewReader("nope"), domain.IngestOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIngestCSVUsesCSVReader(t *testing.T) {
	store := &memoryStoreFake{}
	uc := NewIngestApplicationsUseCase(
		tableReaderFake{err: errors.New("spreadsheet reader must not be used")},
		tableReaderFake{table: applicantsTable()},
		&embedderFake{},
		store,
		&fetcherFake{},
		newStagingFake(),
	)
	report, err := uc.IngestCSV(context.Background(), "upload.csv", strings.NewReader("raw"), domain.IngestOptions{})
	if err != nil {
		t.Fatalf("IngestCSV() error = %v", err)
	}
	if report.Inserted != 3 || report.Source != "upload.csv" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if store.chunks[0].Metadata["source"] != "upload.csv" {
		t.Fatalf("expected source filename in metadata, got %+v", store.chunks[0].Metadata)
	}
}
