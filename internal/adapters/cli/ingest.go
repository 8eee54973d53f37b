package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

type ingestFlags struct {
	jobID           string
	allowDuplicates bool
	diagnostics     bool
	format          string
}

func NewIngestCmd(load Loader) *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest <file-or-url>",
		Short: "Ingest an applicant spreadsheet",
		Long: `Ingest every row of an applicant spreadsheet as one application.

The source kind follows the argument: an http(s) URL is fetched as a CSV
export, .xlsx files are read from their first sheet, .csv files as CSV.`,
		Example: `  hrrag ingest applicants.xlsx --job backend-2026
  hrrag ingest "https://docs.google.com/spreadsheets/d/ID/export?format=csv" --job backend-2026`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.format != "text" && flags.format != "json" {
				return fmt.Errorf("--format must be text or json, got %q", flags.format)
			}
			return withServices(cmd.Context(), load, func(s *Services) error {
				jobID := strings.TrimSpace(flags.jobID)
				if jobID == "" {
					jobID = s.DefaultJobID
				}
				opts := domain.IngestOptions{
					DefaultJobID:    jobID,
					AllowDuplicates: flags.allowDuplicates,
					Diagnostics:     flags.diagnostics || s.Diagnostics,
				}
				report, err := runIngest(cmd, s, args[0], opts)
				if err != nil {
					return err
				}
				return printReport(cmd.OutOrStdout(), report, flags.format)
			})
		},
	}

	cmd.Flags().StringVar(&flags.jobID, "job", "", "Default job id for rows without a job column (defaults to RAG_DEFAULT_JOB_ID)")
	cmd.Flags().BoolVar(&flags.allowDuplicates, "allow-duplicates", false, "Ingest rows whose applicant email already exists for the job")
	cmd.Flags().BoolVar(&flags.diagnostics, "diagnostics", false, "Include the first row errors in the report")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: text or json")
	return cmd
}

func runIngest(cmd *cobra.Command, s *Services, source string, opts domain.IngestOptions) (*domain.IngestReport, error) {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s.Ingestor.IngestRemoteCSV(cmd.Context(), source, opts)
	}

	ext := strings.ToLower(filepath.Ext(source))
	if ext != ".xlsx" && ext != ".csv" {
		return nil, fmt.Errorf("unsupported source %q: expected .xlsx, .csv or an http(s) URL", source)
	}

	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer file.Close()

	name := filepath.Base(source)
	if ext == ".xlsx" {
		return s.Ingestor.IngestSpreadsheet(cmd.Context(), name, file, opts)
	}
	return s.Ingestor.IngestCSV(cmd.Context(), name, file, opts)
}

func printReport(w io.Writer, report *domain.IngestReport, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintln(w, report.Message)
	fmt.Fprintf(w, "inserted=%d skipped=%d total=%d\n", report.Inserted, report.Skipped, report.Total)
	for _, rowErr := range report.Errors {
		fmt.Fprintf(w, "  row %d: %s", rowErr.Row, rowErr.Reason)
		if rowErr.ApplicantEmail != "" {
			fmt.Fprintf(w, " (%s)", rowErr.ApplicantEmail)
		}
		if rowErr.Status != 0 {
			fmt.Fprintf(w, " status=%d", rowErr.Status)
		}
		fmt.Fprintln(w)
	}
	return nil
}
