package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kirillkom/applicant-rag/internal/core/ports"
)

// Services are the use cases a command needs. DefaultJobID backs an empty
// --job. Close releases them.
type Services struct {
	Ingestor     ports.ApplicationIngestor
	Answerer     ports.ApplicantQuestionAnswerer
	Diagnostics  bool
	DefaultJobID string
	Close        func()
}

// Loader builds Services lazily so that --help never dials a database.
type Loader func(ctx context.Context) (*Services, error)

func NewRootCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hrrag",
		Short: "Ingest job applications and ask questions about applicants",
		Long: `hrrag ingests applicant spreadsheets (xlsx, csv or a remote CSV export)
into the vector store and answers questions about the applicants of a job.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewIngestCmd(load))
	cmd.AddCommand(NewAskCmd(load))
	cmd.AddCommand(NewMCPCmd(load))
	return cmd
}

func withServices(ctx context.Context, load Loader, fn func(*Services) error) error {
	services, err := load(ctx)
	if err != nil {
		return err
	}
	if services.Close != nil {
		defer services.Close()
	}
	return fn(services)
}
