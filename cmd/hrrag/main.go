package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/applicant-rag/internal/adapters/cli"
	"github.com/kirillkom/applicant-rag/internal/bootstrap"
	"github.com/kirillkom/applicant-rag/internal/config"
	"github.com/kirillkom/applicant-rag/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(load).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func load(ctx context.Context) (*cli.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.NewStderrJSONLogger("hrrag-cli", cfg.LogLevel))

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &cli.Services{
		Ingestor:     app.IngestUC,
		Answerer:     app.AnswerUC,
		Diagnostics:  cfg.RAGDiagnostics,
		DefaultJobID: cfg.RAGDefaultJobID,
		Close:        app.Close,
	}, nil
}
