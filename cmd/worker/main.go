package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/applicant-rag/internal/adapters/worker"
	"github.com/kirillkom/applicant-rag/internal/bootstrap"
	"github.com/kirillkom/applicant-rag/internal/config"
	"github.com/kirillkom/applicant-rag/internal/observability/logging"
	"github.com/kirillkom/applicant-rag/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(worker.ServiceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(worker.ServiceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Metrics:      workerMetrics.RAG(),
		ConnectQueue: true,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	handler := worker.NewSheetJobHandler(app.IngestUC, workerMetrics, 10*time.Minute).
		WithDefaultJobID(cfg.RAGDefaultJobID)
	slog.Info("worker_subscribed", "subject", cfg.NATSSheetSubject)
	if err := app.Queue.SubscribeSheetIngest(ctx, handler.Handle); err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
