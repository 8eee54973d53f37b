package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/applicant-rag/internal/config"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
	"github.com/kirillkom/applicant-rag/internal/core/usecase"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/remote"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/tabular"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/applicant-rag/internal/observability/metrics"
)

type Options struct {
	// Metrics receives ingest, answer and breaker observations. Optional.
	Metrics *metrics.RAGMetrics
	// ConnectQueue dials NATS for async sheet jobs and report events.
	ConnectQueue bool
}

type App struct {
	Config config.Config

	Queue    ports.SheetIngestQueue
	IngestUC *usecase.IngestApplicationsUseCase
	AnswerUC *usecase.AnswerUseCase
	Feedback *usecase.FeedbackUseCase
	History  *usecase.ChatHistoryUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	app, err := build(ctx, cfg, opts, db, &closers)
	if err != nil {
		closeAll()
		return nil, err
	}
	app.closeFn = closeAll
	return app, nil
}

func build(ctx context.Context, cfg config.Config, opts Options, db *sql.DB, closers *[]func()) (*App, error) {
	store, err := newChunkStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	feedbackRepo := postgres.NewFeedbackRepository(db)
	if err := feedbackRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure feedback schema: %w", err)
	}
	historyRepo := postgres.NewChatHistoryRepository(db)
	if err := historyRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure chat history schema: %w", err)
	}

	staging, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init staging storage: %w", err)
	}

	breakerListener := func(operation string, to gobreaker.State) {
		opts.Metrics.SetBreakerState(operation, to.String())
	}
	executor := resilience.NewExecutor(resilience.DefaultConfig()).WithStateListener(breakerListener)
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second

	embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.GeminiEmbeddingModel,
		BaseURL:           cfg.GeminiAPIBase,
		EmbeddingURL:      cfg.GeminiEmbeddingURL,
		Dimension:         cfg.VectorDim,
		Timeout:           timeout,
		RequestsPerSecond: cfg.EmbedRequestsPerSecond,
	}, gemini.WithExecutor(executor))
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	chat, err := gemini.NewChatCascade(gemini.ChatConfig{
		APIKey:    cfg.GeminiChatAPIKey,
		BaseURL:   cfg.GeminiAPIBase,
		CustomURL: cfg.GeminiChatURL,
		Models:    cfg.GeminiChatModels,
		Timeout:   timeout,
		Breaker:   resilience.DefaultConfig(),
	},
		gemini.WithAttemptObserver(opts.Metrics.ObserveChatAttempt),
		gemini.WithBreakerListener(breakerListener),
	)
	if err != nil {
		return nil, fmt.Errorf("init chat cascade: %w", err)
	}
	slog.Info("chat_cascade_ready", "candidates", len(chat.Candidates()))

	fetcher := remote.New(remote.Options{
		Timeout:            timeout,
		ResilienceExecutor: executor,
	})

	ingestUC := usecase.NewIngestApplicationsUseCase(
		tabular.NewSpreadsheetReader(),
		tabular.NewCSVReader(),
		embedder,
		store,
		fetcher,
		staging,
	)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, store, cfg.RAGTopK)
	answerUC := usecase.NewAnswerUseCase(retrieveUC, chat, cfg.RAGTopK).WithChatHistory(historyRepo)

	app := &App{
		Config:   cfg,
		IngestUC: ingestUC,
		AnswerUC: answerUC,
		Feedback: usecase.NewFeedbackUseCase(feedbackRepo),
		History:  usecase.NewChatHistoryUseCase(historyRepo),
	}

	if opts.ConnectQueue {
		queue, err := nats.New(cfg.NATSURL, nats.Options{
			SheetSubject:       cfg.NATSSheetSubject,
			ReportSubject:      cfg.NATSReportSubject,
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		*closers = append(*closers, queue.Close)
		ingestUC.WithReportPublisher(queue)
		app.Queue = queue
	}

	return app, nil
}

func newChunkStore(ctx context.Context, cfg config.Config, db *sql.DB) (ports.ChunkStore, error) {
	switch cfg.VectorBackend {
	case "qdrant":
		slog.Info("chunk_store_selected", "backend", "qdrant", "collection", cfg.QdrantCollection)
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.VectorDim), nil
	default:
		repo := postgres.NewChunkRepository(db, cfg.VectorDim)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure chunk schema: %w", err)
		}
		slog.Info("chunk_store_selected", "backend", "pgvector", "dimension", cfg.VectorDim)
		return repo, nil
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
