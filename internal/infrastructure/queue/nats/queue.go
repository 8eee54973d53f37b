package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/infrastructure/resilience"
)

const workerQueueGroup = "workers"

// Queue carries remote sheet ingestion requests to workers and announces
// finished ingestion reports.
type Queue struct {
	conn          *nats.Conn
	sheetSubject  string
	reportSubject string
	executor      *resilience.Executor
}

type Options struct {
	SheetSubject         string
	ReportSubject        string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	sheetSubject := strings.TrimSpace(options.SheetSubject)
	if sheetSubject == "" {
		return nil, domain.WrapError(domain.ErrConfig, "connect nats", errors.New("sheet subject is required"))
	}

	conn, err := nats.Connect(
		url,
		nats.Name("applicant-rag"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		sheetSubject:  sheetSubject,
		reportSubject: strings.TrimSpace(options.ReportSubject),
		executor:      options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishSheetIngest(ctx context.Context, request domain.SheetIngestRequest) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal sheet request: %w", err)
	}
	return q.publish(ctx, "nats.publish_sheet", q.sheetSubject, payload)
}

// PublishIngestReport is a no-op when no report subject is configured.
func (q *Queue) PublishIngestReport(ctx context.Context, report domain.IngestReport) error {
	if q.reportSubject == "" {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal ingest report: %w", err)
	}
	return q.publish(ctx, "nats.publish_report", q.reportSubject, payload)
}

func (q *Queue) publish(ctx context.Context, operation, subject string, payload []byte) error {
	err := q.executor.Execute(ctx, operation, func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *Queue) SubscribeSheetIngest(ctx context.Context, handler func(context.Context, domain.SheetIngestRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.sheetSubject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		handleSheetMessage(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// handleSheetMessage drops undecodable payloads; redelivering them would
// fail the same way.
func handleSheetMessage(ctx context.Context, data []byte, handler func(context.Context, domain.SheetIngestRequest) error) {
	request, err := decodeSheetRequest(data)
	if err != nil {
		slog.Error("sheet_request_dropped", "error", err, "payload_bytes", len(data))
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, request); err != nil {
		slog.Error("sheet_request_failed", "job_id", request.JobID, "error", err)
	}
}

func decodeSheetRequest(data []byte) (domain.SheetIngestRequest, error) {
	var request domain.SheetIngestRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return domain.SheetIngestRequest{}, fmt.Errorf("decode sheet request: %w", err)
	}
	if strings.TrimSpace(request.CSVURL) == "" {
		return domain.SheetIngestRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode sheet request", errors.New("csv_url is required"))
	}
	return request, nil
}
