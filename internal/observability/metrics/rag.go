package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hrrag"

// RAGMetrics covers ingestion, answering and provider health. It is shared by
// the api and worker registries.
type RAGMetrics struct {
	service string

	ingestRowsTotal   *prometheus.CounterVec
	ingestRunsTotal   *prometheus.CounterVec
	answersTotal      *prometheus.CounterVec
	retrievedSources  *prometheus.HistogramVec
	answerDuration    *prometheus.HistogramVec
	chatAttemptsTotal *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

func newRAGMetrics(registry *prometheus.Registry, service string) *RAGMetrics {
	ingestRowsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Ingested spreadsheet rows by source kind and result.",
		},
		[]string{"service", "source", "result"},
	)
	ingestRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by source kind and status.",
		},
		[]string{"service", "source", "status"},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "answers_total",
			Help:      "Answered questions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	retrievedSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrieved_sources",
			Help:      "Distribution of sources returned per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "answer_duration_seconds",
			Help:      "Answer synthesis duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	chatAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "chat_attempts_total",
			Help:      "Chat model cascade attempts by candidate and outcome.",
		},
		[]string{"service", "candidate", "outcome"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		ingestRowsTotal,
		ingestRunsTotal,
		answersTotal,
		retrievedSources,
		answerDuration,
		chatAttemptsTotal,
		breakerState,
	)

	return &RAGMetrics{
		service:           service,
		ingestRowsTotal:   ingestRowsTotal,
		ingestRunsTotal:   ingestRunsTotal,
		answersTotal:      answersTotal,
		retrievedSources:  retrievedSources,
		answerDuration:    answerDuration,
		chatAttemptsTotal: chatAttemptsTotal,
		breakerState:      breakerState,
	}
}

func (m *RAGMetrics) RecordIngest(source string, inserted, skipped int, err error) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ingestRunsTotal.WithLabelValues(m.service, source, status).Inc()
	if inserted > 0 {
		m.ingestRowsTotal.WithLabelValues(m.service, source, "inserted").Add(float64(inserted))
	}
	if skipped > 0 {
		m.ingestRowsTotal.WithLabelValues(m.service, source, "skipped").Add(float64(skipped))
	}
}

func (m *RAGMetrics) RecordAnswer(sourceCount int, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "answered"
	if sourceCount == 0 {
		outcome = "no_context"
	}
	m.answersTotal.WithLabelValues(m.service, outcome).Inc()
	m.retrievedSources.WithLabelValues(m.service).Observe(float64(sourceCount))
	m.answerDuration.WithLabelValues(m.service).Observe(duration.Seconds())
}

func (m *RAGMetrics) ObserveChatAttempt(candidate, outcome string) {
	if m == nil {
		return
	}
	m.chatAttemptsTotal.WithLabelValues(m.service, candidate, outcome).Inc()
}

// SetBreakerState takes gobreaker state names.
func (m *RAGMetrics) SetBreakerState(operation, state string) {
	if m == nil {
		return
	}
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
