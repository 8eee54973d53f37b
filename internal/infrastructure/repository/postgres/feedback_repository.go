package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) EnsureSchema(ctx context.Context) error {
	return execSchema(ctx, r.db, `
CREATE TABLE IF NOT EXISTS rag_feedback (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	helpful BOOLEAN,
	rating SMALLINT,
	notes TEXT NOT NULL DEFAULT '',
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rag_feedback_job_created ON rag_feedback(job_id, created_at DESC);
`)
}

func (r *FeedbackRepository) CreateFeedback(ctx context.Context, feedback *domain.Feedback) error {
	sources := feedback.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO rag_feedback (
	id, job_id, question, answer, helpful, rating, notes, sources, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		feedback.ID, feedback.JobID, feedback.Question, feedback.Answer,
		nullBool(feedback.Helpful), nullInt(feedback.Rating), feedback.Notes, sourcesJSON, feedback.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (r *FeedbackRepository) GetFeedback(ctx context.Context, id string) (*domain.Feedback, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, job_id, question, answer, helpful, rating, notes, sources, created_at
FROM rag_feedback
WHERE id = $1
`, id)

	var feedback domain.Feedback
	var helpful sql.NullBool
	var rating sql.NullInt32
	var sourcesRaw []byte
	err := row.Scan(
		&feedback.ID, &feedback.JobID, &feedback.Question, &feedback.Answer,
		&helpful, &rating, &feedback.Notes, &sourcesRaw, &feedback.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get feedback", fmt.Errorf("feedback %s", id))
		}
		return nil, fmt.Errorf("scan feedback: %w", err)
	}
	if helpful.Valid {
		feedback.Helpful = &helpful.Bool
	}
	if rating.Valid {
		v := int(rating.Int32)
		feedback.Rating = &v
	}
	if err := json.Unmarshal(sourcesRaw, &feedback.Sources); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}
	return &feedback, nil
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}
