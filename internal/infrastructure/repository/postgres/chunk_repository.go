package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

// ChunkRepository keeps application chunks and their embeddings in a
// pgvector column. seq records insertion order and breaks score ties.
type ChunkRepository struct {
	db        *sql.DB
	dimension int
}

func NewChunkRepository(db *sql.DB, dimension int) *ChunkRepository {
	if dimension <= 0 {
		dimension = domain.DefaultEmbeddingDimension
	}
	return &ChunkRepository{db: db, dimension: dimension}
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS application_chunks (
	id TEXT PRIMARY KEY,
	seq BIGSERIAL UNIQUE,
	job_id TEXT NOT NULL,
	applicant_email TEXT NOT NULL DEFAULT '',
	applicant_name TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%d) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_application_chunks_job_email ON application_chunks(job_id, applicant_email);
`, r.dimension)
	return execSchema(ctx, r.db, ddl)
}

func (r *ChunkRepository) Insert(ctx context.Context, chunk *domain.ApplicationChunk) error {
	if len(chunk.Embedding) != r.dimension {
		return domain.WrapError(domain.ErrInvalidInput, "insert application chunk",
			fmt.Errorf("embedding has %d dimensions, store expects %d", len(chunk.Embedding), r.dimension))
	}
	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO application_chunks (
	id, job_id, applicant_email, applicant_name, content, metadata, embedding, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		chunk.ID, chunk.JobID, chunk.ApplicantEmail, chunk.ApplicantName, chunk.Content,
		metadataJSON, pgvector.NewVector(chunk.Embedding), chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application chunk: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ExistsApplicant(ctx context.Context, jobID, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM application_chunks WHERE job_id = $1 AND applicant_email = $2
)
`, jobID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup applicant: %w", err)
	}
	return exists, nil
}

func (r *ChunkRepository) SearchSimilar(ctx context.Context, jobID string, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	if len(query) != r.dimension {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search application chunks",
			fmt.Errorf("query has %d dimensions, store expects %d", len(query), r.dimension))
	}
	if limit <= 0 {
		limit = domain.DefaultRetrievalLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, job_id, applicant_name, applicant_email, content, metadata, 1 - (embedding <=> $1) AS score
FROM application_chunks
WHERE job_id = $2
ORDER BY embedding <=> $1, seq
LIMIT $3
`, pgvector.NewVector(query), jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("search application chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievedChunk, 0, limit)
	for rows.Next() {
		var chunk domain.RetrievedChunk
		var metadataRaw []byte
		if err := rows.Scan(
			&chunk.ID, &chunk.JobID, &chunk.ApplicantName, &chunk.ApplicantEmail,
			&chunk.Content, &metadataRaw, &chunk.Score,
		); err != nil {
			return nil, fmt.Errorf("scan application chunk: %w", err)
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate application chunks: %w", err)
	}
	return out, nil
}
