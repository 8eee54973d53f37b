package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

type ChatHistoryRepository struct {
	db *sql.DB
}

func NewChatHistoryRepository(db *sql.DB) *ChatHistoryRepository {
	return &ChatHistoryRepository{db: db}
}

func (r *ChatHistoryRepository) EnsureSchema(ctx context.Context) error {
	return execSchema(ctx, r.db, `
CREATE TABLE IF NOT EXISTS chat_messages (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_job_seq ON chat_messages(job_id, seq);
`)
}

type chatMetadata struct {
	Sources []domain.Source `json:"sources,omitempty"`
}

// AppendChatMessages writes all turns in one transaction so a question never
// lands without its answer.
func (r *ChatHistoryRepository) AppendChatMessages(ctx context.Context, messages ...*domain.ChatMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chat tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range messages {
		metadata, err := json.Marshal(chatMetadata{Sources: m.Sources})
		if err != nil {
			return fmt.Errorf("marshal chat metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_messages (id, job_id, role, content, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, m.ID, m.JobID, m.Role, m.Content, metadata, m.CreatedAt); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat tx: %w", err)
	}
	return nil
}

func (r *ChatHistoryRepository) ListChatMessages(ctx context.Context, jobID string) ([]domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, job_id, role, content, metadata, created_at
FROM chat_messages
WHERE job_id = $1
ORDER BY created_at ASC, seq ASC
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var m domain.ChatMessage
		var metadataRaw []byte
		if err := rows.Scan(&m.ID, &m.JobID, &m.Role, &m.Content, &metadataRaw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		var metadata chatMetadata
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chat metadata: %w", err)
			}
		}
		m.Sources = metadata.Sources
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return out, nil
}

func (r *ChatHistoryRepository) DeleteChatMessages(ctx context.Context, jobID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, fmt.Errorf("delete chat messages: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("chat messages rows affected: %w", err)
	}
	return deleted, nil
}
