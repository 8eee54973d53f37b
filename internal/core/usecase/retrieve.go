package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
)

// RetrieveUseCase embeds a question and searches chunks of a single job.
// The embedder must be the instance used for ingestion so both sides share
// the configured vector dimension.
type RetrieveUseCase struct {
	embedder     ports.Embedder
	store        ports.ChunkStore
	defaultLimit int
}

func NewRetrieveUseCase(embedder ports.Embedder, store ports.ChunkStore, defaultLimit int) *RetrieveUseCase {
	if defaultLimit <= 0 {
		defaultLimit = domain.DefaultRetrievalLimit
	}
	return &RetrieveUseCase{
		embedder:     embedder,
		store:        store,
		defaultLimit: defaultLimit,
	}
}

// Retrieve returns at most limit chunks by descending similarity. An empty,
// non-nil slice means nothing matched.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, jobID, question string, limit int) ([]domain.RetrievedChunk, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("job id is required"))
	}
	if limit <= 0 {
		limit = uc.defaultLimit
	}

	queryVector, err := uc.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	chunks, err := uc.store.SearchSimilar(ctx, jobID, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("search application chunks: %w", err)
	}
	if chunks == nil {
		return []domain.RetrievedChunk{}, nil
	}
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}
