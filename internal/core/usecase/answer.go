package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
)

type chunkRetriever interface {
	Retrieve(ctx context.Context, jobID, question string, limit int) ([]domain.RetrievedChunk, error)
}

type AnswerUseCase struct {
	retriever chunkRetriever
	chat      ports.ChatModel
	history   ports.ChatHistoryStore
	limit     int

	now   func() time.Time
	newID func() string
}

func NewAnswerUseCase(retriever chunkRetriever, chat ports.ChatModel, limit int) *AnswerUseCase {
	if limit <= 0 {
		limit = domain.DefaultRetrievalLimit
	}
	return &AnswerUseCase{
		retriever: retriever,
		chat:      chat,
		limit:     limit,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// WithChatHistory records every answered question as a user and an assistant
// turn. Write failures are logged and never fail the answer.
func (uc *AnswerUseCase) WithChatHistory(history ports.ChatHistoryStore) *AnswerUseCase {
	uc.history = history
	return uc
}

// Answer grounds the chat model on the applicants retrieved for jobID.
// Finding nothing is a successful response with the fixed no-information text.
func (uc *AnswerUseCase) Answer(ctx context.Context, jobID, question string) (*domain.AnswerResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("question is required"))
	}

	chunks, err := uc.retriever.Retrieve(ctx, jobID, question, uc.limit)
	if err != nil {
		return nil, fmt.Errorf("retrieve applicants: %w", err)
	}
	if len(chunks) == 0 {
		slog.Info("answer_no_context", "job_id", jobID)
		response := &domain.AnswerResponse{
			Answer:  NoInformationAnswer,
			Sources: []domain.Source{},
		}
		uc.recordTurns(ctx, jobID, question, response)
		return response, nil
	}

	text, err := uc.chat.Generate(ctx, buildAnswerPrompt(question, chunks))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		text = EmptyGenerationAnswer
	}

	response := &domain.AnswerResponse{
		Answer:  text,
		Sources: buildSources(chunks),
	}
	uc.recordTurns(ctx, jobID, question, response)
	return response, nil
}

func (uc *AnswerUseCase) recordTurns(ctx context.Context, jobID, question string, response *domain.AnswerResponse) {
	if uc.history == nil {
		return
	}
	now := uc.now()
	user := &domain.ChatMessage{
		ID:        uc.newID(),
		JobID:     jobID,
		Role:      domain.ChatRoleUser,
		Content:   question,
		CreatedAt: now,
	}
	assistant := &domain.ChatMessage{
		ID:        uc.newID(),
		JobID:     jobID,
		Role:      domain.ChatRoleAssistant,
		Content:   response.Answer,
		Sources:   response.Sources,
		CreatedAt: now,
	}
	if err := uc.history.AppendChatMessages(context.WithoutCancel(ctx), user, assistant); err != nil {
		slog.Warn("chat_history_write_failed", "job_id", jobID, "error", err)
	}
}
