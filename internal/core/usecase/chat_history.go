package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
)

type ChatHistoryUseCase struct {
	store ports.ChatHistoryStore
}

func NewChatHistoryUseCase(store ports.ChatHistoryStore) *ChatHistoryUseCase {
	return &ChatHistoryUseCase{store: store}
}

// ChatHistory lists the turns of a job oldest first.
func (uc *ChatHistoryUseCase) ChatHistory(ctx context.Context, jobID string) ([]domain.ChatMessage, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat history", errors.New("job id is required"))
	}
	messages, err := uc.store.ListChatMessages(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}

func (uc *ChatHistoryUseCase) ClearChatHistory(ctx context.Context, jobID string) (int64, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "clear chat history", errors.New("job id is required"))
	}
	deleted, err := uc.store.DeleteChatMessages(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("delete chat messages: %w", err)
	}
	slog.Info("chat_history_cleared", "job_id", jobID, "deleted", deleted)
	return deleted, nil
}
