package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
)

type FeedbackUseCase struct {
	store ports.FeedbackStore
}

func NewFeedbackUseCase(store ports.FeedbackStore) *FeedbackUseCase {
	return &FeedbackUseCase{store: store}
}

func (uc *FeedbackUseCase) RecordFeedback(ctx context.Context, feedback *domain.Feedback) error {
	if feedback == nil {
		return domain.WrapError(domain.ErrInvalidInput, "record feedback", errors.New("feedback is required"))
	}
	if strings.TrimSpace(feedback.JobID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record feedback", errors.New("job id is required"))
	}
	if strings.TrimSpace(feedback.Question) == "" || strings.TrimSpace(feedback.Answer) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record feedback", errors.New("question and answer are required"))
	}
	if feedback.Rating != nil && (*feedback.Rating < 1 || *feedback.Rating > 5) {
		return domain.WrapError(domain.ErrInvalidInput, "record feedback", fmt.Errorf("rating %d out of range 1..5", *feedback.Rating))
	}

	feedback.ID = uuid.NewString()
	feedback.CreatedAt = time.Now().UTC()
	if err := uc.store.CreateFeedback(ctx, feedback); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (uc *FeedbackUseCase) GetFeedback(ctx context.Context, id string) (*domain.Feedback, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get feedback", errors.New("feedback id is required"))
	}
	return uc.store.GetFeedback(ctx, id)
}
