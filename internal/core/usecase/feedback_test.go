package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

type feedbackStoreFake struct {
	saved *domain.Feedback
	err   error
}

func (f *feedbackStoreFake) CreateFeedback(_ context.Context, feedback *domain.Feedback) error {
	if f.err != nil {
		return f.err
	}
	copyFeedback := *feedback
	f.saved = &copyFeedback
	return nil
}

func (f *feedbackStoreFake) GetFeedback(_ context.Context, id string) (*domain.Feedback, error) {
	if f.saved == nil || f.saved.ID != id {
		return nil, domain.WrapError(domain.ErrNotFound, "get feedback", errors.New(id))
	}
	return f.saved, nil
}

func TestRecordFeedbackAssignsIdentity(t *testing.T) {
	store := &feedbackStoreFake{}
	uc := NewFeedbackUseCase(store)
	rating := 4

	err := uc.RecordFeedback(context.Background(), &domain.Feedback{JobID: "J1", Question: "q", Answer: "a", Rating: &rating})
	if err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	if store.saved == nil || store.saved.ID == "" || store.saved.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", store.saved)
	}
}

func TestRecordFeedbackValidation(t *testing.T) {
	bad := 9
	tests := []struct {
		name     string
		feedback *domain.Feedback
	}{
		{name: "nil", feedback: nil},
		{name: "no job", feedback: &domain.Feedback{Question: "q", Answer: "a"}},
		{name: "no answer", feedback: &domain.Feedback{JobID: "J1", Question: "q"}},
		{name: "rating", feedback: &domain.Feedback{JobID: "J1", Question: "q", Answer: "a", Rating: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFeedbackUseCase(&feedbackStoreFake{}).RecordFeedback(context.Background(), tt.feedback)
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestRecordFeedbackStoreError(t *testing.T) {
	uc := NewFeedbackUseCase(&feedbackStoreFake{err: errors.New("insert failed")})
	err := uc.RecordFeedback(context.Background(), &domain.Feedback{JobID: "J1", Question: "q", Answer: "a"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetFeedbackRoundTrip(t *testing.T) {
	store := &feedbackStoreFake{}
	uc := NewFeedbackUseCase(store)
	feedback := &domain.Feedback{JobID: "J1", Question: "q", Answer: "a"}
	if err := uc.RecordFeedback(context.Background(), feedback); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}

	got, err := uc.GetFeedback(context.Background(), feedback.ID)
	if err != nil {
		t.Fatalf("GetFeedback() error = %v", err)
	}
	if got.Question != "q" {
		t.Fatalf("unexpected feedback %+v", got)
	}
	if _, err := uc.GetFeedback(context.Background(), "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.GetFeedback(context.Background(), " "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
