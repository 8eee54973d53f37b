package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

type embedderFake struct {
	calls []string
	err   error
	// failOn makes Embed fail for texts containing the substring.
	failOn string
}

func (f *embedderFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, &domain.ProviderError{
			Kind:       domain.ErrProviderHTTP,
			Operation:  "embed",
			URL:        "https://embed.test/models/m:embedContent",
			StatusCode: 429,
			Status:     "429 Too Many Requests",
			Body:       "quota exceeded",
		}
	}
	return textVector(text), nil
}

func (f *embedderFake) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// textVector is a tiny bag-of-letters embedding, enough to rank by overlap.
func textVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

type memoryStoreFake struct {
	mu        sync.Mutex
	chunks    []domain.ApplicationChunk
	insertErr error
	existsErr error
	searchErr error
	lookups   int
}

func (s *memoryStoreFake) Insert(_ context.Context, chunk *domain.ApplicationChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.chunks = append(s.chunks, *chunk)
	return nil
}

func (s *memoryStoreFake) ExistsApplicant(_ context.Context, jobID, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.existsErr != nil {
		return false, s.existsErr
	}
	for _, c := range s.chunks {
		if c.JobID == jobID && c.ApplicantEmail == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStoreFake) SearchSimilar(_ context.Context, jobID string, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var out []domain.RetrievedChunk
	for _, c := range s.chunks {
		if c.JobID != jobID {
			continue
		}
		out = append(out, domain.RetrievedChunk{
			ID:             c.ID,
			JobID:          c.JobID,
			ApplicantName:  c.ApplicantName,
			ApplicantEmail: c.ApplicantEmail,
			Content:        c.Content,
			Metadata:       c.Metadata,
			Score:          cosine(query, c.Embedding),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStoreFake) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type tableReaderFake struct {
	table *domain.Table
	err   error
}

func (f tableReaderFake) ReadTable(_ context.Context, filename string, body io.Reader) (*domain.Table, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	table := *f.table
	table.Source = filename
	return &table, nil
}

type fetcherFake struct {
	body string
	err  error
	url  string
}

func (f *fetcherFake) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.url = url
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

type stagingFake struct {
	files   map[string][]byte
	saveErr error
	removed []string
}

func newStagingFake() *stagingFake {
	return &stagingFake{files: map[string][]byte{}}
}

func (s *stagingFake) Save(_ context.Context, key string, data io.Reader) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.files[key] = raw
	return nil
}

func (s *stagingFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := s.files[key]
	if !ok {
		return nil, errors.New("no such staged file")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *stagingFake) Remove(_ context.Context, key string) error {
	delete(s.files, key)
	s.removed = append(s.removed, key)
	return nil
}

type chatFake struct {
	prompts []string
	text    string
	err     error
}

func (f *chatFake) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type publisherFake struct {
	reports []domain.IngestReport
	err     error
}

func (f *publisherFake) PublishIngestReport(_ context.Context, report domain.IngestReport) error {
	f.reports = append(f.reports, report)
	return f.err
}

func row(pairs ...string) domain.Row {
	out := make(domain.Row, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.Cell{Header: pairs[i], Value: pairs[i+1]})
	}
	return out
}

type historyFake struct {
	messages  []domain.ChatMessage
	appendErr error
	listErr   error
}

func (f *historyFake) AppendChatMessages(_ context.Context, messages ...*domain.ChatMessage) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	for _, m := range messages {
		f.messages = append(f.messages, *m)
	}
	return nil
}

func (f *historyFake) ListChatMessages(_ context.Context, jobID string) ([]domain.ChatMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.ChatMessage
	for _, m := range f.messages {
		if m.JobID == jobID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *historyFake) DeleteChatMessages(_ context.Context, jobID string) (int64, error) {
	kept := f.messages[:0]
	var deleted int64
	for _, m := range f.messages {
		if m.JobID == jobID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	f.messages = kept
	return deleted, nil
}
