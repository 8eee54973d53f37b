package domain

import "time"

type RetrievedChunk struct {
	ID             string         `json:"id"`
	JobID          string         `json:"job_id"`
	ApplicantName  string         `json:"applicant_name,omitempty"`
	ApplicantEmail string         `json:"applicant_email,omitempty"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Score          float64        `json:"score"`
}

// DisplayName prefers stored metadata, then the chunk columns.
func (c RetrievedChunk) DisplayName() string {
	if v := metadataString(c.Metadata, "applicant_name"); v != "" {
		return v
	}
	if c.ApplicantName != "" {
		return c.ApplicantName
	}
	if v := metadataString(c.Metadata, "applicant_email"); v != "" {
		return v
	}
	return c.ApplicantEmail
}

func (c RetrievedChunk) Name() string {
	if v := metadataString(c.Metadata, "applicant_name"); v != "" {
		return v
	}
	return c.ApplicantName
}

func (c RetrievedChunk) Email() string {
	if v := metadataString(c.Metadata, "applicant_email"); v != "" {
		return v
	}
	return c.ApplicantEmail
}

type Source struct {
	ApplicantName  string `json:"applicant_name"`
	ApplicantEmail string `json:"applicant_email"`
	Snippet        string `json:"snippet"`
}

type AnswerResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type Feedback struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Helpful   *bool     `json:"helpful,omitempty"`
	Rating    *int      `json:"rating,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func metadataString(metadata map[string]any, key string) string {
	v, ok := metadata[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of the per-job question history. Assistant turns
// carry the sources their answer was grounded on.
type ChatMessage struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
