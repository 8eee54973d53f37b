package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

const NoInformationAnswer = "I couldn't find any relevant information in the applications for this job. This could mean:\n\n" +
	"1. No applications have been uploaded yet\n" +
	"2. The applications don't contain information related to your question\n" +
	"3. Try rephrasing your question\n\n" +
	"Please make sure applications have been uploaded for this job posting."

const EmptyGenerationAnswer = "Unable to generate a response. Please try again."

const SystemInstruction = `You are an HR recruiting assistant helping to analyze job applications.

Your role:
- Answer questions about candidates based on the provided application data
- Be specific and cite applicant names/emails when relevant
- If information is unclear or missing, say so
- Provide actionable insights for hiring decisions
- Compare candidates when asked
- Summarize key qualifications and experience

Important: Base your answers ONLY on the provided context. Do not make assumptions about information not present in the applications.`

const (
	contextSeparator = "\n\n---\n\n"
	snippetRunes     = 200
	snippetSuffix    = "..."
	unknownApplicant = "Unknown Applicant"
	unknownName      = "Unknown"
	unknownEmail     = "N/A"
)

func buildApplicantContext(chunks []domain.RetrievedChunk) string {
	sections := make([]string, 0, len(chunks))
	for idx, chunk := range chunks {
		name := chunk.DisplayName()
		if name == "" {
			name = unknownApplicant
		}
		sections = append(sections, fmt.Sprintf("# Applicant %d: %s\n%s", idx+1, name, chunk.Content))
	}
	return strings.Join(sections, contextSeparator)
}

func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	user := fmt.Sprintf("Question: %s\n\nJob Applications Context:\n%s", question, buildApplicantContext(chunks))
	return SystemInstruction + "\n\n" + user
}

func buildSources(chunks []domain.RetrievedChunk) []domain.Source {
	out := make([]domain.Source, 0, len(chunks))
	for _, chunk := range chunks {
		name := chunk.Name()
		if name == "" {
			name = unknownName
		}
		email := chunk.Email()
		if email == "" {
			email = unknownEmail
		}
		out = append(out, domain.Source{
			ApplicantName:  name,
			ApplicantEmail: email,
			Snippet:        snippet(chunk.Content),
		})
	}
	return out
}

// snippet cuts on runes so multi-byte names are never split.
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) > snippetRunes {
		runes = runes[:snippetRunes]
	}
	return string(runes) + snippetSuffix
}
