package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
	"github.com/kirillkom/applicant-rag/internal/core/ports"
)

type Handlers struct {
	answerer     ports.ApplicantQuestionAnswerer
	ingestor     ports.ApplicationIngestor
	diagnostics  bool
	defaultJobID string
}

func (h *Handlers) AskApplicants(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("job_id argument is required and must be a string"), nil
	}
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	answer, err := h.answerer.Answer(ctx, jobID, question)
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", "ask_applicants", "job_id", jobID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}
	return jsonResult(answer)
}

func (h *Handlers) IngestSheetURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	csvURL, err := request.RequireString("csv_url")
	if err != nil {
		return mcp.NewToolResultError("csv_url argument is required and must be a string"), nil
	}

	jobID := strings.TrimSpace(request.GetString("job_id", ""))
	if jobID == "" {
		jobID = h.defaultJobID
	}

	report, err := h.ingestor.IngestRemoteCSV(ctx, csvURL, domain.IngestOptions{
		DefaultJobID:    jobID,
		AllowDuplicates: request.GetBool("allow_duplicates", false),
		Diagnostics:     h.diagnostics,
	})
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", "ingest_sheet_url", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}
	return jsonResult(report)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
