package mcpadapter

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/applicant-rag/internal/core/ports"
)

const (
	serverName    = "Applicant RAG"
	serverVersion = "0.1.0"
)

// Options tune the ingestion tool. DefaultJobID applies when a call omits job_id.
type Options struct {
	Diagnostics  bool
	DefaultJobID string
}

// NewServer builds a stdio-ready MCP server exposing the applicant tools.
func NewServer(answerer ports.ApplicantQuestionAnswerer, ingestor ports.ApplicationIngestor, opts Options) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer(serverName, serverVersion)
	RegisterTools(server, answerer, ingestor, opts)
	return server
}

func RegisterTools(
	server *mcpserver.MCPServer,
	answerer ports.ApplicantQuestionAnswerer,
	ingestor ports.ApplicationIngestor,
	opts Options,
) *Handlers {
	handlers := &Handlers{
		answerer:     answerer,
		ingestor:     ingestor,
		diagnostics:  opts.Diagnostics,
		defaultJobID: strings.TrimSpace(opts.DefaultJobID),
	}

	server.AddTool(mcp.Tool{
		Name:        "ask_applicants",
		Description: "Answer a question about the applicants of one job, grounded on their ingested applications. Returns the answer and the applicant sources used.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job whose applicants are searched",
				},
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question about the applicants",
				},
			},
			Required: []string{"job_id", "question"},
		},
	}, handlers.AskApplicants)

	server.AddTool(mcp.Tool{
		Name:        "ingest_sheet_url",
		Description: "Download a CSV export (for example a Google Sheet export link) and ingest each row as an application for the job.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Default job id for rows without a job column; falls back to the server default",
				},
				"csv_url": map[string]interface{}{
					"type":        "string",
					"description": "http(s) URL of the CSV export",
				},
				"allow_duplicates": map[string]interface{}{
					"type":        "boolean",
					"description": "Ingest rows even when the applicant email already exists for the job",
					"default":     false,
				},
			},
			Required: []string{"csv_url"},
		},
	}, handlers.IngestSheetURL)

	return handlers
}
