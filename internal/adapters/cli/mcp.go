package cli

import (
	"fmt"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/applicant-rag/internal/adapters/mcp"
)

func NewMCPCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the applicant tools over MCP stdio",
		Long: `Run as an MCP (Model Context Protocol) server on stdio so LLM agents can
call ask_applicants and ingest_sheet_url. Logs go to stderr.`,
		Example: `  # claude_desktop_config.json
  # { "mcpServers": { "hrrag": { "command": "hrrag", "args": ["mcp"] } } }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), load, func(s *Services) error {
				server := mcpadapter.NewServer(s.Answerer, s.Ingestor, mcpadapter.Options{
					Diagnostics:  s.Diagnostics,
					DefaultJobID: s.DefaultJobID,
				})
				slog.Info("mcp_server_starting", "transport", "stdio")
				if err := mcpserver.ServeStdio(server); err != nil {
					return fmt.Errorf("mcp server: %w", err)
				}
				return nil
			})
		},
	}
}
