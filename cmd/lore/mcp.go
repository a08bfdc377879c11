package main

import (
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/lore-assistant/internal/adapters/mcp"
	"github.com/kirillkom/lore-assistant/internal/core/ports"
)

var flagMCPSearchOnly bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose search_lore and ask_lore as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&flagMCPSearchOnly, "search-only", false, "Register search_lore only, without an answer provider")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, _, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	var answerer ports.Answerer
	if !flagMCPSearchOnly {
		uc, err := app.NewAnswerer(ctx, app.Config.LLM)
		if err != nil {
			return err
		}
		answerer = uc
	}

	server, err := mcpadapter.NewServer(app.SearchUC, answerer, app.Config.RAGTopK)
	if err != nil {
		return err
	}
	return server.ServeStdio()
}
