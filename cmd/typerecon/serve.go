package main

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/typerecon/internal/tools"
	"github.com/DeusData/typerecon/internal/watcher"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stored models over MCP on stdio",
	Long: `Serve runs an MCP server on stdin/stdout with the tools index_corpus,
get_entity, search_entities, get_type_group, list_functions, list_projects
and delete_project.

With --watch, indexed corpora are re-indexed when their files change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "re-index projects when their files change")
}

func runServe(cmd *cobra.Command, args []string) error {
	r, err := openRouter()
	if err != nil {
		return fmt.Errorf("open cache dir: %w", err)
	}
	defer r.CloseAll()

	srv := tools.NewServer(r, version)
	if serveWatch {
		go watcher.New(r, srv.Index).Run(cmd.Context())
	}
	if err := srv.MCPServer().Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
