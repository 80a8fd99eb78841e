package cli

import (
	"github.com/spf13/cobra"

	"github.com/grepvec/grepvec/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over MCP on stdio",
		Long: `Serve starts an MCP server on stdio exposing index_codebase,
search_code, and get_status tools, so coding agents can query the index
directly. Logs go to stderr; stdout carries only the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			srv := mcp.NewServer(a.cfg, a.log, a.loader, a.indexer, a.searcher, a.store)
			return srv.Serve(cmd.Context())
		},
	}
}
