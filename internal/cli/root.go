// Package cli wires the pipeline components behind a cobra command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/grepvec/grepvec/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// Execute runs the root command. Cancelling ctx (e.g. on SIGINT) stops
// long-running subcommands such as watch mode and the MCP server.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "grepvec",
		Short: "Semantic code search over a local vector index",
		Long: `grepvec indexes a codebase into a local vector store and answers
natural-language queries with two-stage retrieval: nearest-neighbor
search over dense embeddings, then reranking with a cross-encoding
model. Both models run on a local Ollama instance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "grepvec.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newPruneCmd())
	root.AddCommand(newServeCmd())

	return root
}

// loadConfig resolves the effective configuration: .env file, YAML config,
// then environment overrides for the inference endpoint.
func loadConfig() (*config.Config, error) {
	// A missing .env is fine; it is a local convenience, not a requirement.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.Embedding.BaseURL = host
		cfg.Reranker.BaseURL = host
	}
	if store := os.Getenv("GREPVEC_STORE"); store != "" {
		cfg.StorePath = store
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process-wide structured logger. Logs go to stderr
// as JSON so stdout stays clean for results (and for the MCP transport).
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
