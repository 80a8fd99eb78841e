package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/grepvec/grepvec/internal/indexer"
)

func newIndexCmd() *cobra.Command {
	var watch bool
	var prune bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the codebase, embedding only changed content",
		Long: `Index walks the configured root, chunks every document, and embeds
chunks whose content fingerprint is not yet stored. Re-running against an
unchanged codebase performs no embedding calls.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()

			docs, err := a.loader.Load()
			if err != nil {
				return err
			}

			report, err := a.indexer.Ingest(ctx, docs)
			if err != nil {
				return err
			}
			printReport(cmd, len(docs), report)

			if prune {
				removed, err := a.indexer.Prune(ctx, docs)
				if err != nil {
					return err
				}
				cmd.Printf("pruned:   %d\n", removed)
			}

			if !watch {
				return nil
			}

			w := indexer.NewWatcher(a.cfg.Root, a.loader, a.indexer, a.cfg.Loader,
				time.Duration(a.cfg.WatchDebounceMs)*time.Millisecond, a.log)
			err = w.Watch(ctx)
			if ctx.Err() != nil {
				// Interrupted by the user, not a failure.
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and re-index on file changes")
	cmd.Flags().BoolVar(&prune, "prune", false, "remove stored chunks no longer present in the codebase")

	return cmd
}

func printReport(cmd *cobra.Command, docs int, report *indexer.Report) {
	cmd.Printf("run:      %s\n", report.RunID)
	cmd.Printf("files:    %d\n", docs)
	cmd.Printf("inserted: %d\n", report.Inserted)
	cmd.Printf("skipped:  %d\n", report.Skipped)
	cmd.Printf("failed:   %d\n", report.Failed)
	cmd.Printf("elapsed:  %s\n", report.Duration.Round(time.Millisecond))
	for _, msg := range report.Errors {
		cmd.Printf("  error: %s\n", msg)
	}
}
