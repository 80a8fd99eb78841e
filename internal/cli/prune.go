package cli

import (
	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove stored chunks that no longer exist in the codebase",
		Long: `Prune chunks the current codebase, collects the set of live content
fingerprints, and deletes every stored record outside that set. Indexing
never deletes on its own, so deleted and renamed files accumulate stale
records until prune runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			docs, err := a.loader.Load()
			if err != nil {
				return err
			}

			removed, err := a.indexer.Prune(cmd.Context(), docs)
			if err != nil {
				return err
			}

			cmd.Printf("pruned %d stale chunks\n", removed)
			return nil
		},
	}
}
