package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// maxSnippetChars bounds the text printed per result; full bodies are
// available over MCP.
const maxSnippetChars = 500

func newQueryCmd() *cobra.Command {
	var limit int
	var topN int

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the index with a natural-language query",
		Long: `Query embeds the text, retrieves the nearest chunks by vector
distance, reranks them with the cross-encoding model, and prints the top
results. If the reranker is unavailable the stage-1 distance order is
used instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if limit == 0 {
				limit = a.cfg.Query.Limit
			}
			if topN == 0 {
				topN = a.cfg.Query.TopN
			}

			results, err := a.searcher.Query(cmd.Context(), args[0], limit, topN)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				cmd.Println("no results")
				return nil
			}

			for i, r := range results {
				cmd.Printf("%d. %s:%d-%d  score=%.4f distance=%.4f\n",
					i+1, r.Metadata.SourcePath, r.Metadata.StartLine, r.Metadata.EndLine,
					r.Score, r.Distance)
				cmd.Println(snippet(r.Text))
				cmd.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "candidate count retrieved before reranking (default from config)")
	cmd.Flags().IntVarP(&topN, "top-n", "n", 0, "number of results to print (default from config)")

	return cmd
}

// snippet truncates chunk text for terminal display, cutting on a rune
// boundary.
func snippet(text string) string {
	text = strings.TrimRight(text, "\n")
	runes := []rune(text)
	if len(runes) <= maxSnippetChars {
		return text
	}
	return string(runes[:maxSnippetChars]) + "..."
}
