package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"citerag/internal/search"
	"citerag/internal/textutil"
)

const snippetRunes = 160

func newSearchCmd(opts *options) *cobra.Command {
	var (
		topK    int
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Show the hybrid ranking for a query",
		Long: `Run the hybrid BM25 and vector search and print the ranked chunks.

Examples:
  ragctl search --docs ./notes "backup policy"
  ragctl search --docs ./notes --filter folder=ops -k 3 snapshots`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filter, err := parseFilter(filters)
			if err != nil {
				return err
			}
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
			}()

			hits, err := a.Search.Search(ctx, search.Query{Text: strings.Join(args, " "), TopK: topK, Filter: filter})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(hits)
			}
			if len(hits) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for i, h := range hits {
				title := h.Chunk.Title()
				if title == "" {
					title = h.DocumentID
				}
				fmt.Fprintf(out, "%d. %.4f  %s#%d  %s\n", i+1, h.Score, h.DocumentID, h.ChunkIndex(), title)
				fmt.Fprintf(out, "   %s\n", snippet(h.Chunk.Text))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of results")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "metadata filter key=value (repeatable)")
	return cmd
}

func snippet(text string) string {
	text = textutil.CollapseWhitespace(text)
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "..."
}
