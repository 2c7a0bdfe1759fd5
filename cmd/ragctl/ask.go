package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"citerag/internal/rag"
)

func newAskCmd(opts *options) *cobra.Command {
	var (
		topK    int
		lang    string
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question with citations",
		Long: `Retrieve context for the question and answer it with numbered citations.
Without LLM_BASE_URL the answer is the retrieved context itself.

Examples:
  ragctl ask --docs ./notes "How are backups taken?"
  ragctl ask --docs ./notes --lang pt-BR "Como os backups são feitos?"`,
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

			res, err := a.Engine.Ask(ctx, rag.AskRequest{
				Question: strings.Join(args, " "),
				TopK:     topK,
				Lang:     lang,
				Filter:   filter,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(out, res.Answer)
			if len(res.Citations) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for i, c := range res.Citations {
					fmt.Fprintf(out, "  %d. %s (%s#%d)\n", i+1, c.Title, c.DocumentID, c.ChunkIndex)
				}
			}
			if res.Notes != rag.NoteNone {
				fmt.Fprintf(out, "\nnote: %s\n", res.Notes)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "context chunks (default: ASK_TOP_K)")
	cmd.Flags().StringVar(&lang, "lang", "", "answer language, e.g. en or pt-BR (default: detect)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "metadata filter key=value (repeatable)")
	return cmd
}
