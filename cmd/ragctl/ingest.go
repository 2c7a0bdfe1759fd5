package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"citerag/internal/app"
	"citerag/internal/indexer"
)

func newIngestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a directory and print statistics",
		Long: `Walk the documents directory, chunk and embed every .md, .markdown and .txt
file, and print ingestion statistics.

Examples:
  ragctl ingest --docs ./notes
  ragctl ingest --docs ./notes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := opts.requireDocs(); err != nil {
				return err
			}
			a, err := app.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
			}()

			stats, ingestErr := a.IngestDocs(ctx)
			if stats == nil {
				return ingestErr
			}
			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(stats); err != nil {
					return err
				}
			} else {
				printStats(cmd, stats)
			}
			return ingestErr
		},
	}
}

func printStats(cmd *cobra.Command, s *indexer.IngestStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Documents:       %d\n", s.DocsProcessed)
	fmt.Fprintf(out, "Empty documents: %d\n", s.DocsWith0Chunks)
	fmt.Fprintf(out, "Chunks:          %d\n", s.ChunksEmbedded)
	fmt.Fprintf(out, "Errors:          %d\n", s.Errors)
	fmt.Fprintf(out, "Tokens/chunk:    min %d, max %d, mean %.1f, p95 %d\n",
		s.ChunkTokenStats.Min, s.ChunkTokenStats.Max, s.ChunkTokenStats.Mean, s.ChunkTokenStats.P95)
	fmt.Fprintf(out, "Chunker:         %s\n", s.ChunkerVersion)
	fmt.Fprintf(out, "Index version:   %s\n", s.IndexVersion)
}
