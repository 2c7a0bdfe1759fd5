package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"citerag/internal/app"
	"citerag/internal/config"
	"citerag/internal/contextutil"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

// options are the persistent flags shared by every subcommand.
type options struct {
	docs       string
	jsonOutput bool
	verbose    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "ragctl",
		Short: "Ingest documents and ask cited questions about them",
		Long: `ragctl builds the hybrid BM25 and vector index in memory from a directory
of markdown and text files, then searches it or answers questions with citations.

Configuration comes from the environment and .env, as for the API server.

Example usage:
  ragctl ingest --docs ./notes                  # Ingest and print statistics
  ragctl search --docs ./notes "backup policy"  # Ranked chunks
  ragctl ask --docs ./notes "How are backups taken?"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.docs, "docs", "", "documents directory (default: DOCS_PATH)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newIngestCmd(opts), newSearchCmd(opts), newAskCmd(opts))
	return rootCmd
}

// init loads configuration and installs a stderr logger.
func (o *options) init(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if o.docs != "" {
		cfg.DocsPath = o.docs
	}
	o.cfg = cfg

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	cmd.SetContext(contextutil.WithLogger(cmd.Context(), logger))
	return nil
}

// openApp builds the application and ingests the documents directory.
func (o *options) openApp(ctx context.Context) (*app.App, error) {
	if err := o.requireDocs(); err != nil {
		return nil, err
	}
	a, err := app.New(ctx, o.cfg)
	if err != nil {
		return nil, err
	}
	stats, err := a.IngestDocs(ctx)
	if err != nil && stats == nil {
		_ = a.Close()
		return nil, err
	}
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "some documents failed to ingest", "error", err)
	}
	return a, nil
}

func (o *options) requireDocs() error {
	if strings.TrimSpace(o.cfg.DocsPath) == "" {
		return errors.New("no documents directory: use --docs or set DOCS_PATH")
	}
	return nil
}

// parseFilter turns repeated key=value flags into a metadata filter.
func parseFilter(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid filter %q: want key=value", p)
		}
		filter[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return filter, nil
}
