package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"webresearch/internal/chunker"
	"webresearch/internal/cleaner"
	"webresearch/internal/config"
	"webresearch/internal/logging"
	"webresearch/internal/pipeline"
	"webresearch/internal/ranking"
	"webresearch/internal/scraper"
	"webresearch/internal/search"
	"webresearch/internal/semantic"

	"github.com/spf13/cobra"
)

func newProcessCmd(opts *cliOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "process [url...]",
		Short: "Run the content pipeline over the given URLs",
		Example: `  webresearch process https://go.dev/doc/effective_go https://go.dev/blog/pipelines \
    --query "How do Go pipelines handle cancellation?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" {
				return errors.New("--query is required")
			}
			ctx, cancel := opts.context()
			defer cancel()
			return opts.runPipeline(ctx, args, query)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Research query the content is ranked against")
	return cmd
}

func newResearchCmd(opts *cliOptions) *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "research [query]",
		Short: "Search the web for a query, then run the pipeline over the hits",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			ctx, cancel := opts.context()
			defer cancel()

			results, err := opts.search(ctx, query, maxResults)
			if err != nil {
				return err
			}
			urls := make([]string, len(results))
			for i, r := range results {
				urls[i] = r.Link
			}
			logging.Search("Processing %d search hits for %q", len(urls), query)
			return opts.runPipeline(ctx, urls, query)
		},
	}
	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "Search hits to process (default from config)")
	return cmd
}

func newSearchCmd(opts *cliOptions) *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Print web search hits for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()

			results, err := opts.search(ctx, strings.Join(args, " "), maxResults)
			if err != nil {
				return err
			}
			return writeSearchResults(cmd.OutOrStdout(), opts.format, results)
		},
	}
	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "Maximum hits (default from config)")
	return cmd
}

func (o *cliOptions) search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	if maxResults <= 0 {
		maxResults = o.cfg.Search.MaxResults
	}
	var s search.Searcher = search.NewDuckDuckGo(o.cfg.Search.Options(), nil)
	results, err := s.Search(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

func (o *cliOptions) runPipeline(ctx context.Context, urls []string, query string) error {
	proc, err := buildProcessor(ctx, o.cfg)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, obs pipeline.Observer) (*pipeline.Result, error) {
		return proc.ProcessContent(ctx, urls, query, obs)
	}

	var res *pipeline.Result
	if o.tui {
		res, err = runWithProgress(ctx, run)
	} else {
		res, err = run(ctx, newLineObserver(os.Stderr))
	}
	if err != nil {
		return err
	}

	if err := writeResult(os.Stdout, o.format, res); err != nil {
		return err
	}
	printSummary(os.Stderr, res)
	return nil
}

// buildProcessor wires every stage from configuration.
func buildProcessor(ctx context.Context, cfg *config.Config) (*pipeline.Processor, error) {
	scorer, err := semantic.NewScorer(ctx, cfg.Semantic.Options())
	if err != nil {
		return nil, fmt.Errorf("create scorer: %w", err)
	}
	if scorer == nil {
		logging.BootWarn("No scoring API key configured; ranking uses fallback scores")
	}

	return pipeline.New(cfg.Pipeline.Options(), pipeline.Stages{
		Scraper: scraper.New(cfg.Scraper.Options(), cfg.Browser.Options()),
		Cleaner: cleaner.New(cfg.Cleaner.Options()),
		Chunker: chunker.New(cfg.Chunker.Options()),
		Ranker:  ranking.New(cfg.Ranking.Options(), scorer),
	})
}
