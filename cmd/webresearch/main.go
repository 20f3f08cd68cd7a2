// Command webresearch searches the web, scrapes the results and returns the
// passages most relevant to a query.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webresearch/internal/config"
	"webresearch/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cliOptions are the persistent flags shared by every command.
type cliOptions struct {
	configPath string
	verbose    bool
	timeout    time.Duration
	format     string
	tui        bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "webresearch",
		Short: "Scrape, clean, chunk and rank web content for a research query",
		Long: `webresearch turns a query into a short list of relevant passages.

Pages are rendered in headless Chrome, stripped of navigation and boilerplate,
cut into overlapping chunks and scored by a language model (Gemini or OpenAI).
Without an API key chunks are ranked on neutral fallback scores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.CloseAll()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "webresearch.yaml", "Path to YAML config")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Operation timeout")
	pf.StringVarP(&opts.format, "format", "f", formatMarkdown, "Output format: markdown or json")
	pf.BoolVar(&opts.tui, "tui", false, "Show a live progress view")

	root.AddCommand(newProcessCmd(opts), newResearchCmd(opts), newSearchCmd(opts))
	return root
}

// setup loads configuration and starts logging.
func (o *cliOptions) setup() error {
	if o.format != formatMarkdown && o.format != formatJSON {
		return fmt.Errorf("unknown format %q (valid: %s, %s)", o.format, formatMarkdown, formatJSON)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", o.configPath, err)
	}
	o.cfg = cfg

	switch {
	case cfg.Logging.DebugMode:
		if o.verbose {
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(cfg.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	case o.verbose:
		zc := zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zc.DisableStacktrace = true
		logger, err := zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.InitializeWith(logger, cfg.Logging.Categories)
	}

	logging.BootDebug("Loaded config from %s (provider=%s, headless=%v)",
		o.configPath, cfg.Semantic.Provider, cfg.Browser.Headless)
	return nil
}

// context returns a context bounded by --timeout and cancelled on SIGINT or
// SIGTERM.
func (o *cliOptions) context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
