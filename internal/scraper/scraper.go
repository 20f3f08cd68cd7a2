package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webresearch/internal/browser"
	"webresearch/internal/logging"
	"webresearch/internal/types"

	"golang.org/x/sync/errgroup"
)

// Scraper fetches a batch of URLs concurrently. Every URL yields exactly one
// document, in input order; nothing in a batch aborts the others.
type Scraper struct {
	cfg        Config
	browserCfg browser.Config
	launch     browser.Launcher
	fetcher    *Fetcher
	static     *StaticFetcher
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithLauncher replaces the rod launcher, mainly for tests.
func WithLauncher(l browser.Launcher) Option {
	return func(s *Scraper) { s.launch = l }
}

// WithStaticFetcher replaces the static fallback fetcher. Passing nil
// disables the fallback.
func WithStaticFetcher(f *StaticFetcher) Option {
	return func(s *Scraper) { s.static = f }
}

// New creates a scraper.
func New(cfg Config, browserCfg browser.Config, opts ...Option) *Scraper {
	s := &Scraper{
		cfg:        cfg,
		browserCfg: browserCfg,
		launch:     browser.RodLauncher,
		fetcher:    NewFetcher(cfg),
	}
	if cfg.StaticFallback {
		s.static = NewStaticFetcher(cfg, nil)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report summarizes a batch for logging and statistics.
type Report struct {
	Strategy   string
	Successful int
	Failed     int
	Duration   time.Duration
}

// ScrapeAll fetches every URL and returns one document per URL in order.
func (s *Scraper) ScrapeAll(ctx context.Context, urls []string) ([]types.ScrapedDocument, Report) {
	start := time.Now()
	results := make([]types.ScrapedDocument, len(urls))

	// URLs that fail validation never reach a browser.
	var pending []int
	for i, u := range urls {
		if err := s.cfg.checkURL(u); err != nil {
			results[i] = failed(u, err, 0)
			continue
		}
		pending = append(pending, i)
	}

	report := Report{Strategy: "none"}
	if len(pending) > 0 {
		report.Strategy = s.scrapePending(ctx, urls, pending, results)
	}

	for _, d := range results {
		if d.Success {
			report.Successful++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(start)
	logging.Scraper("Scraped %d URLs via %s: %d ok, %d failed in %v",
		len(urls), report.Strategy, report.Successful, report.Failed, report.Duration)
	return results, report
}

// scrapePending tries the browser strategies and drops to static HTTP when no
// browser starts at all.
func (s *Scraper) scrapePending(ctx context.Context, urls []string, pending []int, results []types.ScrapedDocument) string {
	src, err := browser.Open(ctx, s.browserCfg, s.launch, len(pending))
	if err != nil {
		if s.static == nil {
			logging.ScraperWarn("No browser available and static fallback disabled: %v", err)
			for _, idx := range pending {
				results[idx] = failed(urls[idx], fmt.Errorf("browser unavailable: %w", err), 0)
			}
			return "unavailable"
		}
		logging.ScraperWarn("No browser available, using static fetch: %v", err)
		s.runBatch(ctx, pending, func(ctx context.Context, _ int, idx int) types.ScrapedDocument {
			return s.static.Fetch(ctx, urls[idx])
		}, urls, results)
		return "static-http"
	}
	defer src.CloseAll()

	s.runBatch(ctx, pending, func(ctx context.Context, slot int, idx int) types.ScrapedDocument {
		start := time.Now()
		page, release, err := src.PageFor(ctx, slot)
		if err != nil {
			return failed(urls[idx], err, time.Since(start).Milliseconds())
		}
		defer release()
		return s.fetcher.Fetch(ctx, page, urls[idx])
	}, urls, results)
	return string(src.Strategy())
}

type fetchFunc func(ctx context.Context, slot int, idx int) types.ScrapedDocument

// runBatch runs fn for every pending URL with a per-URL timeout. slot is the
// URL's position among pending URLs, which is the shared-browser page index.
func (s *Scraper) runBatch(ctx context.Context, pending []int, fn fetchFunc, urls []string, results []types.ScrapedDocument) {
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.MaxParallel > 0 {
		g.SetLimit(s.cfg.MaxParallel)
	}

	for slot, idx := range pending {
		g.Go(func() error {
			results[idx] = s.scrapeOne(gctx, slot, idx, urls[idx], fn)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scraper) scrapeOne(ctx context.Context, slot, idx int, url string, fn fetchFunc) types.ScrapedDocument {
	start := time.Now()
	if s.cfg.ScrapeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScrapeTimeout)
		defer cancel()
	}

	doc := fn(ctx, slot, idx)
	if !doc.Success && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		doc.Error = fmt.Sprintf("scrape timed out after %v: %s", s.cfg.ScrapeTimeout, doc.Error)
	}
	if doc.ElapsedMs == 0 {
		doc.ElapsedMs = time.Since(start).Milliseconds()
	}
	return doc
}

func failed(url string, err error, elapsedMs int64) types.ScrapedDocument {
	return types.ScrapedDocument{URL: url, Success: false, Error: err.Error(), ElapsedMs: elapsedMs}
}
