package browser

import (
	"context"
	"fmt"

	"webresearch/internal/logging"
)

// Strategy names how a batch gets its pages.
type Strategy string

const (
	StrategyShared Strategy = "shared-browser"
	StrategyPool   Strategy = "browser-pool"
)

// PageSource hands out pages for the URL at index.
type PageSource interface {
	// PageFor returns a page exclusive to the caller until release is called.
	PageFor(ctx context.Context, index int) (Page, func(), error)
	// CloseAll is idempotent and never panics.
	CloseAll()
	Strategy() Strategy
}

var (
	_ PageSource = (*SharedBrowser)(nil)
	_ PageSource = (*Pool)(nil)
)

// Open picks the strategy for a batch of urlCount URLs, once. Batches within
// the page budget try one shared browser; larger batches, or a shared browser
// that fails to start, use the pool. An error means no browser could start.
func Open(ctx context.Context, cfg Config, launch Launcher, urlCount int) (PageSource, error) {
	if launch == nil {
		launch = RodLauncher
	}

	if urlCount <= cfg.PageBudget() {
		shared := NewSharedBrowser(cfg, launch)
		err := shared.Initialize(ctx, urlCount)
		if err == nil {
			return shared, nil
		}
		shared.CloseAll()
		logging.BrowserWarn("Shared browser failed, falling back to pool: %v", err)
	}

	pool := NewPool(cfg, launch)
	if err := pool.Warm(ctx); err != nil {
		pool.CloseAll()
		return nil, fmt.Errorf("open browser pool: %w", err)
	}
	return pool, nil
}
