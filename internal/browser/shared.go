package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"webresearch/internal/logging"
)

// SharedBrowser pre-creates pages on a single browser process so that a small
// batch pays browser startup once.
type SharedBrowser struct {
	cfg    Config
	launch Launcher

	mu      sync.Mutex
	browser Browser
	pages   []Page // nil entries are slots whose creation failed
	closed  bool
}

// NewSharedBrowser creates an uninitialized shared browser.
func NewSharedBrowser(cfg Config, launch Launcher) *SharedBrowser {
	return &SharedBrowser{cfg: cfg, launch: launch}
}

// Initialize launches the browser and provisions min(urlCount, PageBudget)
// pages. A page that fails to open leaves an unusable slot; only a launch
// failure or every page failing is an error.
func (s *SharedBrowser) Initialize(ctx context.Context, urlCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.browser != nil {
		return nil
	}

	n := min(urlCount, s.cfg.PageBudget())
	if n <= 0 {
		return nil
	}

	b, err := s.launch(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("launch shared browser: %w", err)
	}

	pages := make([]Page, n)
	var errs []error
	for i := range pages {
		p, err := b.NewPage(ctx)
		if err != nil {
			logging.BrowserWarn("Shared browser: page %d unavailable: %v", i, err)
			errs = append(errs, err)
			continue
		}
		pages[i] = p
	}
	if len(errs) == n {
		closeQuietly("shared browser", b)
		return fmt.Errorf("no pages could be created: %w", errors.Join(errs...))
	}

	s.browser = b
	s.pages = pages
	logging.Browser("Shared browser ready with %d/%d pages", n-len(errs), n)
	return nil
}

// Page returns the pre-created page at index.
func (s *SharedBrowser) Page(index int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if index < 0 || index >= len(s.pages) {
		return nil, fmt.Errorf("%w: %d (provisioned %d)", ErrPageOutOfRange, index, len(s.pages))
	}
	if s.pages[index] == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrPageUnavailable, index)
	}
	return s.pages[index], nil
}

// Provisioned returns how many page slots Initialize created.
func (s *SharedBrowser) Provisioned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// PageFor implements PageSource. Pages stay open until CloseAll, so the
// release func does nothing.
func (s *SharedBrowser) PageFor(_ context.Context, index int) (Page, func(), error) {
	p, err := s.Page(index)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {}, nil
}

// Strategy implements PageSource.
func (s *SharedBrowser) Strategy() Strategy { return StrategyShared }

// CloseAll releases every page and the browser. It is idempotent and never
// panics; close errors are logged and dropped.
func (s *SharedBrowser) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for i, p := range s.pages {
		if p != nil {
			closeQuietly(fmt.Sprintf("page %d", i), p)
		}
	}
	s.pages = nil
	if s.browser != nil {
		closeQuietly("shared browser", s.browser)
		s.browser = nil
	}
}

type closer interface{ Close() error }

func closeQuietly(what string, c closer) {
	defer func() {
		if r := recover(); r != nil {
			logging.BrowserError("panic closing %s: %v", what, r)
		}
	}()
	if err := c.Close(); err != nil {
		logging.BrowserWarn("close %s: %v", what, err)
	}
}
