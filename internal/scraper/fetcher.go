// Package scraper turns URLs into ScrapedDocuments.
// This file contains the per-page fetch: navigate, settle, then pull the
// title and the best content container.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"webresearch/internal/browser"
	"webresearch/internal/logging"
	"webresearch/internal/types"
)

// ContentSelectors are tried in order; semantically marked containers first,
// body last.
var ContentSelectors = []string{
	"article",
	"main",
	`[role="main"]`,
	".content",
	".post-content",
	".entry-content",
	".article-content",
	"#content",
	".main-content",
	"body",
}

// Pre-compile regex patterns to avoid recompilation overhead
var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	spaceNewlinePattern = regexp.MustCompile(` *\n *`)
)

// Fetcher extracts a ScrapedDocument from a browser page.
type Fetcher struct {
	settleDelay      time.Duration
	minContentLength int
	selectors        []string
}

// NewFetcher creates a fetcher from the scraper config.
func NewFetcher(cfg Config) *Fetcher {
	selectors := cfg.Selectors
	if len(selectors) == 0 {
		selectors = ContentSelectors
	}
	return &Fetcher{
		settleDelay:      cfg.SettleDelay,
		minContentLength: cfg.MinContentLength,
		selectors:        selectors,
	}
}

// Fetch navigates page to url and extracts its content. It never returns an
// error: failures come back as a document with Success=false. ElapsedMs is
// always set.
func (f *Fetcher) Fetch(ctx context.Context, page browser.Page, url string) types.ScrapedDocument {
	start := time.Now()
	doc := types.ScrapedDocument{URL: url}
	finish := func(err error) types.ScrapedDocument {
		doc.ElapsedMs = time.Since(start).Milliseconds()
		if err != nil {
			doc.Success = false
			doc.RawContent = ""
			doc.WordCount = 0
			doc.Error = err.Error()
			logging.ScraperWarn("Fetch failed for %s after %dms: %v", url, doc.ElapsedMs, err)
			return doc
		}
		doc.Success = true
		logging.ScraperDebug("Fetched %s: %d words in %dms", url, doc.WordCount, doc.ElapsedMs)
		return doc
	}

	if err := page.Navigate(ctx, url); err != nil {
		return finish(err)
	}

	// Deferred rendering gets one short fixed window; network idle is not awaited.
	if f.settleDelay > 0 {
		select {
		case <-time.After(f.settleDelay):
		case <-ctx.Done():
			return finish(ctx.Err())
		}
	}

	title, err := page.Title(ctx)
	if err != nil {
		logging.ScraperDebug("No title for %s: %v", url, err)
	}
	doc.Title = strings.TrimSpace(title)

	content, err := f.extractContent(ctx, page)
	if err != nil {
		return finish(err)
	}
	content = NormalizeWhitespace(content)
	if content == "" {
		return finish(errors.New("no text content"))
	}

	doc.RawContent = content
	doc.WordCount = len(strings.Fields(content))
	return finish(nil)
}

// extractContent returns the first selector's text that clears the minimum
// length. When none does, the longest candidate wins, which in practice is body.
func (f *Fetcher) extractContent(ctx context.Context, page browser.Page) (string, error) {
	var best string
	for _, sel := range f.selectors {
		text, err := page.Text(ctx, sel)
		if err != nil {
			if errors.Is(err, browser.ErrNoElement) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logging.ScraperDebug("selector %s failed: %v", sel, err)
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) > f.minContentLength {
			return text, nil
		}
		if len(text) > len(best) {
			best = text
		}
	}
	if best == "" {
		return "", fmt.Errorf("no content matched %d selectors", len(f.selectors))
	}
	return best, nil
}

// NormalizeWhitespace collapses horizontal whitespace runs to one space and
// newline runs to a single blank line, keeping paragraph breaks.
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	s = spaceNewlinePattern.ReplaceAllString(s, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
