// Package search discovers candidate URLs for a research query.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"webresearch/internal/logging"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// DefaultMaxResults caps how many results feed the pipeline.
const DefaultMaxResults = 5

// ErrNoResults is returned when a search succeeds but yields nothing usable.
var ErrNoResults = errors.New("no search results")

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Searcher finds pages for a query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Config controls the DuckDuckGo searcher.
type Config struct {
	Endpoint          string // HTML search endpoint
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
}

// DefaultConfig targets the DuckDuckGo HTML interface.
func DefaultConfig() Config {
	return Config{
		Endpoint:          "https://html.duckduckgo.com/html/",
		Timeout:           30 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		RequestsPerSecond: 1,
	}
}

// DuckDuckGo searches through DuckDuckGo's HTML interface, which needs no
// API key.
type DuckDuckGo struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewDuckDuckGo creates a searcher. client may be nil.
func NewDuckDuckGo(cfg Config, client *http.Client) *DuckDuckGo {
	if client == nil {
		client = &http.Client{}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &DuckDuckGo{cfg: cfg, client: client, limiter: rate.NewLimiter(limit, 1)}
}

// Search returns up to maxResults http(s) results, de-duplicated by link.
// maxResults <= 0 means DefaultMaxResults.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	logging.SearchDebug("Web search: query=%q, max_results=%d", query, maxResults)

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	searchURL := fmt.Sprintf("%s?q=%s", d.cfg.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	results, err := ParseResults(string(body), maxResults)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logging.SearchWarn("Web search returned no results for: %s", query)
		return nil, fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	logging.Search("Web search completed: %d results for %q", len(results), query)
	return results, nil
}

// ParseResults extracts results from a DuckDuckGo HTML page.
func ParseResults(htmlContent string, maxResults int) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []Result
	seen := map[string]bool{}

	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			r := extractResult(n)
			if r.Link != "" && r.Title != "" && !seen[r.Link] && isWebLink(r.Link) {
				seen[r.Link] = true
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}

	findResults(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var r Result

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				r.Link = getAttrValue(n, "href")
				r.Title = getTextContent(n)
			case hasClass(n, "result__snippet"):
				r.Snippet = getTextContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)

	r.Link = unwrapRedirect(r.Link)
	return r
}

// unwrapRedirect resolves DuckDuckGo's //duckduckgo.com/l/?uddg=<target> links.
func unwrapRedirect(link string) string {
	if !strings.Contains(link, "duckduckgo.com/l/") {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}

func isWebLink(link string) bool {
	u, err := url.Parse(link)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// getAttrValue returns the value of an attribute.
func getAttrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// getTextContent returns all text content within a node.
func getTextContent(n *html.Node) string {
	var sb strings.Builder
	var getText func(*html.Node)
	getText = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			getText(c)
		}
	}
	getText(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
