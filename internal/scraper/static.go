package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webresearch/internal/logging"
	"webresearch/internal/types"

	"golang.org/x/net/html"
)

// StaticFetcher fetches pages over plain HTTP and walks the parsed DOM with
// the same selector table the browser path uses. JavaScript-rendered pages
// come back thin, so it only runs when no browser can be started.
type StaticFetcher struct {
	client           *http.Client
	userAgent        string
	maxBodyBytes     int64
	minContentLength int
	selectors        []string
}

// NewStaticFetcher creates a static fetcher. client may be nil.
func NewStaticFetcher(cfg Config, client *http.Client) *StaticFetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.ScrapeTimeout}
	}
	selectors := cfg.Selectors
	if len(selectors) == 0 {
		selectors = ContentSelectors
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	return &StaticFetcher{
		client:           client,
		userAgent:        cfg.UserAgent,
		maxBodyBytes:     maxBody,
		minContentLength: cfg.MinContentLength,
		selectors:        selectors,
	}
}

// Fetch downloads url and extracts title and content. Never returns an error.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) types.ScrapedDocument {
	start := time.Now()
	doc := types.ScrapedDocument{URL: url}

	title, content, err := f.fetch(ctx, url)
	doc.ElapsedMs = time.Since(start).Milliseconds()
	if err != nil {
		doc.Error = err.Error()
		logging.ScraperWarn("Static fetch failed for %s: %v", url, err)
		return doc
	}
	doc.Title = title
	doc.RawContent = content
	doc.WordCount = len(strings.Fields(content))
	doc.Success = true
	return doc
}

func (f *StaticFetcher) fetch(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/plain") {
		return "", NormalizeWhitespace(string(body)), nil
	}

	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	title, content := ExtractFromHTML(root, f.selectors, f.minContentLength)
	if content == "" {
		return "", "", errors.New("no text content")
	}
	return title, content, nil
}

// ExtractFromHTML applies the selector table to a parsed document.
func ExtractFromHTML(root *html.Node, selectors []string, minLength int) (title, content string) {
	title = strings.TrimSpace(findTitle(root))

	var best string
	for _, sel := range selectors {
		n := findFirst(root, compileSelector(sel))
		if n == nil {
			continue
		}
		text := NormalizeWhitespace(nodeText(n))
		if len(text) > minLength {
			return title, text
		}
		if len(text) > len(best) {
			best = text
		}
	}
	return title, best
}

// simpleSelector supports the forms used in ContentSelectors: tag, #id,
// .class and [attr="value"].
type simpleSelector struct {
	tag, id, class, attr, value string
}

func compileSelector(sel string) simpleSelector {
	sel = strings.TrimSpace(sel)
	switch {
	case strings.HasPrefix(sel, "#"):
		return simpleSelector{id: sel[1:]}
	case strings.HasPrefix(sel, "."):
		return simpleSelector{class: sel[1:]}
	case strings.HasPrefix(sel, "[") && strings.HasSuffix(sel, "]"):
		name, val, _ := strings.Cut(sel[1:len(sel)-1], "=")
		return simpleSelector{attr: name, value: strings.Trim(val, `"'`)}
	default:
		return simpleSelector{tag: sel}
	}
}

func (s simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch {
	case s.tag != "":
		return n.Data == s.tag
	case s.id != "":
		return getAttrValue(n, "id") == s.id
	case s.class != "":
		for _, c := range strings.Fields(getAttrValue(n, "class")) {
			if c == s.class {
				return true
			}
		}
		return false
	case s.attr != "":
		return getAttrValue(n, s.attr) == s.value
	}
	return false
}

func findFirst(n *html.Node, sel simpleSelector) *html.Node {
	if sel.matches(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, sel); found != nil {
			return found
		}
	}
	return nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true, "head": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "tr": true, "br": true, "header": true, "footer": true,
}

// nodeText mirrors innerText closely enough: block elements break lines.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && skippedElements[node.Data] {
			return
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if node.Type == html.ElementNode && blockElements[node.Data] {
			sb.WriteString("\n\n")
		}
	}
	walk(n)
	return sb.String()
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
