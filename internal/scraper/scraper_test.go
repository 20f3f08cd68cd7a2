package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webresearch/internal/browser"
	"webresearch/internal/browser/browsertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longText = strings.Repeat("Go routines communicate by sharing channels rather than memory. ", 4)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SettleDelay = 0
	cfg.ScrapeTimeout = 2 * time.Second
	cfg.StaticFallback = false
	return cfg
}

func newTestPage(t *testing.T, web browsertest.Web) browser.Page {
	t.Helper()
	l := &browsertest.Launcher{Web: web}
	b, err := l.Launch(context.Background(), browser.DefaultConfig())
	require.NoError(t, err)
	p, err := b.NewPage(context.Background())
	require.NoError(t, err)
	return p
}

func TestFetch_SelectorPriority(t *testing.T) {
	tests := []struct {
		name      string
		selectors map[string]string
		want      string
	}{
		{
			name:      "article wins over body",
			selectors: map[string]string{"article": longText, "body": "nav " + longText},
			want:      strings.TrimSpace(longText),
		},
		{
			name:      "short article skipped for main",
			selectors: map[string]string{"article": "too short", "main": longText, "body": "x"},
			want:      strings.TrimSpace(longText),
		},
		{
			name:      "aria main role",
			selectors: map[string]string{`[role="main"]`: longText, "body": "menu"},
			want:      strings.TrimSpace(longText),
		},
		{
			name:      "short body is still accepted",
			selectors: map[string]string{"body": "Just a little text"},
			want:      "Just a little text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newTestPage(t, browsertest.Web{
				"https://example.com/a": {Title: "  Example  ", Selectors: tt.selectors},
			})
			doc := NewFetcher(testConfig()).Fetch(context.Background(), page, "https://example.com/a")
			require.True(t, doc.Success, doc.Error)
			assert.Equal(t, "Example", doc.Title)
			assert.Equal(t, tt.want, doc.RawContent)
			assert.Equal(t, len(strings.Fields(tt.want)), doc.WordCount)
		})
	}
}

func TestFetch_NavigationFailure(t *testing.T) {
	page := newTestPage(t, browsertest.Web{
		"https://down.example": {Err: errors.New("net::ERR_CONNECTION_REFUSED")},
	})
	doc := NewFetcher(testConfig()).Fetch(context.Background(), page, "https://down.example")

	assert.False(t, doc.Success)
	assert.Equal(t, "https://down.example", doc.URL)
	assert.Empty(t, doc.RawContent)
	assert.Contains(t, doc.Error, "ERR_CONNECTION_REFUSED")
	assert.GreaterOrEqual(t, doc.ElapsedMs, int64(0))
}

func TestFetch_EmptyPage(t *testing.T) {
	page := newTestPage(t, browsertest.Web{"https://blank.example": {Title: "Blank"}})
	doc := NewFetcher(testConfig()).Fetch(context.Background(), page, "https://blank.example")
	assert.False(t, doc.Success)
	assert.NotEmpty(t, doc.Error)
}

func TestFetch_SettleDelayHonoursContext(t *testing.T) {
	page := newTestPage(t, browsertest.Web{"https://slow.example": {Selectors: map[string]string{"body": longText}}})
	cfg := testConfig()
	cfg.SettleDelay = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	doc := NewFetcher(cfg).Fetch(ctx, page, "https://slow.example")
	assert.False(t, doc.Success)
	assert.Contains(t, doc.Error, "deadline")
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "Title\r\n\r\n\r\n\r\nFirst   line\t\twith  gaps  \n   next line\n\n\n\nLast"
	assert.Equal(t, "Title\n\nFirst line with gaps\nnext line\n\nLast", NormalizeWhitespace(in))
}

func TestScrapeAll_PartialFailure(t *testing.T) {
	web := browsertest.Web{}
	var urls []string
	for i := 0; i < 5; i++ {
		u := fmt.Sprintf("https://site%d.example/page", i)
		urls = append(urls, u)
		site := browsertest.Site{Title: fmt.Sprintf("Site %d", i), Selectors: map[string]string{"article": longText}}
		if i == 1 || i == 3 {
			site.Err = errors.New("net::ERR_NAME_NOT_RESOLVED")
		}
		web[u] = site
	}
	l := &browsertest.Launcher{Web: web}

	s := New(testConfig(), browser.DefaultConfig(), WithLauncher(l.Launch))
	docs, report := s.ScrapeAll(context.Background(), urls)

	require.Len(t, docs, 5)
	for i, d := range docs {
		assert.Equal(t, urls[i], d.URL, "order must follow input")
		assert.Equal(t, i != 1 && i != 3, d.Success, "doc %d", i)
	}
	assert.Equal(t, 3, report.Successful)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, string(browser.StrategyShared), report.Strategy)

	// The batch always releases its browser.
	for _, b := range l.Browsers() {
		assert.Equal(t, 1, b.Closed())
	}
}

func TestScrapeAll_LargeBatchUsesPool(t *testing.T) {
	web := browsertest.Web{}
	var urls []string
	for i := 0; i < 12; i++ {
		u := fmt.Sprintf("https://pool.example/%d", i)
		urls = append(urls, u)
		web[u] = browsertest.Site{Selectors: map[string]string{"main": longText}}
	}
	l := &browsertest.Launcher{Web: web}

	docs, report := New(testConfig(), browser.DefaultConfig(), WithLauncher(l.Launch)).ScrapeAll(context.Background(), urls)

	assert.Equal(t, string(browser.StrategyPool), report.Strategy)
	assert.Equal(t, 12, report.Successful)
	assert.LessOrEqual(t, l.Launches(), 3)
	for _, d := range docs {
		assert.True(t, d.Success)
	}
	for _, b := range l.Browsers() {
		assert.Equal(t, 0, b.OpenPages())
	}
}

func TestScrapeAll_PerURLTimeout(t *testing.T) {
	web := browsertest.Web{
		"https://fast.example": {Selectors: map[string]string{"body": longText}},
		"https://hang.example": {Delay: time.Minute, Selectors: map[string]string{"body": longText}},
	}
	l := &browsertest.Launcher{Web: web}
	cfg := testConfig()
	cfg.ScrapeTimeout = 50 * time.Millisecond

	start := time.Now()
	docs, _ := New(cfg, browser.DefaultConfig(), WithLauncher(l.Launch)).
		ScrapeAll(context.Background(), []string{"https://fast.example", "https://hang.example"})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, docs[0].Success)
	assert.False(t, docs[1].Success)
	assert.Contains(t, docs[1].Error, "timed out")
}

func TestScrapeAll_InvalidAndBlocked(t *testing.T) {
	web := browsertest.Web{"https://ok.example": {Selectors: map[string]string{"body": longText}}}
	l := &browsertest.Launcher{Web: web}
	cfg := testConfig()
	cfg.BlockedDomains = []string{"tracker.example"}

	docs, report := New(cfg, browser.DefaultConfig(), WithLauncher(l.Launch)).
		ScrapeAll(context.Background(), []string{"not a url", "https://ads.tracker.example/x", "https://ok.example"})

	assert.Contains(t, docs[0].Error, ErrInvalidURL.Error())
	assert.Contains(t, docs[1].Error, ErrBlockedDomain.Error())
	assert.True(t, docs[2].Success)
	assert.Equal(t, 2, report.Failed)
}

func TestScrapeAll_StaticFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><title>Static</title><script>var x = 1;</script></head>
<body><nav>Home About</nav><article><p>%s</p><p>Second paragraph.</p></article></body></html>`, longText)
	}))
	defer ts.Close()

	l := &browsertest.Launcher{FailLaunches: 100}
	cfg := testConfig()
	s := New(cfg, browser.DefaultConfig(), WithLauncher(l.Launch), WithStaticFetcher(NewStaticFetcher(cfg, ts.Client())))

	docs, report := s.ScrapeAll(context.Background(), []string{ts.URL})
	require.True(t, docs[0].Success, docs[0].Error)
	assert.Equal(t, "static-http", report.Strategy)
	assert.Equal(t, "Static", docs[0].Title)
	assert.Contains(t, docs[0].RawContent, "Second paragraph.")
	assert.NotContains(t, docs[0].RawContent, "var x")
	assert.NotContains(t, docs[0].RawContent, "Home About")
}

func TestScrapeAll_NoBrowserNoFallback(t *testing.T) {
	l := &browsertest.Launcher{FailLaunches: 100}
	docs, report := New(testConfig(), browser.DefaultConfig(), WithLauncher(l.Launch)).
		ScrapeAll(context.Background(), []string{"https://a.example", "https://b.example"})

	assert.Equal(t, 2, report.Failed)
	for _, d := range docs {
		assert.Contains(t, d.Error, "browser unavailable")
	}
}
