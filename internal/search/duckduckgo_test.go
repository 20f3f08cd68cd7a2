package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultHTML(link, title, snippet string, extraClass string) string {
	return fmt.Sprintf(`<div class="result results_links results_links_deep web-result %s">
  <h2 class="result__title"><a class="result__a" href="%s">%s</a></h2>
  <a class="result__snippet" href="%s">%s</a>
</div>`, extraClass, link, title, link, snippet)
}

func page(results ...string) string {
	return `<html><body><div id="links" class="results">` + strings.Join(results, "\n") + `</div></body></html>`
}

func TestParseResults(t *testing.T) {
	body := page(
		resultHTML("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc", "Go <b>Documentation</b>", "The Go   docs.", ""),
		resultHTML("https://ads.example/buy", "Sponsored", "Buy now", "result--ad"),
		resultHTML("https://go.dev/doc/", "Duplicate", "dup", ""),
		resultHTML("javascript:void(0)", "Script", "nope", ""),
		resultHTML("https://pkg.go.dev/", "Packages", "Find Go packages.", ""),
	)

	got, err := ParseResults(body, 10)
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Title: "Go Documentation", Snippet: "The Go docs.", Link: "https://go.dev/doc/"},
		{Title: "Packages", Snippet: "Find Go packages.", Link: "https://pkg.go.dev/"},
	}, got)
}

func TestParseResults_Cap(t *testing.T) {
	var rs []string
	for i := 0; i < 8; i++ {
		rs = append(rs, resultHTML(fmt.Sprintf("https://site%d.example/", i), fmt.Sprintf("Site %d", i), "", ""))
	}
	got, err := ParseResults(page(rs...), DefaultMaxResults)
	require.NoError(t, err)
	assert.Len(t, got, DefaultMaxResults)
}

func TestDuckDuckGo_Search(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, page(resultHTML("https://go.dev/", "Go", "The Go language.", "")))
	}))
	defer ts.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = ts.URL + "/html/"
	cfg.RequestsPerSecond = 0

	got, err := NewDuckDuckGo(cfg, ts.Client()).Search(context.Background(), "golang channels", 0)
	require.NoError(t, err)
	assert.Equal(t, "golang channels", gotQuery)
	require.Len(t, got, 1)
	assert.Equal(t, "https://go.dev/", got[0].Link)
}

func TestDuckDuckGo_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "fail" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, page())
	}))
	defer ts.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = ts.URL
	cfg.RequestsPerSecond = 0
	d := NewDuckDuckGo(cfg, ts.Client())

	_, err := d.Search(context.Background(), "fail", 5)
	assert.ErrorContains(t, err, "HTTP 429")

	_, err = d.Search(context.Background(), "nothing here", 5)
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = d.Search(context.Background(), "   ", 5)
	assert.Error(t, err)
}
