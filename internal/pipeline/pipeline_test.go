package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"webresearch/internal/browser"
	"webresearch/internal/browser/browsertest"
	"webresearch/internal/ranking"
	"webresearch/internal/scraper"
	"webresearch/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	goSentence      = "Goroutines are lightweight threads managed by the Go runtime scheduler."
	cookingSentence = "Simmer the tomato sauce slowly with garlic and fresh basil leaves."
)

func article(sentence string, n int) browsertest.Site {
	return browsertest.Site{
		Title:     "Article",
		Selectors: map[string]string{"article": strings.TrimSpace(strings.Repeat(sentence+" ", n))},
	}
}

// keywordScorer rates chunks mentioning keyword as highly relevant and
// everything else as noise.
func keywordScorer(keyword string) ranking.ScorerFunc {
	return func(_ context.Context, req ranking.ScoreRequest) ([]ranking.ChunkScore, error) {
		out := make([]ranking.ChunkScore, len(req.Previews))
		for i, p := range req.Previews {
			rel := 0.02
			if strings.Contains(strings.ToLower(p.Content), keyword) {
				rel = 0.9
			}
			out[i] = ranking.ChunkScore{ChunkIndex: p.Index, RelevanceScore: rel, QualityScore: 0.8}
		}
		return out, nil
	}
}

func newProcessor(t *testing.T, web browsertest.Web, scorer ranking.SemanticScorer, cfg Config) *Processor {
	t.Helper()
	scfg := scraper.DefaultConfig()
	scfg.SettleDelay = 0
	scfg.ScrapeTimeout = 2 * time.Second
	scfg.StaticFallback = false

	l := &browsertest.Launcher{Web: web}
	p, err := New(cfg, Stages{
		Scraper: scraper.New(scfg, browser.DefaultConfig(), scraper.WithLauncher(l.Launch)),
		Ranker:  ranking.New(ranking.DefaultConfig(), scorer),
	})
	require.NoError(t, err)
	return p
}

func TestProcessContent_PartialFailure(t *testing.T) {
	web := browsertest.Web{
		"https://a.example/go":   article(goSentence, 40),
		"https://b.example/go":   article(goSentence, 45),
		"https://c.example/go":   article(goSentence, 50),
		"https://down.example/1": {Err: errors.New("net::ERR_CONNECTION_REFUSED")},
		"https://down.example/2": {Err: errors.New("net::ERR_TIMED_OUT")},
	}
	urls := []string{
		"https://a.example/go",
		"https://down.example/1",
		"https://b.example/go",
		"https://down.example/2",
		"https://c.example/go",
	}

	var events []string
	obs := ObserverFuncs{
		ScrapingStart:    func(u []string) { events = append(events, fmt.Sprintf("scrape:%d", len(u))) },
		ScrapingComplete: func(ok, failed int) { events = append(events, fmt.Sprintf("scraped:%d/%d", ok, failed)) },
		ProcessingStart:  func(n int) { events = append(events, fmt.Sprintf("process:%d", n)) },
		ChunkingComplete: func(int) { events = append(events, "chunked") },
		AnalysisStart:    func(int) { events = append(events, "analyze") },
		AnalysisComplete: func(ranking.Stats) { events = append(events, "analyzed") },
		Complete:         func(*Result) { events = append(events, "complete") },
	}

	p := newProcessor(t, web, keywordScorer("goroutines"), DefaultConfig())
	res, err := p.ProcessContent(context.Background(), urls, "How do goroutines communicate?", obs)
	require.NoError(t, err)

	assert.Equal(t, []string{"scrape:5", "scraped:3/2", "process:3", "chunked", "analyze", "analyzed", "complete"}, events)

	assert.Equal(t, StageComplete, res.Stage)
	assert.False(t, res.Insufficient)
	assert.NoError(t, res.Err())
	_, err = uuid.Parse(res.RequestID)
	assert.NoError(t, err)

	assert.Equal(t, 5, res.Summary.TotalURLs)
	assert.Equal(t, 3, res.Summary.SuccessfulURLs)
	assert.Equal(t, 2, res.Summary.FailedURLs)
	assert.Equal(t, "shared-browser", res.Summary.ScrapeStrategy)

	require.Len(t, res.Sources, 5)
	for _, i := range []int{1, 3} {
		src := res.Sources[i]
		assert.False(t, src.Success)
		assert.NotEmpty(t, src.Error)
		assert.Zero(t, src.Chunks)
	}
	totalWords := 0
	for _, i := range []int{0, 2, 4} {
		src := res.Sources[i]
		assert.True(t, src.Success, src.Error)
		assert.Positive(t, src.OriginalWords)
		assert.Positive(t, src.CleanedWords)
		assert.Positive(t, src.Chunks)
		totalWords += src.CleanedWords
	}
	assert.Equal(t, totalWords, res.Summary.TotalWords)
	assert.InDelta(t, float64(totalWords)/3, res.Summary.AverageWords, 1e-9)

	require.NotEmpty(t, res.RankedChunks)
	assert.LessOrEqual(t, len(res.RankedChunks), ranking.DefaultConfig().Cap(res.Analysis.Complexity))
	for i, rc := range res.RankedChunks {
		assert.Equal(t, i+1, rc.Rank)
		assert.NotContains(t, rc.Chunk.SourceURL, "down.example")
		assert.Contains(t, []int{0, 2, 4}, rc.Chunk.SourceIndex)
	}
	assert.Equal(t, len(res.RankedChunks), res.Summary.RelevantChunks)
	assert.InDelta(t, 0.9, res.Summary.AverageRelevance, 1e-9)
	assert.Equal(t, res.Analysis.Type, res.Summary.QueryType)
}

func TestProcessContent_IrrelevantContent(t *testing.T) {
	web := browsertest.Web{
		"https://recipes.example/1": article(cookingSentence, 40),
		"https://recipes.example/2": article(cookingSentence, 60),
	}
	p := newProcessor(t, web, keywordScorer("quantum"), DefaultConfig())

	res, err := p.ProcessContent(context.Background(),
		[]string{"https://recipes.example/1", "https://recipes.example/2"},
		"quantum computing breakthroughs", nil)
	require.NoError(t, err)

	assert.Empty(t, res.RankedChunks)
	assert.NotNil(t, res.RankedChunks)
	assert.Zero(t, res.Filtering.FilteredChunks)
	assert.Positive(t, res.Filtering.TotalChunks)
	assert.True(t, res.Insufficient)
	assert.ErrorIs(t, res.Err(), ErrNoRelevantContent)
	assert.Equal(t, StageComplete, res.Stage)
}

func TestProcessContent_AllSourcesFail(t *testing.T) {
	p := newProcessor(t, browsertest.Web{}, keywordScorer("go"), DefaultConfig())

	res, err := p.ProcessContent(context.Background(),
		[]string{"https://nowhere.example/", "not a url"}, "what is go", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.FailedURLs)
	assert.Zero(t, res.Summary.TotalChunks)
	assert.True(t, res.Insufficient)
	assert.Zero(t, res.Summary.AverageWords)
}

func TestProcessContent_InvalidInput(t *testing.T) {
	p := newProcessor(t, browsertest.Web{}, nil, DefaultConfig())

	_, err := p.ProcessContent(context.Background(), []string{" ", ""}, "query", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, ErrNoURLs)

	_, err = p.ProcessContent(context.Background(), []string{"https://a.example"}, "  \t", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, ranking.ErrEmptyQuery)
}

func TestProcessContent_MaxURLs(t *testing.T) {
	web := browsertest.Web{
		"https://a.example/": article(goSentence, 40),
		"https://b.example/": article(goSentence, 40),
		"https://c.example/": article(goSentence, 40),
	}
	cfg := DefaultConfig()
	cfg.MaxURLs = 2
	p := newProcessor(t, web, keywordScorer("goroutines"), cfg)

	res, err := p.ProcessContent(context.Background(),
		[]string{"https://a.example/", "https://b.example/", "https://c.example/"}, "goroutines", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.TotalURLs)
	assert.Len(t, res.Sources, 2)
}

// fixedScraper returns canned documents regardless of the URLs asked for.
type fixedScraper []types.ScrapedDocument

func (s fixedScraper) ScrapeAll(context.Context, []string) ([]types.ScrapedDocument, scraper.Report) {
	return s, scraper.Report{Strategy: "fixed"}
}

func TestProcessContent_ScraperDocumentCountMismatch(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat(goSentence+" ", 40))
	doc := func(url string) types.ScrapedDocument {
		return types.ScrapedDocument{URL: url, Title: "Article", RawContent: body, WordCount: len(strings.Fields(body)), Success: true}
	}
	urls := []string{"https://a.example/", "https://b.example/", "https://c.example/"}

	run := func(t *testing.T, docs fixedScraper) *Result {
		t.Helper()
		p, err := New(DefaultConfig(), Stages{
			Scraper: docs,
			Ranker:  ranking.New(ranking.DefaultConfig(), keywordScorer("goroutines")),
		})
		require.NoError(t, err)
		res, err := p.ProcessContent(context.Background(), urls, "goroutines", nil)
		require.NoError(t, err)
		return res
	}

	t.Run("missing documents count as failures", func(t *testing.T) {
		res := run(t, fixedScraper{doc(urls[0])})
		assert.Equal(t, 3, res.Summary.TotalURLs)
		assert.Equal(t, 1, res.Summary.SuccessfulURLs)
		assert.Equal(t, 2, res.Summary.FailedURLs)
		require.Len(t, res.Sources, 3)
		for _, src := range res.Sources[1:] {
			assert.False(t, src.Success)
			assert.NotEmpty(t, src.Error)
			assert.Contains(t, urls, src.URL)
		}
		for _, rc := range res.RankedChunks {
			assert.Equal(t, 0, rc.Chunk.SourceIndex)
		}
	})

	t.Run("surplus documents are dropped", func(t *testing.T) {
		var res *Result
		require.NotPanics(t, func() {
			res = run(t, fixedScraper{doc(urls[0]), doc(urls[1]), doc(urls[2]), doc("https://extra.example/")})
		})
		assert.Equal(t, 3, res.Summary.TotalURLs)
		assert.Equal(t, 3, res.Summary.SuccessfulURLs)
		assert.Zero(t, res.Summary.FailedURLs)
		assert.Len(t, res.Sources, 3)
	})
}

func TestNew_RequiresScraper(t *testing.T) {
	_, err := New(DefaultConfig(), Stages{})
	assert.Error(t, err)
}

func TestNopObserver(t *testing.T) {
	var obs Observer = NopObserver{}
	assert.NotPanics(t, func() {
		obs.OnScrapingStart(nil)
		obs.OnComplete(&Result{})
	})
	assert.NotPanics(t, func() { ObserverFuncs{}.OnAnalysisComplete(ranking.Stats{}) })
}
