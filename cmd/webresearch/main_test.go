package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"webresearch/internal/pipeline"
	"webresearch/internal/ranking"
	"webresearch/internal/search"
	"webresearch/internal/types"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		RequestID: "req-1",
		Query:     "how do goroutines work",
		Stage:     pipeline.StageComplete,
		RankedChunks: []types.RankedChunk{{
			Chunk: types.TextChunk{
				Content:     "Goroutines are multiplexed onto OS threads.",
				SourceURL:   "https://go.dev/doc",
				SourceTitle: "Go docs",
			},
			RelevanceScore: 0.9,
			QualityScore:   0.8,
			FinalScore:     0.85,
			KeyMatches:     []string{"goroutines"},
			Rank:           1,
		}},
		Sources: []pipeline.SourceMeta{
			{Index: 0, URL: "https://go.dev/doc", Success: true, OriginalWords: 900, CleanedWords: 400, Chunks: 2},
			{Index: 1, URL: "https://down.example", Error: "HTTP 503 | upstream"},
		},
		Analysis: types.QueryAnalysis{Type: types.QueryHowTo, Complexity: types.ComplexitySimple},
	}
}

func TestResultMarkdown(t *testing.T) {
	md := resultMarkdown(sampleResult())

	assert.Contains(t, md, "# how do goroutines work")
	assert.Contains(t, md, "## 1. Go docs")
	assert.Contains(t, md, "Goroutines are multiplexed onto OS threads.")
	assert.Contains(t, md, "Matches: goroutines")
	assert.Contains(t, md, "| 1 | https://go.dev/doc | ok | 900 → 400 | 2 |")
	assert.Contains(t, md, `failed: HTTP 503 \| upstream`)
	assert.NotContains(t, md, "No sufficiently relevant content")
}

func TestResultMarkdown_Insufficient(t *testing.T) {
	res := sampleResult()
	res.RankedChunks = []types.RankedChunk{}
	res.Insufficient = true

	assert.Contains(t, resultMarkdown(res), "No sufficiently relevant content")
}

func TestWriteResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, formatJSON, sampleResult()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "req-1", decoded["request_id"])
	assert.Len(t, decoded["ranked_chunks"], 1)
	assert.Len(t, decoded["sources"], 2)
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	results := []search.Result{{Title: "Go", Link: "https://go.dev", Snippet: "The Go language"}}
	require.NoError(t, writeSearchResults(&buf, formatJSON, results))

	var decoded []search.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, results, decoded)
}

func TestPrintSummary(t *testing.T) {
	res := sampleResult()
	res.Insufficient = true
	var buf bytes.Buffer
	printSummary(&buf, res)
	assert.Contains(t, buf.String(), "No relevant content found")
}

func TestProgressObserver(t *testing.T) {
	var msgs []stageMsg
	obs := progressObserver(func(m tea.Msg) { msgs = append(msgs, m.(stageMsg)) })

	obs.OnScrapingStart([]string{"a", "b"})
	obs.OnScrapingComplete(1, 1)
	obs.OnAnalysisComplete(ranking.Stats{TotalChunks: 10, ReturnedChunks: 3})
	obs.OnComplete(&pipeline.Result{})

	require.Len(t, msgs, 4)
	assert.Equal(t, "Scraping 2 URLs", msgs[0].label)
	assert.Equal(t, "Kept 3 of 10 chunks", msgs[2].label)
	assert.Equal(t, 1.0, msgs[3].percent)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].percent, msgs[i-1].percent)
	}
}

func TestProgressModel(t *testing.T) {
	cancelled := false
	var m tea.Model = newProgressModel(func() { cancelled = true })

	m, _ = m.Update(stageMsg{label: "Scraping 2 URLs", percent: 0.05})
	m, _ = m.Update(stageMsg{label: "Scraped 2 pages, 0 failed", percent: 0.4})
	pm := m.(progressModel)
	assert.Equal(t, 0.4, pm.percent)
	assert.Equal(t, []string{"Scraping 2 URLs"}, pm.history)
	assert.Contains(t, pm.View(), "Scraped 2 pages")

	// Progress never moves backwards.
	m, _ = m.Update(stageMsg{label: "late", percent: 0.1})
	assert.Equal(t, 0.4, m.(progressModel).percent)

	m, cmd := m.Update(pipelineDoneMsg{})
	assert.True(t, m.(progressModel).done)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, cancelled)

	_, cmd = newProgressModel(func() { cancelled = true }).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, cancelled)
}

func TestRootCmd_Validation(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "absent.yaml")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"process needs a query", []string{"process", "https://go.dev"}, "--query is required"},
		{"process needs urls", []string{"process", "--query", "go"}, "requires at least 1 arg"},
		{"search needs a query", []string{"search"}, "requires at least 1 arg"},
		{"unknown format", []string{"search", "go", "--format", "xml"}, "unknown format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(append(tt.args, "--config", cfgPath))
			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
