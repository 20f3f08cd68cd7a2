package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"webresearch/internal/pipeline"
	"webresearch/internal/search"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	formatMarkdown = "markdown"
	formatJSON     = "json"

	renderWidth = 100
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

func writeResult(w io.Writer, format string, res *pipeline.Result) error {
	if format == formatJSON {
		return writeJSON(w, res)
	}
	_, err := io.WriteString(w, renderMarkdown(resultMarkdown(res)))
	return err
}

func writeSearchResults(w io.Writer, format string, results []search.Result) error {
	if format == formatJSON {
		return writeJSON(w, results)
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **%s**  \n   %s\n", i+1, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   > %s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, renderMarkdown(sb.String()))
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderMarkdown renders md for the terminal, returning it unchanged if
// glamour cannot.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func resultMarkdown(res *pipeline.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", res.Query)
	fmt.Fprintf(&sb, "_%s query, %s complexity. Request `%s`._\n\n",
		res.Analysis.Type, res.Analysis.Complexity, res.RequestID)

	if res.Insufficient {
		sb.WriteString("> No sufficiently relevant content was found for this query.\n\n")
	}

	for _, rc := range res.RankedChunks {
		title := rc.Chunk.SourceTitle
		if title == "" {
			title = rc.Chunk.SourceURL
		}
		fmt.Fprintf(&sb, "## %d. %s\n\n", rc.Rank, title)
		fmt.Fprintf(&sb, "<%s>  \n", rc.Chunk.SourceURL)
		fmt.Fprintf(&sb, "score **%.2f** (relevance %.2f, quality %.2f, diversity %.2f)\n\n",
			rc.FinalScore, rc.RelevanceScore, rc.QualityScore, rc.DiversityScore)
		if len(rc.KeyMatches) > 0 {
			fmt.Fprintf(&sb, "Matches: %s\n\n", strings.Join(rc.KeyMatches, ", "))
		}
		sb.WriteString(rc.Chunk.Content)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Sources\n\n")
	sb.WriteString("| # | URL | Status | Words | Chunks |\n")
	sb.WriteString("|---|-----|--------|-------|--------|\n")
	for _, src := range res.Sources {
		status := "ok"
		words := fmt.Sprintf("%d → %d", src.OriginalWords, src.CleanedWords)
		if !src.Success {
			status = "failed: " + escapeCell(src.Error)
			words = "-"
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %d |\n", src.Index+1, src.URL, status, words, src.Chunks)
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// printSummary writes the styled request summary box.
func printSummary(w io.Writer, res *pipeline.Result) {
	s := res.Summary
	rows := [][2]string{
		{"Sources", fmt.Sprintf("%d ok, %d failed (%s)", s.SuccessfulURLs, s.FailedURLs, s.ScrapeStrategy)},
		{"Words", fmt.Sprintf("%d total, %.0f per source", s.TotalWords, s.AverageWords)},
		{"Chunks", fmt.Sprintf("%d relevant of %d", s.RelevantChunks, s.TotalChunks)},
		{"Relevance", fmt.Sprintf("%.2f average", s.AverageRelevance)},
		{"Timing", fmt.Sprintf("scrape %s, process %s, rank %s",
			res.Timings.Scraping.Round(time.Millisecond), res.Timings.Processing.Round(time.Millisecond), res.Timings.Ranking.Round(time.Millisecond))},
	}
	if res.Filtering.FallbackBatches > 0 {
		rows = append(rows, [2]string{"Scoring", fmt.Sprintf("%d of %d batches on fallback scores",
			res.Filtering.FallbackBatches, res.Filtering.ScoredBatches+res.Filtering.FallbackBatches)})
	}

	lines := make([]string, 0, len(rows)+1)
	for _, r := range rows {
		lines = append(lines, labelStyle.Width(10).Render(r[0])+valueStyle.Render(r[1]))
	}
	if res.Insufficient {
		lines = append(lines, warnStyle.Render("No relevant content found"))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
	fmt.Fprintln(w, mutedStyle.Render("total "+res.Timings.Total.Round(time.Millisecond).String()))
}
