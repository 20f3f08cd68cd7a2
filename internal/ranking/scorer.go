package ranking

import (
	"context"
	"math"

	"webresearch/internal/types"
)

// SemanticScorer rates chunk previews against a query, typically by calling
// a hosted language model. Implementations may return fewer entries than
// previews, out-of-range values or NaN for missing scores; the ranker
// validates everything it receives.
type SemanticScorer interface {
	Score(ctx context.Context, req ScoreRequest) ([]ChunkScore, error)
}

// ScorerFunc adapts a function to SemanticScorer.
type ScorerFunc func(ctx context.Context, req ScoreRequest) ([]ChunkScore, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, req ScoreRequest) ([]ChunkScore, error) {
	return f(ctx, req)
}

// ScoreRequest is one batch of previews.
type ScoreRequest struct {
	Query    string
	Analysis types.QueryAnalysis
	Previews []ChunkPreview
}

// ChunkPreview is the bounded view of a chunk sent for scoring. Index is the
// chunk's position in the ranker's input slice.
type ChunkPreview struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ChunkScore is the scorer's verdict on one preview. NaN marks a score the
// scorer did not supply.
type ChunkScore struct {
	ChunkIndex     int      `json:"chunkIndex"`
	RelevanceScore float64  `json:"relevanceScore"`
	QualityScore   float64  `json:"qualityScore"`
	Reasons        []string `json:"reasons"`
	KeyMatches     []string `json:"keyMatches"`
}

const fallbackReason = "fallback scoring"

// Clamp bounds v to [0, 1]. NaN maps to neutral.
func Clamp(v, neutral float64) float64 {
	switch {
	case math.IsNaN(v):
		return neutral
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// reconcile maps a scorer response onto the batch. Entries for unknown or
// repeated indices are dropped; previews without an entry get neutral scores.
func reconcile(batch []ChunkPreview, got []ChunkScore, neutral float64) (map[int]ChunkScore, int) {
	want := make(map[int]bool, len(batch))
	for _, p := range batch {
		want[p.Index] = true
	}

	out := make(map[int]ChunkScore, len(batch))
	for _, s := range got {
		if !want[s.ChunkIndex] {
			continue
		}
		if _, dup := out[s.ChunkIndex]; dup {
			continue
		}
		s.RelevanceScore = Clamp(s.RelevanceScore, neutral)
		s.QualityScore = Clamp(s.QualityScore, neutral)
		out[s.ChunkIndex] = s
	}

	missing := 0
	for _, p := range batch {
		if _, ok := out[p.Index]; !ok {
			missing++
			out[p.Index] = ChunkScore{
				ChunkIndex:     p.Index,
				RelevanceScore: neutral,
				QualityScore:   neutral,
				Reasons:        []string{"no score returned"},
			}
		}
	}
	return out, missing
}

func fallbackScores(batch []ChunkPreview, neutral float64) map[int]ChunkScore {
	out := make(map[int]ChunkScore, len(batch))
	for _, p := range batch {
		out[p.Index] = ChunkScore{
			ChunkIndex:     p.Index,
			RelevanceScore: neutral,
			QualityScore:   neutral,
			Reasons:        []string{fallbackReason},
		}
	}
	return out
}
