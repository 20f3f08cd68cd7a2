package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webresearch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const complexQuery = "comprehensive overview of distributed consensus algorithms"

func makeChunk(source string, sourceIndex, position int) types.TextChunk {
	return types.TextChunk{
		ID:          types.ChunkID(sourceIndex, position),
		Content:     fmt.Sprintf("content of %s chunk %d", source, position),
		Position:    position,
		SourceURL:   "https://" + source + ".example",
		SourceTitle: source,
		SourceIndex: sourceIndex,
	}
}

// fixedScorer scores chunk i with scores[i]; indices beyond the table get
// the last entry.
func fixedScorer(scores ...[2]float64) ScorerFunc {
	return func(_ context.Context, req ScoreRequest) ([]ChunkScore, error) {
		out := make([]ChunkScore, 0, len(req.Previews))
		for _, p := range req.Previews {
			s := scores[min(p.Index, len(scores)-1)]
			out = append(out, ChunkScore{ChunkIndex: p.Index, RelevanceScore: s[0], QualityScore: s[1], Reasons: []string{"stub"}})
		}
		return out, nil
	}
}

func TestScoreAndFilter_FilterCorrectness(t *testing.T) {
	var chunks []types.TextChunk
	for i := 0; i < 6; i++ {
		chunks = append(chunks, makeChunk(fmt.Sprintf("s%d", i), i, 1))
	}
	scorer := fixedScorer(
		[2]float64{0.9, 0.9},   // passes
		[2]float64{0.39, 0.9},  // relevance too low
		[2]float64{0.9, 0.29},  // quality too low
		[2]float64{0.4, 0.3},   // final 0.49
		[2]float64{0.5, 0.4},   // final 0.57
		[2]float64{0.45, 0.35}, // final 0.53
	)

	res, err := New(DefaultConfig(), scorer).ScoreAndFilter(context.Background(), chunks, complexQuery)
	require.NoError(t, err)

	ids := make([]string, len(res.Ranked))
	for i, rc := range res.Ranked {
		ids[i] = rc.Chunk.ID
		assert.GreaterOrEqual(t, rc.RelevanceScore, 0.4)
		assert.GreaterOrEqual(t, rc.QualityScore, 0.3)
		assert.GreaterOrEqual(t, rc.FinalScore, 0.5)
	}
	assert.Equal(t, []string{"doc0-chunk1", "doc4-chunk1", "doc5-chunk1"}, ids)
	assert.Equal(t, 6, res.Stats.TotalChunks)
	assert.Equal(t, 3, res.Stats.FilteredChunks)
	assert.InDelta(t, (0.9+0.5+0.45)/3, res.Stats.AverageRelevance, 1e-9)
	assert.InDelta(t, 0.92, res.Ranked[0].FinalScore, 1e-9)
}

func TestScoreAndFilter_ClampInvariant(t *testing.T) {
	var chunks []types.TextChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, makeChunk("src", 0, i+1))
	}
	scorer := ScorerFunc(func(_ context.Context, req ScoreRequest) ([]ChunkScore, error) {
		var out []ChunkScore
		for _, p := range req.Previews {
			switch p.Index % 5 {
			case 0:
				out = append(out, ChunkScore{ChunkIndex: p.Index, RelevanceScore: 1.7, QualityScore: 3})
			case 1:
				out = append(out, ChunkScore{ChunkIndex: p.Index, RelevanceScore: -0.2, QualityScore: -5})
			case 2:
				out = append(out, ChunkScore{ChunkIndex: p.Index, RelevanceScore: math.NaN(), QualityScore: math.Inf(1)})
			case 3:
				// omitted entirely
			case 4:
				out = append(out, ChunkScore{ChunkIndex: p.Index + 1000, RelevanceScore: 0.9, QualityScore: 0.9})
			}
		}
		return out, nil
	})

	cfg := DefaultConfig()
	cfg.MinRelevance, cfg.MinQuality, cfg.MinFinal = 0, 0, 0
	cfg.ComplexCap = 100
	res, err := New(cfg, scorer).ScoreAndFilter(context.Background(), chunks, complexQuery)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 10)

	for _, rc := range res.Ranked {
		for _, v := range []float64{rc.RelevanceScore, rc.QualityScore, rc.DiversityScore, rc.PositionScore, rc.FinalScore} {
			assert.GreaterOrEqual(t, v, 0.0, rc.Chunk.ID)
			assert.LessOrEqual(t, v, 1.0, rc.Chunk.ID)
		}
	}
}

func TestScoreAndFilter_IrrelevantContentYieldsEmpty(t *testing.T) {
	var chunks []types.TextChunk
	for i := 0; i < 6; i++ {
		c := makeChunk("recipes", 0, i+1)
		c.Content = "Whisk the eggs with sugar and fold in the flour before baking."
		chunks = append(chunks, c)
	}

	res, err := New(DefaultConfig(), fixedScorer([2]float64{0.02, 0.8})).
		ScoreAndFilter(context.Background(), chunks, "quantum computing breakthroughs")
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)
	assert.NotNil(t, res.Ranked)
	assert.Equal(t, 0, res.Stats.FilteredChunks)
	assert.Equal(t, 6, res.Stats.TotalChunks)
	assert.Zero(t, res.Stats.AverageRelevance)
}

func TestScoreAndFilter_DiversityPreference(t *testing.T) {
	var chunks []types.TextChunk
	for i := 1; i <= 8; i++ {
		chunks = append(chunks, makeChunk("a", 0, i))
	}
	chunks = append(chunks, makeChunk("b", 1, 1), makeChunk("b", 1, 2))

	res, err := New(DefaultConfig(), fixedScorer([2]float64{0.8, 0.8})).
		ScoreAndFilter(context.Background(), chunks, complexQuery)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 5)

	assert.Equal(t, "https://b.example", res.Ranked[0].Chunk.SourceURL)
	assert.Equal(t, "https://b.example", res.Ranked[1].Chunk.SourceURL)
	assert.InDelta(t, 0.8, res.Ranked[0].DiversityScore, 1e-9)
	assert.InDelta(t, 0.3, res.Ranked[2].DiversityScore, 1e-9)

	rankOf := map[string]int{}
	for _, rc := range res.Ranked {
		rankOf[rc.Chunk.ID] = rc.Rank
	}
	assert.Less(t, rankOf["doc1-chunk1"], rankOf["doc0-chunk1"])
	assert.Less(t, rankOf["doc1-chunk2"], rankOf["doc0-chunk2"])
}

func TestScoreAndFilter_ComplexityCap(t *testing.T) {
	var chunks []types.TextChunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, makeChunk(fmt.Sprintf("s%d", i), i, 1))
	}
	long := strings.Repeat("kubernetes scheduling latency tradeoffs across clusters regions zones nodes pods ", 10)

	tests := []struct {
		query string
		want  int
	}{
		{"What is HTTP?", 3},
		{"goroutine scheduling and channel buffering semantics", 4},
		{long, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d words", len(strings.Fields(tt.query))), func(t *testing.T) {
			res, err := New(DefaultConfig(), fixedScorer([2]float64{0.9, 0.9})).
				ScoreAndFilter(context.Background(), chunks, tt.query)
			require.NoError(t, err)
			assert.Len(t, res.Ranked, tt.want)
			assert.Equal(t, 20, res.Stats.FilteredChunks)
			for i, rc := range res.Ranked {
				assert.Equal(t, i+1, rc.Rank, "ranks must be dense")
			}
		})
	}
}

func TestScoreAndFilter_StableTieBreak(t *testing.T) {
	chunks := []types.TextChunk{
		makeChunk("c", 2, 1),
		makeChunk("a", 0, 1),
		makeChunk("b", 1, 1),
	}
	res, err := New(DefaultConfig(), fixedScorer([2]float64{0.7, 0.7})).
		ScoreAndFilter(context.Background(), chunks, complexQuery)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 3)
	assert.Equal(t, 0, res.Ranked[0].Chunk.SourceIndex)
	assert.Equal(t, 1, res.Ranked[1].Chunk.SourceIndex)
	assert.Equal(t, 2, res.Ranked[2].Chunk.SourceIndex)
}

func TestScoreAndFilter_ScorerFailureFallsBack(t *testing.T) {
	chunks := []types.TextChunk{makeChunk("a", 0, 1), makeChunk("a", 0, 2), makeChunk("a", 0, 3)}

	failing := ScorerFunc(func(context.Context, ScoreRequest) ([]ChunkScore, error) {
		return nil, errors.New("model unavailable")
	})
	for name, scorer := range map[string]SemanticScorer{"error": failing, "nil scorer": nil} {
		t.Run(name, func(t *testing.T) {
			res, err := New(DefaultConfig(), scorer).ScoreAndFilter(context.Background(), chunks, complexQuery)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Stats.FallbackBatches)
			require.Len(t, res.Ranked, 3)
			for _, rc := range res.Ranked {
				assert.Equal(t, 0.5, rc.RelevanceScore)
				assert.Equal(t, 0.5, rc.QualityScore)
				assert.Contains(t, rc.Reasons, "fallback scoring")
			}
			assert.Equal(t, 1, res.Ranked[0].Chunk.Position)
		})
	}
}

func TestScoreAndFilter_ScoringTimeout(t *testing.T) {
	chunks := []types.TextChunk{makeChunk("a", 0, 1)}
	blocking := ScorerFunc(func(ctx context.Context, _ ScoreRequest) ([]ChunkScore, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cfg := DefaultConfig()
	cfg.ScoringTimeout = 20 * time.Millisecond

	start := time.Now()
	res, err := New(cfg, blocking).ScoreAndFilter(context.Background(), chunks, complexQuery)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, res.Stats.FallbackBatches)
}

func TestScoreAndFilter_BatchingAndConcurrency(t *testing.T) {
	var chunks []types.TextChunk
	for i := 0; i < 20; i++ {
		c := makeChunk(fmt.Sprintf("s%d", i), i, 1)
		c.Content = strings.Repeat("é", 700)
		chunks = append(chunks, c)
	}

	var (
		mu       sync.Mutex
		sizes    []int
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	scorer := ScorerFunc(func(ctx context.Context, req ScoreRequest) ([]ChunkScore, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		sizes = append(sizes, len(req.Previews))
		mu.Unlock()

		out := make([]ChunkScore, len(req.Previews))
		for i, p := range req.Previews {
			assert.LessOrEqual(t, len([]rune(p.Content)), 500)
			out[i] = ChunkScore{ChunkIndex: p.Index, RelevanceScore: 0.9, QualityScore: 0.9}
		}
		return out, nil
	})

	res, err := New(DefaultConfig(), scorer).ScoreAndFilter(context.Background(), chunks, complexQuery)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{8, 8, 4}, sizes)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 3, res.Stats.ScoredBatches)
	assert.Zero(t, res.Stats.FallbackBatches)
}

func TestScoreAndFilter_EmptyInputs(t *testing.T) {
	r := New(DefaultConfig(), nil)

	res, err := r.ScoreAndFilter(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)

	_, err = r.ScoreAndFilter(context.Background(), []types.TextChunk{makeChunk("a", 0, 1)}, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.QualityWeight = 0.6
	assert.Error(t, cfg.Validate(), "relevance must dominate")

	cfg = DefaultConfig()
	cfg.BatchSize = 0
	assert.Error(t, cfg.Validate())

	assert.Equal(t, 3, DefaultConfig().Cap(types.ComplexitySimple))
	assert.Equal(t, 4, DefaultConfig().Cap(types.ComplexityModerate))
	assert.Equal(t, 5, DefaultConfig().Cap(types.ComplexityComplex))
}

func TestClampAndTruncate(t *testing.T) {
	assert.Equal(t, 0.5, Clamp(math.NaN(), 0.5))
	assert.Equal(t, 1.0, Clamp(math.Inf(1), 0.5))
	assert.Equal(t, 0.0, Clamp(-3, 0.5))
	assert.Equal(t, 0.25, Clamp(0.25, 0.5))

	assert.Equal(t, "héllo", truncate("héllo world", 5))
	assert.Equal(t, "short", truncate("short", 10))
}
