// Package ranking scores chunks against a query and returns the few most
// worth summarizing.
//
// Scoring is hybrid. A SemanticScorer supplies relevance and quality per
// chunk; the ranker adds a diversity score (favouring under-represented
// sources) and a position score (favouring early chunks), combines them with
// configurable weights, filters by thresholds and caps the result by query
// complexity. The scorer is treated as unreliable: its output is clamped and
// reconciled, and when it fails the ranker continues on neutral scores.
package ranking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"webresearch/internal/logging"
	"webresearch/internal/types"

	"golang.org/x/sync/errgroup"
)

// ErrEmptyQuery is returned when chunks are ranked against a blank query.
var ErrEmptyQuery = errors.New("empty query")

// Config holds batching, scoring policy and filter thresholds.
type Config struct {
	BatchSize            int
	MaxConcurrentBatches int
	ScoringTimeout       time.Duration
	PreviewLength        int // runes of chunk content sent to the scorer

	RelevanceWeight float64
	QualityWeight   float64
	DiversityWeight float64
	PositionWeight  float64

	DiversityFloor float64
	DiversityStep  float64
	PositionFloor  float64
	PositionStep   float64

	NeutralScore float64

	MinRelevance float64
	MinQuality   float64
	MinFinal     float64

	SimpleCap   int
	ModerateCap int
	ComplexCap  int
}

// DefaultConfig returns the standard policy.
func DefaultConfig() Config {
	return Config{
		BatchSize:            8,
		MaxConcurrentBatches: 3,
		ScoringTimeout:       30 * time.Second,
		PreviewLength:        500,
		RelevanceWeight:      0.5,
		QualityWeight:        0.3,
		DiversityWeight:      0.1,
		PositionWeight:       0.1,
		DiversityFloor:       0.3,
		DiversityStep:        0.2,
		PositionFloor:        0.3,
		PositionStep:         0.1,
		NeutralScore:         0.5,
		MinRelevance:         0.4,
		MinQuality:           0.3,
		MinFinal:             0.5,
		SimpleCap:            3,
		ModerateCap:          4,
		ComplexCap:           5,
	}
}

// Validate checks the policy. Relevance must carry the largest weight.
func (c Config) Validate() error {
	if c.BatchSize <= 0 || c.MaxConcurrentBatches <= 0 {
		return fmt.Errorf("batch size (%d) and concurrency (%d) must be positive", c.BatchSize, c.MaxConcurrentBatches)
	}
	for _, w := range []float64{c.RelevanceWeight, c.QualityWeight, c.DiversityWeight, c.PositionWeight} {
		if w < 0 {
			return fmt.Errorf("weights must not be negative")
		}
	}
	if c.RelevanceWeight < c.QualityWeight || c.RelevanceWeight < c.DiversityWeight || c.RelevanceWeight < c.PositionWeight {
		return fmt.Errorf("relevance weight %.2f must dominate the other weights", c.RelevanceWeight)
	}
	if c.SimpleCap <= 0 || c.ModerateCap <= 0 || c.ComplexCap <= 0 {
		return fmt.Errorf("result caps must be positive")
	}
	return nil
}

// Cap returns the result limit for a query complexity.
func (c Config) Cap(complexity types.Complexity) int {
	switch complexity {
	case types.ComplexitySimple:
		return c.SimpleCap
	case types.ComplexityComplex:
		return c.ComplexCap
	default:
		return c.ModerateCap
	}
}

// Stats describes one ranking pass.
type Stats struct {
	TotalChunks      int     `json:"total_chunks"`
	FilteredChunks   int     `json:"filtered_chunks"` // chunks that cleared every threshold
	ReturnedChunks   int     `json:"returned_chunks"`
	AverageRelevance float64 `json:"average_relevance"` // over FilteredChunks
	ScoredBatches    int     `json:"scored_batches"`
	FallbackBatches  int     `json:"fallback_batches"`
}

// Result is the outcome of ScoreAndFilter. An empty Ranked slice is a valid
// outcome meaning nothing was relevant enough.
type Result struct {
	Ranked   []types.RankedChunk `json:"ranked_chunks"`
	Stats    Stats               `json:"filtering_stats"`
	Analysis types.QueryAnalysis `json:"query_analysis"`
}

// Ranker scores, filters and orders chunks.
type Ranker struct {
	cfg    Config
	scorer SemanticScorer
}

// New creates a ranker. scorer may be nil, in which case every chunk gets
// fallback scores. An invalid config falls back to DefaultConfig.
func New(cfg Config, scorer SemanticScorer) *Ranker {
	if err := cfg.Validate(); err != nil {
		logging.RankingWarn("Invalid ranking config, using defaults: %v", err)
		cfg = DefaultConfig()
	}
	return &Ranker{cfg: cfg, scorer: scorer}
}

// ScoreAndFilter ranks chunks against query.
func (r *Ranker) ScoreAndFilter(ctx context.Context, chunks []types.TextChunk, query string) (Result, error) {
	analysis := AnalyzeQuery(query)
	res := Result{Analysis: analysis, Ranked: []types.RankedChunk{}}
	res.Stats.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return res, nil
	}
	if strings.TrimSpace(query) == "" {
		return res, fmt.Errorf("%w: %d chunks to rank", ErrEmptyQuery, len(chunks))
	}

	start := time.Now()
	scores, batches, fallbacks := r.scoreAll(ctx, query, analysis, chunks)
	res.Stats.ScoredBatches = batches
	res.Stats.FallbackBatches = fallbacks

	candidates := r.threshold(chunks, scores)
	r.composite(candidates)

	survivors := candidates[:0]
	var relSum float64
	for _, c := range candidates {
		if c.FinalScore >= r.cfg.MinFinal {
			survivors = append(survivors, c)
			relSum += c.RelevanceScore
		}
	}
	res.Stats.FilteredChunks = len(survivors)
	if len(survivors) > 0 {
		res.Stats.AverageRelevance = relSum / float64(len(survivors))
	}

	slices.SortStableFunc(survivors, func(a, b types.RankedChunk) int {
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Chunk.SourceIndex, b.Chunk.SourceIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Position, b.Chunk.Position)
	})

	limit := r.cfg.Cap(analysis.Complexity)
	if len(survivors) > limit {
		survivors = survivors[:limit]
	}
	for i := range survivors {
		survivors[i].Rank = i + 1
	}
	res.Ranked = append(res.Ranked, survivors...)
	res.Stats.ReturnedChunks = len(res.Ranked)

	logging.Ranking("Ranked %d chunks for %s/%s query: %d passed filters, %d returned (cap %d, %d fallback batches) in %v",
		len(chunks), analysis.Type, analysis.Complexity, res.Stats.FilteredChunks, len(res.Ranked), limit, fallbacks, time.Since(start))
	return res, nil
}

// scoreAll scores chunks in batches with bounded concurrency. A failed or
// timed-out batch falls back to neutral scores; nothing here aborts ranking.
func (r *Ranker) scoreAll(ctx context.Context, query string, analysis types.QueryAnalysis, chunks []types.TextChunk) ([]ChunkScore, int, int) {
	previews := make([]ChunkPreview, len(chunks))
	for i, c := range chunks {
		previews[i] = ChunkPreview{Index: i, Title: c.SourceTitle, Content: truncate(c.Content, r.cfg.PreviewLength)}
	}
	var batches [][]ChunkPreview
	for start := 0; start < len(previews); start += r.cfg.BatchSize {
		batches = append(batches, previews[start:min(start+r.cfg.BatchSize, len(previews))])
	}

	scores := make([]ChunkScore, len(chunks))
	var mu sync.Mutex
	fallbacks := 0

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrentBatches)
	for bi, batch := range batches {
		g.Go(func() error {
			got, ok := r.scoreBatch(ctx, bi, query, analysis, batch)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				fallbacks++
			}
			for idx, s := range got {
				scores[idx] = s
			}
			return nil
		})
	}
	_ = g.Wait()
	return scores, len(batches), fallbacks
}

func (r *Ranker) scoreBatch(ctx context.Context, bi int, query string, analysis types.QueryAnalysis, batch []ChunkPreview) (map[int]ChunkScore, bool) {
	if r.scorer == nil {
		return fallbackScores(batch, r.cfg.NeutralScore), false
	}

	if r.cfg.ScoringTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ScoringTimeout)
		defer cancel()
	}

	got, err := r.scorer.Score(ctx, ScoreRequest{Query: query, Analysis: analysis, Previews: batch})
	if err != nil {
		logging.RankingWarn("Scoring batch %d (%d chunks) failed, using fallback scores: %v", bi, len(batch), err)
		return fallbackScores(batch, r.cfg.NeutralScore), false
	}
	scores, missing := reconcile(batch, got, r.cfg.NeutralScore)
	if missing > 0 {
		logging.RankingDebug("Scoring batch %d: %d of %d chunks had no score, defaulted to neutral", bi, missing, len(batch))
	}
	return scores, true
}

// threshold applies the relevance and quality thresholds.
func (r *Ranker) threshold(chunks []types.TextChunk, scores []ChunkScore) []types.RankedChunk {
	var out []types.RankedChunk
	for i, c := range chunks {
		s := scores[i]
		if s.RelevanceScore < r.cfg.MinRelevance || s.QualityScore < r.cfg.MinQuality {
			continue
		}
		out = append(out, types.RankedChunk{
			Chunk:          c,
			RelevanceScore: s.RelevanceScore,
			QualityScore:   s.QualityScore,
			Reasons:        s.Reasons,
			KeyMatches:     s.KeyMatches,
		})
	}
	return out
}

// composite fills diversity, position and final scores. Diversity counts
// chunks per source among the candidates passed in.
func (r *Ranker) composite(candidates []types.RankedChunk) {
	perSource := make(map[string]int)
	for _, c := range candidates {
		perSource[c.Chunk.SourceURL]++
	}
	for i := range candidates {
		c := &candidates[i]
		c.DiversityScore = math.Max(r.cfg.DiversityFloor, 1-float64(perSource[c.Chunk.SourceURL]-1)*r.cfg.DiversityStep)
		c.PositionScore = math.Max(r.cfg.PositionFloor, 1-float64(c.Chunk.Position-1)*r.cfg.PositionStep)
		c.DiversityScore = Clamp(c.DiversityScore, r.cfg.NeutralScore)
		c.PositionScore = Clamp(c.PositionScore, r.cfg.NeutralScore)
		c.FinalScore = Clamp(c.RelevanceScore*r.cfg.RelevanceWeight+
			c.QualityScore*r.cfg.QualityWeight+
			c.DiversityScore*r.cfg.DiversityWeight+
			c.PositionScore*r.cfg.PositionWeight, r.cfg.NeutralScore)
	}
}
