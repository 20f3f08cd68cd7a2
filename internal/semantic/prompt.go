package semantic

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"webresearch/internal/ranking"
)

var (
	// ErrMissingAPIKey is returned when a provider is selected without a key.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrMalformedResponse marks model output that does not match the score schema.
	ErrMalformedResponse = errors.New("malformed scoring response")
)

const systemPrompt = `You rate how useful web page excerpts are for answering a research query.
For every excerpt return an object with:
  "chunkIndex": the excerpt's index exactly as given,
  "relevanceScore": 0.0 to 1.0, how directly it answers the query,
  "qualityScore": 0.0 to 1.0, how informative, specific and well-written it is,
  "reasons": up to three short phrases justifying the scores,
  "keyMatches": query terms or concepts the excerpt covers.
Respond with JSON only: {"scores": [ ... ]} with one entry per excerpt.`

// BuildPrompt renders the user prompt for one scoring batch.
func BuildPrompt(req ranking.ScoreRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n", req.Query)
	fmt.Fprintf(&sb, "Query type: %s, intent: %s, complexity: %s\n",
		req.Analysis.Type, req.Analysis.Intent, req.Analysis.Complexity)
	if len(req.Analysis.KeyTerms) > 0 {
		fmt.Fprintf(&sb, "Key terms: %s\n", strings.Join(req.Analysis.KeyTerms, ", "))
	}
	sb.WriteString("\nExcerpts:\n")
	for _, p := range req.Previews {
		fmt.Fprintf(&sb, "\n[chunkIndex %d] Source: %s\n%s\n", p.Index, p.Title, p.Content)
	}
	return sb.String()
}

type rawScore struct {
	ChunkIndex json.RawMessage `json:"chunkIndex"`
	Relevance  json.RawMessage `json:"relevanceScore"`
	Quality    json.RawMessage `json:"qualityScore"`
	Reasons    []string        `json:"reasons"`
	KeyMatches []string        `json:"keyMatches"`
}

// ParseScores decodes model output into chunk scores. It tolerates code
// fences, a bare array instead of {"scores": [...]}, numbers sent as
// strings, and models that number excerpts 0..n-1 instead of echoing the
// given indices. Missing scores come back as NaN for the ranker to default.
func ParseScores(text string, previews []ranking.ChunkPreview) ([]ranking.ChunkScore, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON in response", ErrMalformedResponse)
	}

	var raws []rawScore
	if strings.HasPrefix(payload, "[") {
		if err := json.Unmarshal([]byte(payload), &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		var envelope struct {
			Scores []rawScore `json:"scores"`
		}
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		raws = envelope.Scores
	}

	var scores []ranking.ChunkScore
	for _, r := range raws {
		idx, ok := parseIndex(r.ChunkIndex)
		if !ok {
			continue
		}
		scores = append(scores, ranking.ChunkScore{
			ChunkIndex:     idx,
			RelevanceScore: parseScore(r.Relevance),
			QualityScore:   parseScore(r.Quality),
			Reasons:        r.Reasons,
			KeyMatches:     r.KeyMatches,
		})
	}
	if len(scores) == 0 && len(previews) > 0 {
		return nil, fmt.Errorf("%w: no usable entries", ErrMalformedResponse)
	}
	return remapPositional(scores, previews), nil
}

// extractJSON returns the outermost JSON object or array in text.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return ""
	}
	return text[start : end+1]
}

func parseIndex(raw json.RawMessage) (int, bool) {
	raw = bytes.Trim(raw, `"`)
	if len(raw) == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseScore(raw json.RawMessage) float64 {
	raw = bytes.Trim(raw, `"`)
	if len(raw) == 0 || string(raw) == "null" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// remapPositional rewrites indices when none match the previews but every
// one is a valid 0-based position into them.
func remapPositional(scores []ranking.ChunkScore, previews []ranking.ChunkPreview) []ranking.ChunkScore {
	known := make(map[int]bool, len(previews))
	for _, p := range previews {
		known[p.Index] = true
	}
	for _, s := range scores {
		if known[s.ChunkIndex] {
			return scores
		}
	}
	for _, s := range scores {
		if s.ChunkIndex < 0 || s.ChunkIndex >= len(previews) {
			return scores
		}
	}
	for i := range scores {
		scores[i].ChunkIndex = previews[scores[i].ChunkIndex].Index
	}
	return scores
}
