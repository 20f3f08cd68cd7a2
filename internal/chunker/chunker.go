// Package chunker splits cleaned documents into bounded, overlapping chunks
// cut at the most natural nearby boundary: section heading, paragraph break,
// sentence end, or as a last resort the raw word target.
package chunker

import (
	"fmt"
	"time"
	"unicode/utf8"

	"webresearch/internal/logging"
	"webresearch/internal/types"
)

// Config holds chunk sizing in words.
type Config struct {
	TargetSize   int
	MinSize      int
	MaxSize      int
	OverlapSize  int
	SearchWindow int // words searched either side of the target for a boundary
	MaxParallel  int
}

// DefaultConfig returns the standard sizing.
func DefaultConfig() Config {
	return Config{
		TargetSize:   800,
		MinSize:      300,
		MaxSize:      1200,
		OverlapSize:  100,
		SearchWindow: 100,
		MaxParallel:  8,
	}
}

// Validate checks that the sizes are consistent.
func (c Config) Validate() error {
	if c.MinSize <= 0 || c.TargetSize < c.MinSize || c.MaxSize < c.TargetSize {
		return fmt.Errorf("chunk sizes must satisfy 0 < min (%d) <= target (%d) <= max (%d)",
			c.MinSize, c.TargetSize, c.MaxSize)
	}
	if c.OverlapSize < 0 || c.SearchWindow < 0 {
		return fmt.Errorf("overlap (%d) and search window (%d) must not be negative",
			c.OverlapSize, c.SearchWindow)
	}
	return nil
}

// Chunker cuts documents into chunks. It is stateless and safe for
// concurrent use.
type Chunker struct {
	cfg Config
}

// New creates a chunker. An invalid config falls back to DefaultConfig.
func New(cfg Config) *Chunker {
	if err := cfg.Validate(); err != nil {
		logging.ChunkerWarn("Invalid chunk config, using defaults: %v", err)
		cfg = DefaultConfig()
	}
	return &Chunker{cfg: cfg}
}

// span is a chunk under construction. [start, end) is the materialized word
// range including overlap; [coreStart, coreEnd) is the range the chunk owns.
type span struct {
	start, end         int
	coreStart, coreEnd int
	method             types.ChunkMethod
}

func (s span) words() int { return s.end - s.start }

// Chunk splits content into chunks. Any non-empty content yields at least
// one chunk. Output is deterministic for a given content and Config.
func (c *Chunker) Chunk(content, title, url string, sourceIndex int) (out types.ChunkedContent) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.ChunkerWarn("Recovered from panic chunking %s: %v", url, r)
			out = types.ChunkedContent{Error: fmt.Sprintf("chunking failed: %v", r)}
		}
		out.ProcessingTime = time.Since(start)
	}()

	doc := preprocess(content)
	if doc.len() == 0 {
		return types.ChunkedContent{}
	}

	spans := c.overlap(c.selectBoundaries(doc), doc.len())
	spans = c.validate(spans)

	out.Chunks = make([]types.TextChunk, len(spans))
	total := 0
	for i, s := range spans {
		text := doc.slice(s.start, s.end)
		out.Chunks[i] = types.TextChunk{
			ID:          types.ChunkID(sourceIndex, i+1),
			Content:     text,
			Position:    i + 1,
			WordCount:   s.words(),
			CharCount:   utf8.RuneCountInString(text),
			StartIndex:  s.start,
			EndIndex:    s.end,
			HasOverlap:  overlapsNeighbour(spans, i),
			Method:      s.method,
			SourceURL:   url,
			SourceTitle: title,
			SourceIndex: sourceIndex,
		}
		total += s.words()
	}
	out.TotalChunks = len(spans)
	out.TotalWords = doc.len()
	out.AverageChunkSize = float64(total) / float64(len(spans))

	logging.ChunkerDebug("Chunked %s into %d chunks (%d words, avg %.0f)",
		url, out.TotalChunks, out.TotalWords, out.AverageChunkSize)
	return out
}

// selectBoundaries walks the document in TargetSize strides and returns core
// spans without overlap.
func (c *Chunker) selectBoundaries(doc *document) []span {
	n := doc.len()
	var spans []span
	pos := 0
	for pos+c.cfg.TargetSize < n {
		lo := pos + c.cfg.MinSize - 1
		hi := min(pos+c.cfg.MaxSize+1, n)
		b, method := doc.findBoundary(pos+c.cfg.TargetSize, c.cfg.SearchWindow, lo, hi)
		b = max(b, pos+c.cfg.MinSize)
		b = min(b, pos+c.cfg.MaxSize)
		if b >= n {
			break
		}
		spans = append(spans, span{coreStart: pos, coreEnd: b, method: method})
		pos = b
	}

	// The tail ends at the document end; it keeps the method of the boundary
	// that opened it.
	method := types.MethodWordBoundary
	if len(spans) > 0 {
		method = spans[len(spans)-1].method
	}
	return append(spans, span{coreStart: pos, coreEnd: n, method: method})
}

// overlap extends each core span by OverlapSize words on each side that has
// a neighbour.
func (c *Chunker) overlap(spans []span, n int) []span {
	for i := range spans {
		s := &spans[i]
		s.start, s.end = s.coreStart, s.coreEnd
		if i > 0 {
			s.start = max(0, s.coreStart-c.cfg.OverlapSize)
		}
		if i < len(spans)-1 {
			s.end = min(n, s.coreEnd+c.cfg.OverlapSize)
		}
	}
	return spans
}

func overlapsNeighbour(spans []span, i int) bool {
	if i > 0 && spans[i-1].end > spans[i].start {
		return true
	}
	return i < len(spans)-1 && spans[i].end > spans[i+1].start
}
