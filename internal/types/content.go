package types

import (
	"fmt"
	"time"
)

// =============================================================================
// CONTENT PIPELINE VALUE TYPES
// =============================================================================
//
// Every value below is request-scoped. Stages hand them forward by value and
// never mutate what an earlier stage produced.

// ScrapedDocument is the raw result of fetching one URL.
type ScrapedDocument struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	RawContent string `json:"raw_content"`
	WordCount  int    `json:"word_count"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// CleanedDocument is the cleaner's output for one successful ScrapedDocument.
// CleanedLength is usually smaller than OriginalLength but that is not enforced.
type CleanedDocument struct {
	Content             string  `json:"content"`
	OriginalLength      int     `json:"original_length"`
	CleanedLength       int     `json:"cleaned_length"`
	ReductionPercentage float64 `json:"reduction_percentage"`
	ProcessingMs        int64   `json:"processing_ms"`
}

// ChunkMethod records which boundary type ended a chunk.
type ChunkMethod string

const (
	MethodWordBoundary      ChunkMethod = "word-boundary"
	MethodSentenceBoundary  ChunkMethod = "sentence-boundary"
	MethodParagraphBoundary ChunkMethod = "paragraph-boundary"
	MethodSectionBoundary   ChunkMethod = "section-boundary"
	MethodMerged            ChunkMethod = "merged"
	MethodSplit             ChunkMethod = "split"
)

// TextChunk is a bounded span of a cleaned document.
// StartIndex and EndIndex are word offsets into the source; EndIndex is exclusive.
type TextChunk struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	Position    int         `json:"position"`
	WordCount   int         `json:"word_count"`
	CharCount   int         `json:"char_count"`
	StartIndex  int         `json:"start_index"`
	EndIndex    int         `json:"end_index"`
	HasOverlap  bool        `json:"has_overlap"`
	Method      ChunkMethod `json:"chunking_method"`
	SourceURL   string      `json:"source_url"`
	SourceTitle string      `json:"source_title"`
	SourceIndex int         `json:"source_document_index"`
}

// ChunkID builds the identifier for the chunk at position within a source.
func ChunkID(sourceIndex, position int) string {
	return fmt.Sprintf("doc%d-chunk%d", sourceIndex, position)
}

// ChunkedContent is the chunker's output for one document.
type ChunkedContent struct {
	Chunks           []TextChunk   `json:"chunks"`
	TotalChunks      int           `json:"total_chunks"`
	TotalWords       int           `json:"total_words"`
	AverageChunkSize float64       `json:"average_chunk_size"`
	ProcessingTime   time.Duration `json:"processing_time"`
	Error            string        `json:"error,omitempty"`
}

// RankedChunk wraps a chunk with the scores the ranker assigned to it.
type RankedChunk struct {
	Chunk          TextChunk `json:"chunk"`
	RelevanceScore float64   `json:"relevance_score"`
	QualityScore   float64   `json:"quality_score"`
	DiversityScore float64   `json:"diversity_score"`
	PositionScore  float64   `json:"position_score"`
	FinalScore     float64   `json:"final_score"`
	Reasons        []string  `json:"reasons"`
	KeyMatches     []string  `json:"key_matches"`
	Rank           int       `json:"rank"`
}

// QueryType is the coarse shape of a research query.
type QueryType string

const (
	QueryDefinition QueryType = "definition"
	QueryHowTo      QueryType = "how-to"
	QueryComparison QueryType = "comparison"
	QueryTechnical  QueryType = "technical"
	QueryConceptual QueryType = "conceptual"
	QueryGeneral    QueryType = "general"
)

// Intent is what the user is trying to get out of the answer.
type Intent string

const (
	IntentLearn      Intent = "learn"
	IntentSolve      Intent = "solve"
	IntentCompare    Intent = "compare"
	IntentImplement  Intent = "implement"
	IntentUnderstand Intent = "understand"
)

// Complexity drives how many chunks survive ranking.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// QueryAnalysis is computed once per request from the query string.
type QueryAnalysis struct {
	Type       QueryType  `json:"type"`
	KeyTerms   []string   `json:"key_terms"`
	Intent     Intent     `json:"intent"`
	Complexity Complexity `json:"complexity"`
}
