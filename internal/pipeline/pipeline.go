// Package pipeline sequences scraping, cleaning, chunking and ranking for one
// research request.
//
// Failures are isolated per item: a URL that cannot be fetched, a document
// that cannot be cleaned or chunked, or a scoring batch that errors is
// recorded in the result and the rest of the request continues. Only
// malformed input fails the whole call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webresearch/internal/chunker"
	"webresearch/internal/cleaner"
	"webresearch/internal/logging"
	"webresearch/internal/ranking"
	"webresearch/internal/scraper"
	"webresearch/internal/types"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput wraps every input error returned by ProcessContent.
	ErrInvalidInput = errors.New("invalid pipeline input")
	// ErrNoURLs means no non-blank URL was supplied.
	ErrNoURLs = errors.New("no urls to process")
	// ErrNoRelevantContent is what Result.Err reports when nothing survived
	// ranking. ProcessContent itself returns the result, not this error.
	ErrNoRelevantContent = errors.New("no sufficiently relevant content found")
)

const errNoDocument = "scraper returned no document"

// StageComplete marks a result produced by a full run.
const StageComplete = "complete"

// Scraper fetches a batch of URLs, one document per URL in input order.
type Scraper interface {
	ScrapeAll(ctx context.Context, urls []string) ([]types.ScrapedDocument, scraper.Report)
}

// Config controls request-level behaviour.
type Config struct {
	BatchTimeout time.Duration // whole-request deadline; 0 = none
	MaxURLs      int           // extra URLs are dropped; 0 = unlimited
}

// DefaultConfig returns a two-minute batch timeout.
func DefaultConfig() Config {
	return Config{BatchTimeout: 2 * time.Minute}
}

// Stages are the components a Processor drives. Nil Cleaner, Chunker or
// Ranker use their package defaults.
type Stages struct {
	Scraper Scraper
	Cleaner *cleaner.Cleaner
	Chunker *chunker.Chunker
	Ranker  *ranking.Ranker
}

// Processor runs the content pipeline. It holds no per-request state and is
// safe for concurrent use.
type Processor struct {
	cfg     Config
	scraper Scraper
	cleaner *cleaner.Cleaner
	chunker *chunker.Chunker
	ranker  *ranking.Ranker
}

// New creates a processor. stages.Scraper is required.
func New(cfg Config, stages Stages) (*Processor, error) {
	if stages.Scraper == nil {
		return nil, errors.New("pipeline: scraper is required")
	}
	p := &Processor{
		cfg:     cfg,
		scraper: stages.Scraper,
		cleaner: stages.Cleaner,
		chunker: stages.Chunker,
		ranker:  stages.Ranker,
	}
	if p.cleaner == nil {
		p.cleaner = cleaner.New(cleaner.DefaultConfig())
	}
	if p.chunker == nil {
		p.chunker = chunker.New(chunker.DefaultConfig())
	}
	if p.ranker == nil {
		p.ranker = ranking.New(ranking.DefaultConfig(), nil)
	}
	return p, nil
}

// SourceMeta describes what happened to one input URL.
type SourceMeta struct {
	Index               int     `json:"index"`
	URL                 string  `json:"url"`
	Title               string  `json:"title"`
	Success             bool    `json:"success"`
	Error               string  `json:"error,omitempty"`
	OriginalWords       int     `json:"original_word_count"`
	CleanedWords        int     `json:"cleaned_word_count"`
	ReductionPercentage float64 `json:"reduction_percentage"`
	CleaningFellBack    bool    `json:"cleaning_fell_back,omitempty"`
	Chunks              int     `json:"chunk_count"`
	ChunkError          string  `json:"chunk_error,omitempty"`
	ScrapeMs            int64   `json:"scrape_ms"`
	CleanMs             int64   `json:"clean_ms"`
	ChunkMs             int64   `json:"chunk_ms"`
}

// Summary aggregates a request.
type Summary struct {
	TotalURLs        int              `json:"total_urls"`
	SuccessfulURLs   int              `json:"successful_urls"`
	FailedURLs       int              `json:"failed_urls"`
	TotalWords       int              `json:"total_words"`   // cleaned words over successful sources
	AverageWords     float64          `json:"average_words"` // per successful source
	TotalChunks      int              `json:"total_chunks"`
	RelevantChunks   int              `json:"relevant_chunks"`
	AverageRelevance float64          `json:"average_relevance"`
	QueryType        types.QueryType  `json:"query_type"`
	QueryComplexity  types.Complexity `json:"query_complexity"`
	ScrapeStrategy   string           `json:"scrape_strategy"`
}

// Timings records wall-clock time per stage.
type Timings struct {
	Scraping   time.Duration `json:"scraping"`
	Processing time.Duration `json:"processing"` // cleaning and chunking
	Ranking    time.Duration `json:"ranking"`
	Total      time.Duration `json:"total"`
}

// Result is the outcome of one ProcessContent call.
type Result struct {
	RequestID    string              `json:"request_id"`
	Query        string              `json:"query"`
	Stage        string              `json:"stage"`
	RankedChunks []types.RankedChunk `json:"ranked_chunks"`
	Sources      []SourceMeta        `json:"sources"`
	Summary      Summary             `json:"summary"`
	Filtering    ranking.Stats       `json:"filtering_stats"`
	Analysis     types.QueryAnalysis `json:"query_analysis"`
	Timings      Timings             `json:"timings"`
	// Insufficient is set when no chunk survived ranking.
	Insufficient bool `json:"insufficient"`
}

// Err returns ErrNoRelevantContent for an insufficient result, else nil.
func (r *Result) Err() error {
	if r != nil && r.Insufficient {
		return ErrNoRelevantContent
	}
	return nil
}

// ProcessContent runs the pipeline over urls for query. obs may be nil.
// The returned error is non-nil only for invalid input or a ranking
// configuration error; per-item failures are reported in the result.
func (p *Processor) ProcessContent(ctx context.Context, urls []string, query string, obs Observer) (*Result, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	urls, query, err := p.validate(urls, query)
	if err != nil {
		return nil, err
	}

	if p.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.BatchTimeout)
		defer cancel()
	}

	start := time.Now()
	res := &Result{
		RequestID: uuid.NewString(),
		Query:     query,
		Sources:   make([]SourceMeta, len(urls)),
	}
	log := logging.Get(logging.CategoryPipeline).With("request_id", res.RequestID)
	log.Info("Processing %d URLs for query %q", len(urls), query)

	// Scrape.
	obs.OnScrapingStart(urls)
	stageStart := time.Now()
	docs, report := p.scraper.ScrapeAll(ctx, urls)
	docs = alignDocuments(urls, docs, log)
	res.Timings.Scraping = time.Since(stageStart)
	res.Summary.ScrapeStrategy = report.Strategy
	for i, d := range docs {
		res.Sources[i] = SourceMeta{
			Index:         i,
			URL:           urls[i],
			Title:         d.Title,
			Success:       d.Success,
			Error:         d.Error,
			OriginalWords: d.WordCount,
			ScrapeMs:      d.ElapsedMs,
		}
		if d.Success {
			res.Summary.SuccessfulURLs++
		} else {
			res.Summary.FailedURLs++
			log.Debug("Source %d failed: %s: %s", i, urls[i], d.Error)
		}
	}
	res.Summary.TotalURLs = len(urls)
	obs.OnScrapingComplete(res.Summary.SuccessfulURLs, res.Summary.FailedURLs)

	// Clean and chunk.
	obs.OnProcessingStart(res.Summary.SuccessfulURLs)
	stageStart = time.Now()
	chunks := p.process(ctx, docs, res, log)
	res.Timings.Processing = time.Since(stageStart)
	res.Summary.TotalChunks = len(chunks)
	obs.OnChunkingComplete(len(chunks))

	// Rank.
	obs.OnAnalysisStart(len(chunks))
	stageStart = time.Now()
	ranked, err := p.ranker.ScoreAndFilter(ctx, chunks, query)
	if err != nil {
		log.Error("Ranking failed: %v", err)
		return nil, fmt.Errorf("rank chunks: %w", err)
	}
	res.Timings.Ranking = time.Since(stageStart)
	obs.OnAnalysisComplete(ranked.Stats)

	res.RankedChunks = ranked.Ranked
	res.Filtering = ranked.Stats
	res.Analysis = ranked.Analysis
	res.Summary.RelevantChunks = len(ranked.Ranked)
	res.Summary.AverageRelevance = ranked.Stats.AverageRelevance
	res.Summary.QueryType = ranked.Analysis.Type
	res.Summary.QueryComplexity = ranked.Analysis.Complexity
	res.Insufficient = len(ranked.Ranked) == 0
	res.Stage = StageComplete
	res.Timings.Total = time.Since(start)

	if res.Insufficient {
		log.Warn("No relevant content: %d chunks from %d/%d sources, none passed filters",
			len(chunks), res.Summary.SuccessfulURLs, len(urls))
	}
	log.Info("Completed in %v: %d/%d sources, %d chunks, %d returned",
		res.Timings.Total, res.Summary.SuccessfulURLs, len(urls), len(chunks), len(res.RankedChunks))

	obs.OnComplete(res)
	return res, nil
}

// alignDocuments returns exactly one document per URL. URLs the scraper
// returned nothing for become failed documents; surplus documents are dropped.
func alignDocuments(urls []string, docs []types.ScrapedDocument, log *logging.Logger) []types.ScrapedDocument {
	if len(docs) == len(urls) {
		return docs
	}
	log.Warn("Scraper returned %d documents for %d URLs", len(docs), len(urls))
	out := make([]types.ScrapedDocument, len(urls))
	n := copy(out, docs)
	for i := n; i < len(urls); i++ {
		out[i] = types.ScrapedDocument{URL: urls[i], Error: errNoDocument}
	}
	return out
}

func (p *Processor) validate(urls []string, query string) ([]string, string, error) {
	var clean []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidInput, ErrNoURLs)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidInput, ranking.ErrEmptyQuery)
	}
	if p.cfg.MaxURLs > 0 && len(clean) > p.cfg.MaxURLs {
		logging.PipelineWarn("Dropping %d URLs over the limit of %d", len(clean)-p.cfg.MaxURLs, p.cfg.MaxURLs)
		clean = clean[:p.cfg.MaxURLs]
	}
	return clean, query, nil
}

// process cleans and chunks every successful document and fills in the
// per-source metadata. Chunks come back grouped by source, in source order.
func (p *Processor) process(ctx context.Context, docs []types.ScrapedDocument, res *Result, log *logging.Logger) []types.TextChunk {
	cleaned := p.cleaner.CleanAll(ctx, docs)

	inputs := make([]chunker.Input, len(cleaned))
	for i, c := range cleaned {
		src := &res.Sources[c.Index]
		src.CleanedWords = len(strings.Fields(c.Document.Content))
		src.ReductionPercentage = c.Document.ReductionPercentage
		src.CleanMs = c.Document.ProcessingMs
		src.CleaningFellBack = c.FellBack
		if c.FellBack {
			log.Warn("Cleaning failed for %s, using raw content: %v", src.URL, c.Err)
		}
		res.Summary.TotalWords += src.CleanedWords

		inputs[i] = chunker.Input{
			Content:     c.Document.Content,
			Title:       docs[c.Index].Title,
			URL:         docs[c.Index].URL,
			SourceIndex: c.Index,
		}
	}
	if n := len(cleaned); n > 0 {
		res.Summary.AverageWords = float64(res.Summary.TotalWords) / float64(n)
	}

	var chunks []types.TextChunk
	for i, out := range p.chunker.ChunkAll(ctx, inputs) {
		src := &res.Sources[inputs[i].SourceIndex]
		src.Chunks = len(out.Chunks)
		src.ChunkMs = out.ProcessingTime.Milliseconds()
		if out.Error != "" {
			src.ChunkError = out.Error
			log.Warn("Chunking failed for %s: %s", src.URL, out.Error)
		}
		chunks = append(chunks, out.Chunks...)
	}
	return chunks
}
