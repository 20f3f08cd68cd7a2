package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"webresearch/internal/browser"
	"webresearch/internal/chunker"
	"webresearch/internal/cleaner"
	"webresearch/internal/pipeline"
	"webresearch/internal/ranking"
	"webresearch/internal/scraper"
	"webresearch/internal/search"
	"webresearch/internal/semantic"

	"gopkg.in/yaml.v3"
)

// Config holds all webresearch configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Cleaner  CleanerConfig  `yaml:"cleaner"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Semantic SemanticConfig `yaml:"semantic"`
	Search   SearchConfig   `yaml:"search"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BrowserConfig configures headless Chrome.
type BrowserConfig struct {
	Bin                string   `yaml:"bin"`
	Launch             []string `yaml:"launch,omitempty"`
	Headless           bool     `yaml:"headless"`
	ViewportWidth      int      `yaml:"viewport_width"`
	ViewportHeight     int      `yaml:"viewport_height"`
	UserAgent          string   `yaml:"user_agent"`
	NavigationTimeout  string   `yaml:"navigation_timeout"`
	BlockResources     bool     `yaml:"block_resources"`
	MaxConcurrentPages int      `yaml:"max_concurrent_pages"`
	MaxBrowsers        int      `yaml:"max_browsers"`
}

// ScraperConfig configures page fetching.
type ScraperConfig struct {
	ScrapeTimeout    string   `yaml:"scrape_timeout"`
	SettleDelay      string   `yaml:"settle_delay"`
	MinContentLength int      `yaml:"min_content_length"`
	MaxParallel      int      `yaml:"max_parallel"`
	Selectors        []string `yaml:"selectors,omitempty"`
	BlockedDomains   []string `yaml:"blocked_domains,omitempty"`
	StaticFallback   bool     `yaml:"static_fallback"`
	UserAgent        string   `yaml:"user_agent"`
	MaxBodyBytes     int64    `yaml:"max_body_bytes"`
}

// CleanerConfig configures the sentence quality filter.
type CleanerConfig struct {
	MinSentenceChars int     `yaml:"min_sentence_chars"`
	MinSentenceWords int     `yaml:"min_sentence_words"`
	MaxCapsRatio     float64 `yaml:"max_caps_ratio"`
	MaxDigitRatio    float64 `yaml:"max_digit_ratio"`
	MaxPunctRatio    float64 `yaml:"max_punct_ratio"`
	KeepHeadings     bool    `yaml:"keep_headings"`
	MaxParallel      int     `yaml:"max_parallel"`
}

// ChunkerConfig configures chunk sizing, in words.
type ChunkerConfig struct {
	TargetSize   int `yaml:"target_size"`
	MinSize      int `yaml:"min_size"`
	MaxSize      int `yaml:"max_size"`
	OverlapSize  int `yaml:"overlap_size"`
	SearchWindow int `yaml:"search_window"`
	MaxParallel  int `yaml:"max_parallel"`
}

// RankingConfig configures scoring, filtering and caps.
type RankingConfig struct {
	BatchSize            int     `yaml:"batch_size"`
	MaxConcurrentBatches int     `yaml:"max_concurrent_batches"`
	ScoringTimeout       string  `yaml:"scoring_timeout"`
	PreviewLength        int     `yaml:"preview_length"`
	RelevanceWeight      float64 `yaml:"relevance_weight"`
	QualityWeight        float64 `yaml:"quality_weight"`
	DiversityWeight      float64 `yaml:"diversity_weight"`
	PositionWeight       float64 `yaml:"position_weight"`
	DiversityFloor       float64 `yaml:"diversity_floor"`
	DiversityStep        float64 `yaml:"diversity_step"`
	PositionFloor        float64 `yaml:"position_floor"`
	PositionStep         float64 `yaml:"position_step"`
	NeutralScore         float64 `yaml:"neutral_score"`
	MinRelevance         float64 `yaml:"min_relevance"`
	MinQuality           float64 `yaml:"min_quality"`
	MinFinal             float64 `yaml:"min_final"`
	SimpleCap            int     `yaml:"simple_cap"`
	ModerateCap          int     `yaml:"moderate_cap"`
	ComplexCap           int     `yaml:"complex_cap"`
}

// SemanticConfig configures the LLM scorer.
type SemanticConfig struct {
	Provider          string  `yaml:"provider"` // gemini, openai, none
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	Temperature       float32 `yaml:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxRetries        int     `yaml:"max_retries"`
	InitialBackoff    string  `yaml:"initial_backoff"`
	MaxBackoff        string  `yaml:"max_backoff"`
}

// SearchConfig configures web search.
type SearchConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	Timeout           string  `yaml:"timeout"`
	UserAgent         string  `yaml:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxResults        int     `yaml:"max_results"`
}

// PipelineConfig configures request-level limits.
type PipelineConfig struct {
	BatchTimeout string `yaml:"batch_timeout"`
	MaxURLs      int    `yaml:"max_urls"`
}

// DefaultConfig returns the default configuration, built from each
// package's own defaults.
func DefaultConfig() *Config {
	b := browser.DefaultConfig()
	sc := scraper.DefaultConfig()
	cl := cleaner.DefaultConfig()
	ch := chunker.DefaultConfig()
	rk := ranking.DefaultConfig()
	se := semantic.DefaultConfig()
	sr := search.DefaultConfig()
	pl := pipeline.DefaultConfig()

	return &Config{
		Browser: BrowserConfig{
			Bin:                b.Bin,
			Launch:             b.Launch,
			Headless:           b.Headless,
			ViewportWidth:      b.ViewportWidth,
			ViewportHeight:     b.ViewportHeight,
			UserAgent:          b.UserAgent,
			NavigationTimeout:  b.NavigationTimeout().String(),
			BlockResources:     b.BlockResources,
			MaxConcurrentPages: b.MaxConcurrentPages,
			MaxBrowsers:        b.MaxBrowsers,
		},
		Scraper: ScraperConfig{
			ScrapeTimeout:    sc.ScrapeTimeout.String(),
			SettleDelay:      sc.SettleDelay.String(),
			MinContentLength: sc.MinContentLength,
			MaxParallel:      sc.MaxParallel,
			Selectors:        sc.Selectors,
			BlockedDomains:   sc.BlockedDomains,
			StaticFallback:   sc.StaticFallback,
			UserAgent:        sc.UserAgent,
			MaxBodyBytes:     sc.MaxBodyBytes,
		},
		Cleaner: CleanerConfig{
			MinSentenceChars: cl.MinSentenceChars,
			MinSentenceWords: cl.MinSentenceWords,
			MaxCapsRatio:     cl.MaxCapsRatio,
			MaxDigitRatio:    cl.MaxDigitRatio,
			MaxPunctRatio:    cl.MaxPunctRatio,
			KeepHeadings:     cl.KeepHeadings,
			MaxParallel:      cl.MaxParallel,
		},
		Chunker: ChunkerConfig{
			TargetSize:   ch.TargetSize,
			MinSize:      ch.MinSize,
			MaxSize:      ch.MaxSize,
			OverlapSize:  ch.OverlapSize,
			SearchWindow: ch.SearchWindow,
			MaxParallel:  ch.MaxParallel,
		},
		Ranking: RankingConfig{
			BatchSize:            rk.BatchSize,
			MaxConcurrentBatches: rk.MaxConcurrentBatches,
			ScoringTimeout:       rk.ScoringTimeout.String(),
			PreviewLength:        rk.PreviewLength,
			RelevanceWeight:      rk.RelevanceWeight,
			QualityWeight:        rk.QualityWeight,
			DiversityWeight:      rk.DiversityWeight,
			PositionWeight:       rk.PositionWeight,
			DiversityFloor:       rk.DiversityFloor,
			DiversityStep:        rk.DiversityStep,
			PositionFloor:        rk.PositionFloor,
			PositionStep:         rk.PositionStep,
			NeutralScore:         rk.NeutralScore,
			MinRelevance:         rk.MinRelevance,
			MinQuality:           rk.MinQuality,
			MinFinal:             rk.MinFinal,
			SimpleCap:            rk.SimpleCap,
			ModerateCap:          rk.ModerateCap,
			ComplexCap:           rk.ComplexCap,
		},
		Semantic: SemanticConfig{
			Provider:          se.Provider,
			Temperature:       se.Temperature,
			RequestsPerSecond: se.RequestsPerSecond,
			Burst:             se.Burst,
			MaxRetries:        se.Retry.MaxRetries,
			InitialBackoff:    se.Retry.InitialBackoff.String(),
			MaxBackoff:        se.Retry.MaxBackoff.String(),
		},
		Search: SearchConfig{
			Endpoint:          sr.Endpoint,
			Timeout:           sr.Timeout.String(),
			UserAgent:         sr.UserAgent,
			RequestsPerSecond: sr.RequestsPerSecond,
			MaxResults:        search.DefaultMaxResults,
		},
		Pipeline: PipelineConfig{
			BatchTimeout: pl.BatchTimeout.String(),
			MaxURLs:      pl.MaxURLs,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. The provider is
// settled first so each key lands on the provider it belongs to.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("WEBRESEARCH_LLM_PROVIDER"); p != "" {
		c.Semantic.Provider = strings.ToLower(strings.TrimSpace(p))
	}

	geminiKey := firstEnv("WEBRESEARCH_GEMINI_API_KEY", "GEMINI_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	switch c.Semantic.Provider {
	case semantic.ProviderOpenAI:
		if openaiKey != "" {
			c.Semantic.APIKey = openaiKey
		}
	case semantic.ProviderGemini, "":
		switch {
		case geminiKey != "":
			c.Semantic.Provider = semantic.ProviderGemini
			c.Semantic.APIKey = geminiKey
		case openaiKey != "" && c.Semantic.APIKey == "":
			c.Semantic.Provider = semantic.ProviderOpenAI
			c.Semantic.APIKey = openaiKey
		}
	}

	if v := os.Getenv("WEBRESEARCH_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if bin := os.Getenv("WEBRESEARCH_CHROME_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// ValidProviders lists all supported scoring providers.
var ValidProviders = []string{semantic.ProviderGemini, semantic.ProviderOpenAI, semantic.ProviderNone}

// Validate validates the configuration. A missing API key is not an error:
// ranking then runs on fallback scores.
func (c *Config) Validate() error {
	if err := c.Chunker.Options().Validate(); err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	if c.Chunker.OverlapSize >= c.Chunker.MinSize {
		return fmt.Errorf("chunker: overlap (%d) must be smaller than min size (%d)", c.Chunker.OverlapSize, c.Chunker.MinSize)
	}

	if err := c.Ranking.Options().Validate(); err != nil {
		return fmt.Errorf("ranking: %w", err)
	}
	for name, v := range map[string]float64{
		"min_relevance": c.Ranking.MinRelevance,
		"min_quality":   c.Ranking.MinQuality,
		"min_final":     c.Ranking.MinFinal,
		"neutral_score": c.Ranking.NeutralScore,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("ranking: %s %.2f must be within [0, 1]", name, v)
		}
	}
	if c.Ranking.RelevanceWeight <= 0 {
		return fmt.Errorf("ranking: relevance_weight must be positive")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.Semantic.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid scoring provider: %s (valid: %v)", c.Semantic.Provider, ValidProviders)
	}

	for name, d := range map[string]string{
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
		"scraper.scrape_timeout":     c.Scraper.ScrapeTimeout,
		"scraper.settle_delay":       c.Scraper.SettleDelay,
		"ranking.scoring_timeout":    c.Ranking.ScoringTimeout,
		"semantic.initial_backoff":   c.Semantic.InitialBackoff,
		"semantic.max_backoff":       c.Semantic.MaxBackoff,
		"search.timeout":             c.Search.Timeout,
		"pipeline.batch_timeout":     c.Pipeline.BatchTimeout,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return c.Logging.Validate()
}

// parseDuration returns def when s is empty or malformed.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Options converts the section to browser.Config.
func (b BrowserConfig) Options() browser.Config {
	def := browser.DefaultConfig()
	return browser.Config{
		Bin:                 b.Bin,
		Launch:              b.Launch,
		Headless:            b.Headless,
		ViewportWidth:       b.ViewportWidth,
		ViewportHeight:      b.ViewportHeight,
		UserAgent:           b.UserAgent,
		NavigationTimeoutMs: int(parseDuration(b.NavigationTimeout, def.NavigationTimeout()).Milliseconds()),
		BlockResources:      b.BlockResources,
		MaxConcurrentPages:  b.MaxConcurrentPages,
		MaxBrowsers:         b.MaxBrowsers,
	}
}

// Options converts the section to scraper.Config.
func (s ScraperConfig) Options() scraper.Config {
	def := scraper.DefaultConfig()
	return scraper.Config{
		ScrapeTimeout:    parseDuration(s.ScrapeTimeout, def.ScrapeTimeout),
		SettleDelay:      parseDuration(s.SettleDelay, def.SettleDelay),
		MinContentLength: s.MinContentLength,
		MaxParallel:      s.MaxParallel,
		Selectors:        s.Selectors,
		BlockedDomains:   s.BlockedDomains,
		StaticFallback:   s.StaticFallback,
		UserAgent:        s.UserAgent,
		MaxBodyBytes:     s.MaxBodyBytes,
	}
}

// Options converts the section to cleaner.Config.
func (c CleanerConfig) Options() cleaner.Config {
	return cleaner.Config{
		MinSentenceChars: c.MinSentenceChars,
		MinSentenceWords: c.MinSentenceWords,
		MaxCapsRatio:     c.MaxCapsRatio,
		MaxDigitRatio:    c.MaxDigitRatio,
		MaxPunctRatio:    c.MaxPunctRatio,
		KeepHeadings:     c.KeepHeadings,
		MaxParallel:      c.MaxParallel,
	}
}

// Options converts the section to chunker.Config.
func (c ChunkerConfig) Options() chunker.Config {
	return chunker.Config{
		TargetSize:   c.TargetSize,
		MinSize:      c.MinSize,
		MaxSize:      c.MaxSize,
		OverlapSize:  c.OverlapSize,
		SearchWindow: c.SearchWindow,
		MaxParallel:  c.MaxParallel,
	}
}

// Options converts the section to ranking.Config.
func (r RankingConfig) Options() ranking.Config {
	def := ranking.DefaultConfig()
	return ranking.Config{
		BatchSize:            r.BatchSize,
		MaxConcurrentBatches: r.MaxConcurrentBatches,
		ScoringTimeout:       parseDuration(r.ScoringTimeout, def.ScoringTimeout),
		PreviewLength:        r.PreviewLength,
		RelevanceWeight:      r.RelevanceWeight,
		QualityWeight:        r.QualityWeight,
		DiversityWeight:      r.DiversityWeight,
		PositionWeight:       r.PositionWeight,
		DiversityFloor:       r.DiversityFloor,
		DiversityStep:        r.DiversityStep,
		PositionFloor:        r.PositionFloor,
		PositionStep:         r.PositionStep,
		NeutralScore:         r.NeutralScore,
		MinRelevance:         r.MinRelevance,
		MinQuality:           r.MinQuality,
		MinFinal:             r.MinFinal,
		SimpleCap:            r.SimpleCap,
		ModerateCap:          r.ModerateCap,
		ComplexCap:           r.ComplexCap,
	}
}

// Options converts the section to semantic.Config. Without an API key the
// provider becomes none so ranking falls back instead of failing to start.
func (s SemanticConfig) Options() semantic.Config {
	def := semantic.DefaultRetryConfig()
	provider := s.Provider
	if s.APIKey == "" {
		provider = semantic.ProviderNone
	}
	return semantic.Config{
		Provider:          provider,
		APIKey:            s.APIKey,
		Model:             s.Model,
		BaseURL:           s.BaseURL,
		Temperature:       s.Temperature,
		RequestsPerSecond: s.RequestsPerSecond,
		Burst:             s.Burst,
		Retry: semantic.RetryConfig{
			MaxRetries:     s.MaxRetries,
			InitialBackoff: parseDuration(s.InitialBackoff, def.InitialBackoff),
			MaxBackoff:     parseDuration(s.MaxBackoff, def.MaxBackoff),
		},
	}
}

// Options converts the section to search.Config.
func (s SearchConfig) Options() search.Config {
	def := search.DefaultConfig()
	return search.Config{
		Endpoint:          s.Endpoint,
		Timeout:           parseDuration(s.Timeout, def.Timeout),
		UserAgent:         s.UserAgent,
		RequestsPerSecond: s.RequestsPerSecond,
	}
}

// Options converts the section to pipeline.Config.
func (p PipelineConfig) Options() pipeline.Config {
	return pipeline.Config{
		BatchTimeout: parseDuration(p.BatchTimeout, 0),
		MaxURLs:      p.MaxURLs,
	}
}
