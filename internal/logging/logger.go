// Package logging provides config-driven categorized logging for webresearch.
// Each pipeline subsystem logs under its own category so a noisy stage (the
// browser, usually) can be silenced without losing the others.
// Logging is a no-op until Initialize is called with Enabled set.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config loading
	CategoryBrowser  Category = "browser"  // Browser launch, page provisioning
	CategoryScraper  Category = "scraper"  // Page fetches
	CategoryCleaner  Category = "cleaner"  // Text cleaning passes
	CategoryChunker  Category = "chunker"  // Chunk boundary selection
	CategoryRanking  Category = "ranking"  // Query analysis, scoring, filtering
	CategorySemantic Category = "semantic" // LLM scoring calls
	CategorySearch   Category = "search"   // Web search
	CategoryPipeline Category = "pipeline" // Request orchestration
)

// AllCategories lists every category in declaration order.
var AllCategories = []Category{
	CategoryBoot, CategoryBrowser, CategoryScraper, CategoryCleaner, CategoryChunker,
	CategoryRanking, CategorySemantic, CategorySearch, CategoryPipeline,
}

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	Enabled    bool
	Level      string          // debug, info, warn, error
	JSONFormat bool            // JSON encoder instead of console
	Directory  string          // when set, logs also go to <dir>/<date>_webresearch.log
	Categories map[string]bool // nil or missing key = enabled
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	base    *zap.Logger
	cfg     Config
	loggers = make(map[Category]*Logger)
	file    *os.File
)

// Initialize builds the shared zap core. Calling it again replaces the core
// and drops cached category loggers.
func Initialize(c Config) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	base = nil
	cfg = c
	loggers = make(map[Category]*Logger)

	if !c.Enabled {
		return nil
	}

	level, err := zapcore.ParseLevel(levelOrDefault(c.Level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", c.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if c.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if c.Directory != "" {
		if err := os.MkdirAll(c.Directory, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		name := fmt.Sprintf("%s_webresearch.log", time.Now().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(c.Directory, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		file = f
		sinks = append(sinks, zapcore.AddSync(f))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), level)
	base = zap.New(core)
	return nil
}

// InitializeWith installs an existing zap logger, mostly for tests and for
// the CLI which builds its own.
func InitializeWith(l *zap.Logger, categories map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	cfg = Config{Enabled: l != nil, Categories: categories}
	base = l
	loggers = make(map[Category]*Logger)
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	if level == "warning" {
		return "warn"
	}
	return level
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if base == nil {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging or the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	var l *Logger
	if categoryEnabledLocked(category) {
		l = &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	} else {
		l = &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a child logger carrying key-value fields, e.g. a request ID.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// CloseAll flushes and closes the log file (call at shutdown)
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	base = nil
	loggers = make(map[Category]*Logger)
}

func closeLocked() {
	if base != nil {
		_ = base.Sync()
	}
	if file != nil {
		_ = file.Close()
		file = nil
	}
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Browser(format string, args ...interface{})      { Get(CategoryBrowser).Info(format, args...) }
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }
func BrowserWarn(format string, args ...interface{})  { Get(CategoryBrowser).Warn(format, args...) }
func BrowserError(format string, args ...interface{}) { Get(CategoryBrowser).Error(format, args...) }

func Scraper(format string, args ...interface{})      { Get(CategoryScraper).Info(format, args...) }
func ScraperDebug(format string, args ...interface{}) { Get(CategoryScraper).Debug(format, args...) }
func ScraperWarn(format string, args ...interface{})  { Get(CategoryScraper).Warn(format, args...) }

func Cleaner(format string, args ...interface{})      { Get(CategoryCleaner).Info(format, args...) }
func CleanerDebug(format string, args ...interface{}) { Get(CategoryCleaner).Debug(format, args...) }
func CleanerWarn(format string, args ...interface{})  { Get(CategoryCleaner).Warn(format, args...) }

func Chunker(format string, args ...interface{})      { Get(CategoryChunker).Info(format, args...) }
func ChunkerDebug(format string, args ...interface{}) { Get(CategoryChunker).Debug(format, args...) }
func ChunkerWarn(format string, args ...interface{})  { Get(CategoryChunker).Warn(format, args...) }

func Ranking(format string, args ...interface{})      { Get(CategoryRanking).Info(format, args...) }
func RankingDebug(format string, args ...interface{}) { Get(CategoryRanking).Debug(format, args...) }
func RankingWarn(format string, args ...interface{})  { Get(CategoryRanking).Warn(format, args...) }

func Semantic(format string, args ...interface{})      { Get(CategorySemantic).Info(format, args...) }
func SemanticDebug(format string, args ...interface{}) { Get(CategorySemantic).Debug(format, args...) }
func SemanticWarn(format string, args ...interface{})  { Get(CategorySemantic).Warn(format, args...) }

func Search(format string, args ...interface{})      { Get(CategorySearch).Info(format, args...) }
func SearchDebug(format string, args ...interface{}) { Get(CategorySearch).Debug(format, args...) }
func SearchWarn(format string, args ...interface{})  { Get(CategorySearch).Warn(format, args...) }

func Pipeline(format string, args ...interface{})      { Get(CategoryPipeline).Info(format, args...) }
func PipelineDebug(format string, args ...interface{}) { Get(CategoryPipeline).Debug(format, args...) }
func PipelineWarn(format string, args ...interface{})  { Get(CategoryPipeline).Warn(format, args...) }
func PipelineError(format string, args ...interface{}) { Get(CategoryPipeline).Error(format, args...) }
