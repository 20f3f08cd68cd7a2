package config

import (
	"fmt"

	"webresearch/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	Format     string          `yaml:"format"`               // json, text
	Directory  string          `yaml:"directory"`            // also write <dir>/<date>_webresearch.log
	DebugMode  bool            `yaml:"debug_mode"`           // Master toggle - false = no logging
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Validate rejects unknown formats and levels.
func (c *LoggingConfig) Validate() error {
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging: unknown format %q (valid: text, json)", c.Format)
	}
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Level)
	}
	return nil
}

// Options converts the section to logging.Config.
func (c *LoggingConfig) Options() logging.Config {
	return logging.Config{
		Enabled:    c.DebugMode,
		Level:      c.Level,
		JSONFormat: c.Format == "json",
		Directory:  c.Directory,
		Categories: c.Categories,
	}
}
