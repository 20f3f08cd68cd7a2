// Package browser owns headless-browser lifecycle for the scraper.
// A batch of URLs is served either by one browser with pre-created pages or,
// for larger batches and when that fails, by a small pool of browsers.
package browser

import "time"

// Config holds browser configuration.
type Config struct {
	Bin                 string   `json:"bin"`    // chrome binary; empty = rod's managed download
	Launch              []string `json:"launch"` // extra flags, "--name=value" or "--name"
	Headless            bool     `json:"headless"`
	ViewportWidth       int      `json:"viewport_width"`
	ViewportHeight      int      `json:"viewport_height"`
	UserAgent           string   `json:"user_agent"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
	BlockResources      bool     `json:"block_resources"` // drop images, fonts and media
	MaxConcurrentPages  int      `json:"max_concurrent_pages"`
	MaxBrowsers         int      `json:"max_browsers"`
}

// DefaultUserAgent is sent by every page unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1366,
		ViewportHeight:      768,
		UserAgent:           DefaultUserAgent,
		NavigationTimeoutMs: 20000,
		BlockResources:      true,
		MaxConcurrentPages:  5,
		MaxBrowsers:         3,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1366
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 768
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// PageBudget is the number of pages one shared browser may pre-create.
func (c Config) PageBudget() int {
	if c.MaxConcurrentPages <= 0 {
		return 5
	}
	return c.MaxConcurrentPages
}

// BrowserBudget is the pool size used by the fallback strategy.
func (c Config) BrowserBudget() int {
	if c.MaxBrowsers <= 0 {
		return 3
	}
	return c.MaxBrowsers
}
