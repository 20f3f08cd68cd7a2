package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrInvalidURL marks a URL that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrBlockedDomain marks a URL whose host is on the block list.
	ErrBlockedDomain = errors.New("domain blocked")
)

// Config controls fetching.
type Config struct {
	ScrapeTimeout    time.Duration // whole fetch per URL, distinct from navigation timeout
	SettleDelay      time.Duration // fixed wait after DOMContentLoaded
	MinContentLength int           // chars a selector's text must exceed
	MaxParallel      int
	Selectors        []string // nil = ContentSelectors
	BlockedDomains   []string
	StaticFallback   bool // plain HTTP fetch when no browser can start
	UserAgent        string
	MaxBodyBytes     int64 // static fetch body limit
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ScrapeTimeout:    15 * time.Second,
		SettleDelay:      time.Second,
		MinContentLength: 100,
		MaxParallel:      10,
		StaticFallback:   true,
		UserAgent:        "Mozilla/5.0 (compatible; webresearch/1.0)",
		MaxBodyBytes:     2 << 20,
	}
}

// checkURL rejects URLs that cannot be fetched and hosts on the block list.
func (c Config) checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	host := strings.ToLower(u.Hostname())
	for _, blocked := range c.BlockedDomains {
		blocked = strings.ToLower(strings.TrimPrefix(blocked, "."))
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return fmt.Errorf("%w: %s", ErrBlockedDomain, host)
		}
	}
	return nil
}
