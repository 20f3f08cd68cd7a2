// Package cleaner turns DOM-extracted page text into prose fit for chunking.
//
// Cleaning is a fixed sequence of passes, each a table of regular-expression
// rewrites (see patterns.go), followed by a sentence-level quality filter:
//
//  1. script artifacts
//  2. navigation and UI chrome
//  3. metadata and tracking tokens
//  4. structural repair
//  5. sentence quality filter
//  6. final tidy
//
// The result is a heuristic signal-to-noise improvement, not exact extraction.
package cleaner

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"webresearch/internal/logging"
	"webresearch/internal/types"
)

// ErrCleaningFailed wraps a panic recovered while cleaning one document.
var ErrCleaningFailed = errors.New("cleaning failed")

// Config holds the sentence quality thresholds.
type Config struct {
	MinSentenceChars int
	MinSentenceWords int
	MaxCapsRatio     float64
	MaxDigitRatio    float64
	MaxPunctRatio    float64
	KeepHeadings     bool // standalone heading lines bypass the sentence filter
	MaxParallel      int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinSentenceChars: 30,
		MinSentenceWords: 5,
		MaxCapsRatio:     0.30,
		MaxDigitRatio:    0.20,
		MaxPunctRatio:    0.30,
		KeepHeadings:     true,
		MaxParallel:      8,
	}
}

// Cleaner applies the cleaning passes.
type Cleaner struct {
	cfg Config
}

// New creates a cleaner.
func New(cfg Config) *Cleaner {
	return &Cleaner{cfg: cfg}
}

// Clean runs every pass over raw. title drops repeated copies of the page
// title; url only labels log lines. A panic inside a pass is returned as an
// error wrapping ErrCleaningFailed.
func (c *Cleaner) Clean(raw, title, url string) (doc types.CleanedDocument, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w for %s: %v", ErrCleaningFailed, url, r)
			logging.CleanerWarn("Recovered from panic cleaning %s: %v", url, r)
		}
	}()

	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = applyRules(text, scriptRules)
	text = applyRules(text, navigationRules)
	text = applyRules(text, metadataRules)
	text = applyRules(text, structureRules)

	text, dropped := c.filterSentences(text, strings.TrimSpace(title))

	text = applyRules(text, finalRules)
	text = ensureTerminal(strings.TrimSpace(text))

	doc = types.CleanedDocument{
		Content:        text,
		OriginalLength: utf8.RuneCountInString(raw),
		CleanedLength:  utf8.RuneCountInString(text),
		ProcessingMs:   time.Since(start).Milliseconds(),
	}
	doc.ReductionPercentage = reduction(doc.OriginalLength, doc.CleanedLength)

	logging.CleanerDebug("Cleaned %s: %d -> %d chars (%.1f%%), %d sentences dropped",
		url, doc.OriginalLength, doc.CleanedLength, doc.ReductionPercentage, dropped)
	return doc, nil
}

func reduction(original, cleaned int) float64 {
	if original == 0 {
		return 0
	}
	pct := float64(original-cleaned) / float64(original) * 100
	return math.Round(pct*10) / 10
}

// filterSentences keeps paragraph structure while dropping low-quality
// sentences inside each paragraph.
func (c *Cleaner) filterSentences(text, title string) (string, int) {
	var kept []string
	dropped := 0
	seenTitle := false

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if title != "" && strings.EqualFold(para, title) {
			if seenTitle {
				dropped++
				continue
			}
			seenTitle = true
		}
		if c.cfg.KeepHeadings && IsHeading(para) {
			kept = append(kept, para)
			continue
		}

		var good []string
		for _, s := range SplitSentences(strings.Join(strings.Fields(para), " ")) {
			if c.acceptSentence(s) {
				good = append(good, s)
			} else {
				dropped++
			}
		}
		if len(good) > 0 {
			kept = append(kept, strings.Join(good, " "))
		}
	}
	return strings.Join(kept, "\n\n"), dropped
}

// acceptSentence applies the per-sentence quality thresholds.
func (c *Cleaner) acceptSentence(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < c.cfg.MinSentenceChars {
		return false
	}
	if len(strings.Fields(s)) < c.cfg.MinSentenceWords {
		return false
	}

	var upper, digits, punct int
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsDigit(r):
			digits++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct++
		}
	}
	total := float64(n)
	if float64(upper)/total > c.cfg.MaxCapsRatio ||
		float64(digits)/total > c.cfg.MaxDigitRatio ||
		float64(punct)/total > c.cfg.MaxPunctRatio {
		return false
	}
	return !isPromotional(s)
}

// IsHeading reports whether line looks like a standalone section heading:
// a single short line, capitalized, with no terminal punctuation.
func IsHeading(line string) bool {
	if strings.ContainsRune(line, '\n') || len(line) > 80 {
		return false
	}
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > 8 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	return !strings.ContainsRune(".!?,;:", last)
}

var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "etc": true, "vs": true, "mr": true, "mrs": true,
	"ms": true, "dr": true, "st": true, "jr": true, "sr": true, "u.s": true, "no": true,
}

// SplitSentences splits flowing text after terminal punctuation followed by
// a space, skipping common abbreviations.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		j := i + 1
		for j < len(text) && strings.IndexByte(`.!?"')]`, text[j]) >= 0 {
			j++
		}
		if j < len(text) && text[j] != ' ' {
			continue
		}
		if ch == '.' && abbreviations[strings.ToLower(lastWord(text[start:i]))] {
			continue
		}
		if s := strings.TrimSpace(text[start:j]); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func lastWord(s string) string {
	if i := strings.LastIndexAny(s, " \n\t("); i >= 0 {
		return s[i+1:]
	}
	return s
}

func ensureTerminal(s string) string {
	if s == "" {
		return s
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	if strings.ContainsRune(`.!?"')`, last) {
		return s
	}
	return s + "."
}
