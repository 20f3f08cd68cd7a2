package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"webresearch/internal/types"
)

var (
	lineEndingPattern = regexp.MustCompile(`\r\n?`)
	hspacePattern     = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLinePattern  = regexp.MustCompile(`\n[ \t]*\n\s*`)
)

// headerStopWords are first words that mark a line as prose rather than a
// section heading.
var headerStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "of": true, "with": true, "by": true, "from": true,
	"and": true, "or": true, "but": true, "as": true, "if": true, "into": true,
}

// document is the word-level view of one preprocessed text.
type document struct {
	text  string
	words []word

	// Boundary markers are indexed by word position: marker[i] means a chunk
	// may start at word i.
	section   []bool
	paragraph []bool
	sentence  []bool
}

type word struct {
	start, end int // byte offsets into text
}

func (d *document) len() int { return len(d.words) }

// slice returns the original text spanning words [from, to).
func (d *document) slice(from, to int) string {
	if from >= to {
		return ""
	}
	return d.text[d.words[from].start:d.words[to-1].end]
}

// preprocess normalizes line endings and horizontal whitespace, then records
// word offsets and the section, paragraph and sentence boundaries.
func preprocess(content string) *document {
	text := lineEndingPattern.ReplaceAllString(content, "\n")
	text = hspacePattern.ReplaceAllString(text, " ")
	text = blankLinePattern.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	d := &document{text: text}
	paraStarts := map[int]bool{}
	sectionStarts := map[int]bool{}

	offset := 0
	for bi, block := range strings.Split(text, "\n\n") {
		blockStart := offset
		offset += len(block) + 2
		if bi > 0 {
			paraStarts[len(d.words)] = true
		}

		lineOffset := blockStart
		for _, line := range strings.Split(block, "\n") {
			if isSectionHeader(line) {
				sectionStarts[len(d.words)] = true
			}
			d.addWords(line, lineOffset)
			lineOffset += len(line) + 1
		}
	}

	n := len(d.words)
	d.section = make([]bool, n+1)
	d.paragraph = make([]bool, n+1)
	d.sentence = make([]bool, n+1)
	for i := 1; i < n; i++ {
		d.section[i] = sectionStarts[i]
		d.paragraph[i] = paraStarts[i]
		d.sentence[i] = endsSentence(d.text[d.words[i-1].start:d.words[i-1].end])
	}
	return d
}

func (d *document) addWords(line string, base int) {
	inWord := false
	start := 0
	for i, r := range line {
		if unicode.IsSpace(r) {
			if inWord {
				d.words = append(d.words, word{start: base + start, end: base + i})
				inWord = false
			}
			continue
		}
		if !inWord {
			start = i
			inWord = true
		}
	}
	if inWord {
		d.words = append(d.words, word{start: base + start, end: base + len(line)})
	}
}

// isSectionHeader matches short capitalized lines without terminal
// punctuation whose first word is not an article or preposition.
func isSectionHeader(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 100 {
		return false
	}
	fields := strings.Fields(line)
	if len(fields) > 8 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) && first != '#' {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	if strings.ContainsRune(".!?,;:", last) {
		return false
	}
	return !headerStopWords[strings.ToLower(fields[0])]
}

func endsSentence(w string) bool {
	w = strings.TrimRight(w, `"')]}`)
	return strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
}

// findBoundary searches outward from target for, in priority order, a
// section, paragraph or sentence boundary strictly between lo and hi.
// It falls back to target itself with a word-boundary method.
func (d *document) findBoundary(target, window, lo, hi int) (int, types.ChunkMethod) {
	kinds := []struct {
		marks  []bool
		method types.ChunkMethod
	}{
		{d.section, types.MethodSectionBoundary},
		{d.paragraph, types.MethodParagraphBoundary},
		{d.sentence, types.MethodSentenceBoundary},
	}
	for _, k := range kinds {
		for off := 0; off <= window; off++ {
			for _, idx := range [2]int{target - off, target + off} {
				if idx > lo && idx < hi && k.marks[idx] {
					return idx, k.method
				}
			}
		}
	}
	return target, types.MethodWordBoundary
}
