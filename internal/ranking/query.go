package ranking

import (
	"regexp"
	"strings"
	"unicode"

	"webresearch/internal/types"
)

// =============================================================================
// QUERY ANALYSIS TABLES
// =============================================================================
// Tables are checked in order; the first match wins.

type queryTypeRule struct {
	Type    types.QueryType
	Pattern *regexp.Regexp
}

var queryTypeRules = []queryTypeRule{
	{types.QueryDefinition, regexp.MustCompile(`(?i)^\s*(?:what\s+(?:is|are)\b|define\b|definition\s+of\b|meaning\s+of\b|who\s+(?:is|was)\b)|\bwhat\s+does\s+.+\s+mean\b`)},
	{types.QueryHowTo, regexp.MustCompile(`(?i)\b(?:how\s+(?:to|do\s+i|can\s+i|should\s+i)|steps?\s+(?:to|for)|guide\s+to|tutorial|walkthrough)\b`)},
	{types.QueryComparison, regexp.MustCompile(`(?i)\b(?:vs\.?|versus|compared?\s+(?:to|with)|comparison|differences?\s+between|better\s+than|pros\s+and\s+cons|alternatives?\s+to)\b`)},
	{types.QueryTechnical, regexp.MustCompile(`(?i)\b(?:api|sdk|implementation|algorithm|architecture|configur\w*|install\w*|error|exception|debug\w*|performance|benchmark|syntax|library|framework|protocol|database|kubernetes|docker)\b`)},
	{types.QueryConceptual, regexp.MustCompile(`(?i)\b(?:why|concepts?|theory|principles?|explain\w*|overview|understand\w*|philosophy|history\s+of)\b`)},
}

type intentRule struct {
	Intent  types.Intent
	Pattern *regexp.Regexp
}

var intentRules = []intentRule{
	{types.IntentCompare, regexp.MustCompile(`(?i)\b(?:vs\.?|versus|compare\w*|differences?|better|which\s+(?:is|one)|pros\s+and\s+cons)\b`)},
	{types.IntentSolve, regexp.MustCompile(`(?i)\b(?:fix\w*|solve|solution|error|issue|problem|troubleshoot\w*|not\s+working|fails?|failing|broken)\b`)},
	{types.IntentImplement, regexp.MustCompile(`(?i)\b(?:implement\w*|build\w*|create|set\s*up|install|configure|deploy\w*|write|integrate)\b`)},
	{types.IntentUnderstand, regexp.MustCompile(`(?i)\b(?:why|explain\w*|understand\w*|how\s+does|how\s+do\s+\w+\s+work|concept)\b`)},
}

var complexityMarkers = regexp.MustCompile(`(?i)\b(?:comprehensive|detailed|in-depth|thorough|exhaustive|complete\s+guide|everything\s+about|deep\s+dive)\b`)

const (
	simpleMaxWords  = 6
	simpleMaxTerms  = 2
	complexMinWords = 16
	complexMinTerms = 6
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "they": true, "have": true,
	"had": true, "what": true, "when": true, "where": true, "who": true, "which": true,
	"why": true, "how": true, "all": true, "any": true, "both": true, "each": true,
	"few": true, "more": true, "most": true, "other": true, "some": true, "such": true,
	"no": true, "nor": true, "not": true, "only": true, "own": true, "same": true,
	"so": true, "than": true, "too": true, "very": true, "can": true, "did": true,
	"do": true, "does": true, "doing": true, "done": true, "i": true, "me": true,
	"my": true, "we": true, "our": true, "you": true, "your": true, "should": true,
	"would": true, "could": true, "about": true, "into": true, "or": true, "if": true,
	"there": true, "their": true, "them": true, "these": true, "those": true, "between": true,
	"vs": true, "versus": true, "best": true, "way": true, "ways": true,
}

// AnalyzeQuery classifies a query by pattern tables. Unmatched queries are
// general, intent defaults to learn.
func AnalyzeQuery(query string) types.QueryAnalysis {
	a := types.QueryAnalysis{
		Type:     types.QueryGeneral,
		Intent:   types.IntentLearn,
		KeyTerms: KeyTerms(query),
	}
	for _, r := range queryTypeRules {
		if r.Pattern.MatchString(query) {
			a.Type = r.Type
			break
		}
	}
	for _, r := range intentRules {
		if r.Pattern.MatchString(query) {
			a.Intent = r.Intent
			break
		}
	}
	a.Complexity = classifyComplexity(query, len(a.KeyTerms))
	return a
}

func classifyComplexity(query string, terms int) types.Complexity {
	words := len(strings.Fields(query))
	switch {
	case words >= complexMinWords || terms >= complexMinTerms || complexityMarkers.MatchString(query):
		return types.ComplexityComplex
	case words <= simpleMaxWords && terms <= simpleMaxTerms:
		return types.ComplexitySimple
	default:
		return types.ComplexityModerate
	}
}

// KeyTerms returns the lower-cased, de-duplicated, stop-word-filtered tokens
// of query in first-seen order. Tokens keep inner '+', '#', '.' and '-' so
// "c++" and "node.js" survive.
func KeyTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("+#.-", r)
	})

	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if len([]rune(f)) < 2 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
