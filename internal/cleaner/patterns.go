package cleaner

import (
	"regexp"
	"strings"
)

// Rule is one rewrite in a cleaning pass. Exactly one of Replace or Fn is used:
// Fn wins when set.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
	Fn      func(match string) string
}

// Apply runs the rule over s.
func (r Rule) Apply(s string) string {
	if r.Fn != nil {
		return r.Pattern.ReplaceAllStringFunc(s, r.Fn)
	}
	return r.Pattern.ReplaceAllString(s, r.Replace)
}

func rule(name, pattern, replace string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern), Replace: replace}
}

func funcRule(name, pattern string, fn func(string) string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern), Fn: fn}
}

func applyRules(s string, rules []Rule) string {
	for _, r := range rules {
		s = r.Apply(s)
	}
	return s
}

// =============================================================================
// PASS 1: SCRIPT ARTIFACTS
// =============================================================================

var scriptRules = []Rule{
	rule("function-definition", `\bfunction\s*[\w$]*\s*\([^()]*\)\s*\{[^{}]*\}`, " "),
	rule("arrow-function", `\([^()]*\)\s*=>\s*\{[^{}]*\}`, " "),
	rule("declaration", `\b(?:var|let|const)\s+[A-Za-z_$][\w$]*\s*=\s*[^;\n]*;?`, " "),
	rule("assignment-statement", `\b[A-Za-z_$][\w$]*(?:\.[\w$]+)+\s*=\s*[^;\n]*;`, " "),
	rule("call-statement", `\b[A-Za-z_$][\w$]*(?:\.[\w$]+)*\([^()]*\)\s*;`, " "),
	rule("dom-reference", `\b(?:window|document|console|navigator|localStorage)\.[\w$.]+(?:\([^()]*\))?`, " "),
	rule("object-literal", `\{[^{}]*\}`, " "),
	rule("array-literal", `\[\s*(?:"[^"]*"|'[^']*'|-?[\d.]+|true|false|null)(?:\s*,\s*(?:"[^"]*"|'[^']*'|-?[\d.]+|true|false|null))*\s*\]`, " "),
	rule("stray-operators", `===|!==|=>|&&|\|\||\+=|-=|\*=`, " "),
	rule("empty-brackets", `\(\s*\)|\[\s*\]`, " "),
}

// =============================================================================
// PASS 2: NAVIGATION AND UI CHROME
// =============================================================================

// ctaPhrases are link labels that carry no content. They are only removed
// when they stand alone: a whole line, a separator-delimited fragment, or
// the tail of a line after a finished sentence.
const ctaPhrases = `click here|read more|learn more|continue reading|sign up(?: now| today| for free)?|subscribe(?: now| today| to our newsletter)?|log ?in|sign in|register now|download now|get started(?: now| today)?|share this(?: article| post| page)?|follow us(?: on \w+)?|load more|show more|see more|view all`

var (
	ctaFragment        = regexp.MustCompile(`(?i)^(?:` + ctaPhrases + `)[.!:»›\s]*$`)
	fragmentSeparators = regexp.MustCompile(`\s*[|•·]\s*`)
)

// dropCallToAction removes the fragments of a line that are nothing but a
// call to action. Lines without such a fragment are returned unchanged.
func dropCallToAction(line string) string {
	parts := fragmentSeparators.Split(line, -1)
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if ctaFragment.MatchString(strings.TrimSpace(p)) {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == len(parts) {
		return line
	}
	return strings.Join(kept, " | ")
}

var navigationRules = []Rule{
	rule("menu-labels", `(?i)\b(?:skip to (?:main )?content|skip navigation|toggle navigation|main menu|open menu|close menu|jump to (?:navigation|search)|back to top|scroll to top|you are here:?|table of contents|previous post|next post)\b`, " "),
	rule("breadcrumb-line", `(?im)^[ \t]*home[ \t]*[>›»/][^\n]*$`, ""),
	rule("breadcrumb", `(?i)\bhome\s*[>›»|/]\s*`, " "),
	rule("trailing-call-to-action", `(?im)([.!?])[ \t]+(?:`+ctaPhrases+`)[ \t.!:»›]*$`, "$1"),
	funcRule("call-to-action", `(?m)^[^\n]*$`, dropCallToAction),
	rule("copyright", `(?i)(?:©|\(c\)|copyright)\s*(?:\d{4}\s*[-–]\s*)?\d{4}[^.\n]*\.?`, " "),
	rule("rights-reserved", `(?i)\ball rights reserved\.?`, " "),
	rule("legal-links", `(?i)\b(?:privacy policy|terms (?:of (?:service|use)|and conditions)|cookie (?:policy|settings|preferences)|accept (?:all )?cookies|manage (?:cookies|preferences)|do not sell my (?:personal )?information)\b`, " "),
	rule("social-bar", `(?i)(?:\b(?:facebook|twitter|x\.com|linkedin|instagram|pinterest|youtube|tiktok|reddit|whatsapp|email|print)\b[\s|•·,/]*){2,}`, " "),
	rule("promotional", `(?i)\b(?:limited time offer|buy now|shop now|start (?:your )?free trial|special offer|order now|act now|best price|use (?:promo |discount )?code \w+|free shipping)\b[.!]*`, " "),
	rule("form-prompts", `(?i)(?:enter your (?:email(?: address)?|name)|required fields are marked\s*\*?|leave a (?:reply|comment)|post comment|submit comment|your email address will not be published\.?|search for:?)`, " "),
	rule("advertisement", `(?i)\b(?:advertisement|sponsored content|ad choices)\b`, " "),
}

// =============================================================================
// PASS 3: METADATA AND TRACKING
// =============================================================================

var metadataRules = []Rule{
	rule("tracking-params", `(?i)\b(?:utm_[a-z]+|fbclid|gclid|msclkid|mc_eid|_ga|sessionid)=[^\s&]*(?:&[^\s&]+)*`, " "),
	rule("url", `(?i)\bhttps?://[^\s<>"]+|\bwww\.[^\s<>"]+`, " "),
	rule("email", `\b[\w.+-]+@[\w-]+(?:\.[\w-]+)+\b`, " "),
	rule("html-attribute", `(?i)\b(?:class|id|style|href|src|rel|target|data-[\w-]+|aria-[\w-]+)\s*=\s*(?:"[^"]*"|'[^']*')`, " "),
	rule("css-declaration", `(?i)\b(?:color|margin(?:-\w+)?|padding(?:-\w+)?|font(?:-\w+)?|display|width|height|background(?:-\w+)?|border(?:-\w+)?|position|z-index)\s*:\s*[^;\n]{1,40};`, " "),
	rule("schema-markup", `(?i)(?:\b(?:itemscope|itemtype|itemprop)\b|schema\.org/\w+|@context|@type)\S*`, " "),
	rule("citation-marker", `(?i)\[(?:\d+|citation needed|edit)\]`, " "),
	rule("hex-token", `\b[a-fA-F0-9]{24,}\b`, " "),
}

// =============================================================================
// PASS 4: STRUCTURAL REPAIR
// =============================================================================

// camelCaseKeep lists brand and language names that are legitimately
// written in camel case and must not be split.
var camelCaseKeep = map[string]bool{
	"JavaScript": true, "TypeScript": true, "PowerShell": true, "WordPress": true,
	"YouTube": true, "LinkedIn": true, "PayPal": true, "GitHub": true, "GitLab": true,
	"PostgreSQL": true, "MySQL": true, "MongoDB": true, "DevOps": true, "OpenAI": true,
	"iPhone": true, "iPad": true, "macOS": true, "iOS": true, "eBay": true,
	"WebAssembly": true, "WebSocket": true, "GraphQL": true, "NoSQL": true,
	"FastAPI": true, "DeepMind": true, "TensorFlow": true, "PyTorch": true,
}

var camelSplitPattern = regexp.MustCompile(`([a-z])([A-Z][a-z])`)

func splitMergedWord(word string) string {
	if camelCaseKeep[word] {
		return word
	}
	return camelSplitPattern.ReplaceAllString(word, "$1 $2")
}

var topicStarters = `However|Moreover|Furthermore|In addition|Additionally|In conclusion|In summary|Finally|Meanwhile|Therefore|As a result|For example|For instance|In contrast|On the other hand|Overall`

var structureRules = []Rule{
	// Merged DOM text nodes: "endOfSentenceNextHeading" style runs.
	funcRule("camel-case-merge", `\b[A-Za-z]*[a-z][A-Z][a-z][A-Za-z]*\b`, splitMergedWord),
	rule("horizontal-whitespace", `[ \t\f\v\x{00a0}]+`, " "),
	rule("space-around-newline", ` *\n *`, "\n"),
	rule("excess-newlines", `\n{3,}`, "\n\n"),
	rule("sentence-spacing", `([a-z0-9)"'][.!?])([A-Z])`, "$1 $2"),
	rule("repeated-terminal", `([!?.])[!?.]+`, "$1"),
	rule("repeated-comma", `,[,\s]*,`, ","),
	rule("topic-paragraph", `([.!?]) +((?:`+topicStarters+`)\b)`, "$1\n\n$2"),
}

// =============================================================================
// PASS 5: SENTENCE QUALITY
// =============================================================================

var promotionalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:subscribe|newsletter|sign up|unsubscribe)\b`),
	regexp.MustCompile(`(?i)\b(?:buy|order|shop) (?:now|today)\b`),
	regexp.MustCompile(`(?i)\b(?:\d+% off|discount|coupon|promo code|free trial|limited time)\b`),
	regexp.MustCompile(`(?i)\b(?:cookies? to (?:improve|enhance)|we use cookies|by continuing to (?:use|browse))\b`),
	regexp.MustCompile(`(?i)\b(?:all rights reserved|terms of service|privacy policy)\b`),
	regexp.MustCompile(`(?i)\b(?:follow us|share (?:this|on)|like us on)\b`),
}

func isPromotional(sentence string) bool {
	for _, p := range promotionalPatterns {
		if p.MatchString(sentence) {
			return true
		}
	}
	return false
}

// =============================================================================
// PASS 6: FINAL TIDY
// =============================================================================

var finalRules = []Rule{
	// Lone letters left between punctuation by earlier removals: "word, x, next".
	rule("single-letters", `(?m)(^|[,.;:!?])[ ]*[b-z][ ]*(?:[,.;:!?]([ ]|$)|$)`, "$1$2"),
	rule("space-before-punctuation", `[ ]+([,.;:!?])`, "$1"),
	rule("space-after-punctuation", `([,;])([A-Za-z])`, "$1 $2"),
	rule("horizontal-whitespace", `[ ]{2,}`, " "),
	rule("space-around-newline", ` *\n *`, "\n"),
	rule("excess-newlines", `\n{3,}`, "\n\n"),
	funcRule("capitalize-sentence", `(?:^|[.!?]\s+|\n\n)[a-z]`, capitalizeLast),
}

func capitalizeLast(match string) string {
	if match == "" {
		return match
	}
	return match[:len(match)-1] + strings.ToUpper(match[len(match)-1:])
}
