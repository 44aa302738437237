package collector

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/promptatlas/promptatlas/pkg/guide"
)

// ExtractorConfig configures extraction heuristics
type ExtractorConfig struct {
	MaxPractices int
	MaxTips      int
	MaxExamples  int
	SiblingLimit int // how far past a matched heading the walk goes
}

// DefaultExtractorConfig returns default extractor configuration
func DefaultExtractorConfig() *ExtractorConfig {
	return &ExtractorConfig{
		MaxPractices: 15,
		MaxTips:      15,
		MaxExamples:  10,
		SiblingLimit: 10,
	}
}

// mainContentSelectors are tried in order to locate the content root.
var mainContentSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

var practiceKeywords = []string{
	"best practice",
	"best practices",
	"guideline",
	"recommendation",
	"guide",
	"how to",
}

var tipKeywords = []string{
	"tip",
	"tips",
	"hint",
	"advice",
	"note",
	"pro tip",
}

// advisoryVerbs flag list items phrased as guidance.
var advisoryVerbs = []string{
	"should",
	"avoid",
	"use ",
	"consider",
	"recommend",
	"prefer",
	"don't",
	"always",
	"never",
}

// parameterKeywords identify model-parameter rows in tables and
// definition lists.
var parameterKeywords = []string{
	"temperature",
	"top_p",
	"top-p",
	"top_k",
	"top-k",
	"max_tokens",
	"max tokens",
	"frequency penalty",
	"presence penalty",
	"stop sequence",
	"system prompt",
	"context window",
}

// Extractor pulls structured knowledge buckets out of a parsed page.
// It is intentionally heuristic: noisy pages are tolerated and
// over-inclusion is corrected by dedup and capping, not avoided.
type Extractor struct {
	config *ExtractorConfig
}

// NewExtractor creates a new extractor
func NewExtractor(config *ExtractorConfig) *Extractor {
	if config == nil {
		config = DefaultExtractorConfig()
	}
	return &Extractor{config: config}
}

// Extract builds an ExtractedContent from the document. Every bucket is
// deduplicated case-insensitively and capped before return.
func (e *Extractor) Extract(doc *goquery.Document) guide.ExtractedContent {
	root := e.findContentRoot(doc)

	content := guide.ExtractedContent{
		BestPractices: e.extractPractices(root),
		Tips:          e.extractTips(root),
		Examples:      e.extractExamples(root),
		Parameters:    e.extractParameters(root),
	}

	content.BestPractices = capList(dedupeStrings(content.BestPractices), e.config.MaxPractices)
	content.Tips = capList(dedupeStrings(content.Tips), e.config.MaxTips)
	content.Examples = capExamples(dedupeExamples(content.Examples), e.config.MaxExamples)

	return content
}

// findContentRoot tries the selector candidates in order and falls back
// to the document body.
func (e *Extractor) findContentRoot(doc *goquery.Document) *goquery.Selection {
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return doc.Find("body")
}

// extractPractices collects list and paragraph items that follow a
// heading matching the practice keyword set.
func (e *Extractor) extractPractices(root *goquery.Selection) []string {
	var practices []string

	root.Find("h1, h2, h3, h4").Each(func(_ int, heading *goquery.Selection) {
		if !matchesAny(heading.Text(), practiceKeywords) {
			return
		}
		practices = append(practices, e.walkSection(heading, 15, 500)...)
	})

	return practices
}

// walkSection walks forward from a matched heading, bounded by the
// sibling limit or the next heading, collecting list and paragraph text
// within the length window. Items containing raw URLs are skipped.
func (e *Extractor) walkSection(heading *goquery.Selection, minLen, maxLen int) []string {
	var items []string

	sibling := heading.Next()
	for i := 0; i < e.config.SiblingLimit && sibling.Length() > 0; i++ {
		if isHeading(sibling) {
			break
		}

		switch goquery.NodeName(sibling) {
		case "ul", "ol":
			sibling.Find("li").Each(func(_ int, li *goquery.Selection) {
				if item, ok := cleanItem(li.Text(), minLen, maxLen); ok {
					items = append(items, item)
				}
			})
		case "p":
			if item, ok := cleanItem(sibling.Text(), minLen, maxLen); ok {
				items = append(items, item)
			}
		}

		sibling = sibling.Next()
	}

	return items
}

// extractTips gathers tip-keyword sections, all substantial blockquotes,
// and list items phrased as advice.
func (e *Extractor) extractTips(root *goquery.Selection) []string {
	var tips []string

	root.Find("h1, h2, h3, h4, strong, em").Each(func(_ int, sel *goquery.Selection) {
		if !matchesAny(sel.Text(), tipKeywords) {
			return
		}
		if isHeading(sel) {
			tips = append(tips, e.walkSection(sel, 15, 500)...)
			return
		}
		// Emphasis match: the surrounding paragraph is the tip.
		if item, ok := cleanItem(sel.Parent().Text(), 20, 500); ok {
			tips = append(tips, item)
		}
	})

	root.Find("blockquote").Each(func(_ int, bq *goquery.Selection) {
		if item, ok := cleanItem(bq.Text(), 20, 500); ok {
			tips = append(tips, item)
		}
	})

	root.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := li.Text()
		if !containsAdvisoryVerb(text) {
			return
		}
		if item, ok := cleanItem(text, 15, 500); ok {
			tips = append(tips, item)
		}
	})

	return tips
}

// extractExamples captures code blocks and example-classed elements.
// The body is truncated to its first 500 characters; the nearest
// preceding heading labels the example.
func (e *Extractor) extractExamples(root *goquery.Selection) []guide.Example {
	var examples []guide.Example

	collect := func(sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) < 20 || len(text) > 2000 {
			return
		}
		text = truncateRunes(text, 500)
		examples = append(examples, guide.Example{
			Input:  exampleLabel(sel),
			Output: text,
		})
	}

	root.Find("pre, .example").Each(func(_ int, sel *goquery.Selection) {
		collect(sel)
	})

	root.Find("code").Each(func(_ int, sel *goquery.Selection) {
		// Code nested in a pre was already captured above.
		if sel.ParentsFiltered("pre").Length() > 0 {
			return
		}
		collect(sel)
	})

	return examples
}

// exampleLabel finds the closest preceding heading to label an example.
func exampleLabel(sel *goquery.Selection) string {
	label := sel.PrevAllFiltered("h1, h2, h3, h4, h5, h6").First().Text()
	if label = normalizeSpace(label); label != "" {
		return label
	}
	return "Example"
}

// extractParameters scans tables and definition lists for rows whose key
// matches a known model parameter.
func (e *Extractor) extractParameters(root *goquery.Selection) map[string]string {
	params := make(map[string]string)

	root.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		key := normalizeSpace(cells.Eq(0).Text())
		if !matchesAny(key, parameterKeywords) {
			return
		}
		if value := normalizeSpace(cells.Eq(1).Text()); value != "" {
			params[strings.ToLower(key)] = value
		}
	})

	root.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		key := normalizeSpace(dt.Text())
		if !matchesAny(key, parameterKeywords) {
			return
		}
		if value := normalizeSpace(dt.Next().Text()); value != "" {
			params[strings.ToLower(key)] = value
		}
	})

	if len(params) == 0 {
		return nil
	}
	return params
}

// Helpers

func isHeading(sel *goquery.Selection) bool {
	switch goquery.NodeName(sel) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsAdvisoryVerb(text string) bool {
	lower := strings.ToLower(text)
	for _, verb := range advisoryVerbs {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}

// cleanItem normalizes whitespace and enforces the length window. Items
// carrying raw URLs are rejected: they are almost always navigation noise.
func cleanItem(text string, minLen, maxLen int) (string, bool) {
	item := normalizeSpace(text)
	if len(item) < minLen || len(item) > maxLen {
		return "", false
	}
	if strings.Contains(item, "http://") || strings.Contains(item, "https://") {
		return "", false
	}
	return item, true
}

func normalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// truncateRunes shortens s to at most max bytes, backing off to the
// nearest rune boundary so a multibyte character is never split.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// dedupeStrings drops case-insensitive duplicates preserving first-seen order.
func dedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func dedupeExamples(examples []guide.Example) []guide.Example {
	seen := make(map[string]bool, len(examples))
	out := make([]guide.Example, 0, len(examples))
	for _, ex := range examples {
		key := strings.ToLower(ex.Output)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ex)
	}
	return out
}

func capList(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}

func capExamples(examples []guide.Example, max int) []guide.Example {
	if len(examples) > max {
		return examples[:max]
	}
	return examples
}
