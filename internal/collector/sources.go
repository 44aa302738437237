package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/promptatlas/promptatlas/pkg/guide"
	"github.com/promptatlas/promptatlas/pkg/logging"
)

// staticSources maps known entity ids to curated guide URLs. Static
// sources always rank ahead of search-discovered ones.
var staticSources = map[string][]string{
	"gpt-4o": {
		"https://platform.openai.com/docs/guides/prompt-engineering",
		"https://cookbook.openai.com/articles/techniques_to_improve_reliability",
	},
	"gpt-4": {
		"https://platform.openai.com/docs/guides/prompt-engineering",
		"https://help.openai.com/en/articles/6654000-best-practices-for-prompt-engineering-with-the-openai-api",
	},
	"claude-3.5-sonnet": {
		"https://docs.anthropic.com/en/docs/build-with-claude/prompt-engineering/overview",
		"https://docs.anthropic.com/en/docs/build-with-claude/prompt-engineering/use-xml-tags",
	},
	"claude-3-opus": {
		"https://docs.anthropic.com/en/docs/build-with-claude/prompt-engineering/overview",
	},
	"gemini-1.5-pro": {
		"https://ai.google.dev/gemini-api/docs/prompting-strategies",
		"https://cloud.google.com/vertex-ai/generative-ai/docs/learn/prompts/prompt-design-strategies",
	},
	"llama-3.1": {
		"https://www.llama.com/docs/how-to-guides/prompting/",
		"https://huggingface.co/blog/llama31",
	},
	"mistral-large": {
		"https://docs.mistral.ai/guides/prompting_capabilities/",
	},
}

// searchQueryTemplates are the per-entity query shapes issued against the
// search provider. %s is replaced with the entity id.
var searchQueryTemplates = []string{
	"%s prompt guide",
	"%s prompting best practices",
	"how to write prompts for %s",
}

// genericSearchQueries are issued for every entity regardless of id.
var genericSearchQueries = []string{
	"prompt engineering best practices",
	"LLM prompting guide examples",
}

// SourceResolver builds the candidate URL list for an entity from the
// static table plus search discovery.
type SourceResolver struct {
	search *SearchClient
	static map[string][]string

	warnOnce sync.Once // missing credentials are reported once, not per call
}

// NewSourceResolver creates a resolver backed by the given search client.
// A nil client disables search discovery entirely.
func NewSourceResolver(search *SearchClient) *SourceResolver {
	return &SourceResolver{
		search: search,
		static: staticSources,
	}
}

// WithStaticSources overrides the curated source table, used by tests.
func (sr *SourceResolver) WithStaticSources(static map[string][]string) *SourceResolver {
	sr.static = static
	return sr
}

// Resolve returns the deduplicated, ordered source list for entityID.
// Search failures are swallowed: a failed query contributes zero results
// and never aborts resolution.
func (sr *SourceResolver) Resolve(ctx context.Context, entityID string) []guide.Source {
	logger := logging.GetLogger("sources")

	sources := make([]guide.Source, 0, 8)
	for _, raw := range sr.static[entityID] {
		sources = append(sources, guide.Source{URL: raw, Origin: guide.OriginStatic})
	}

	if sr.search == nil || !sr.search.Enabled() {
		sr.warnOnce.Do(func() {
			logger.Warn().Msg("Search credentials not configured, using static sources only")
		})
		return dedupeSources(sources)
	}

	queries := make([]string, 0, len(searchQueryTemplates)+len(genericSearchQueries))
	for _, tmpl := range searchQueryTemplates {
		queries = append(queries, fmt.Sprintf(tmpl, entityID))
	}
	queries = append(queries, genericSearchQueries...)

	for _, query := range queries {
		results, err := sr.search.Search(ctx, query)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("query", query).
				Msg("Search query failed, skipping")
			continue
		}
		for _, r := range results {
			sources = append(sources, guide.Source{
				URL:    r.Link,
				Origin: guide.OriginSearch,
				Query:  query,
			})
		}
	}

	resolved := dedupeSources(sources)
	logger.Debug().
		Str("entity_id", entityID).
		Int("sources", len(resolved)).
		Msg("Sources resolved")

	return resolved
}

// dedupeSources normalizes URLs and drops duplicates while preserving
// first-seen order.
func dedupeSources(sources []guide.Source) []guide.Source {
	seen := make(map[string]bool, len(sources))
	out := make([]guide.Source, 0, len(sources))

	for _, s := range sources {
		normalized, ok := normalizeURL(s.URL)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		s.URL = normalized
		out = append(out, s)
	}

	return out
}

// normalizeURL trims the raw URL and rejects anything that is not an
// absolute http(s) URL.
func normalizeURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	if parsed.Host == "" {
		return "", false
	}

	return parsed.String(), true
}
