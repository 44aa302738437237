package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/promptatlas/promptatlas/pkg/guide"
	"github.com/promptatlas/promptatlas/pkg/logging"
)

// CollectorConfig configures per-entity collection behavior
type CollectorConfig struct {
	Category        string
	SourceDelay     time.Duration // pause between sources, regardless of outcome
	MinContentItems int           // practices+tips threshold for early exit
}

// DefaultCollectorConfig returns default collector configuration
func DefaultCollectorConfig() *CollectorConfig {
	return &CollectorConfig{
		Category:        "prompt-guide",
		SourceDelay:     2 * time.Second,
		MinContentItems: 1,
	}
}

// Collector runs the full pipeline for one entity: resolve sources,
// fetch each sequentially, extract, then score and validate the best
// result. Sources are deliberately fetched one at a time to respect
// per-host rate limits.
type Collector struct {
	resolver *SourceResolver
	fetcher  *Fetcher
	config   *CollectorConfig
}

// NewCollector creates a new entity collector
func NewCollector(resolver *SourceResolver, fetcher *Fetcher, config *CollectorConfig) *Collector {
	if config == nil {
		config = DefaultCollectorConfig()
	}
	if config.Category == "" {
		config.Category = "prompt-guide"
	}
	if config.MinContentItems <= 0 {
		config.MinContentItems = 1
	}

	return &Collector{
		resolver: resolver,
		fetcher:  fetcher,
		config:   config,
	}
}

// Collect collects a guide for one entity. A nil error with a populated
// guide covers both the full and the partial (title only) success paths;
// resolution and total fetch failure return an error.
func (c *Collector) Collect(ctx context.Context, entityID string) (*guide.Guide, guide.ResultMetrics, error) {
	logger := logging.GetLogger("collector")
	start := time.Now()
	metrics := guide.ResultMetrics{}

	sources := c.resolver.Resolve(ctx, entityID)
	if len(sources) == 0 {
		metrics.Duration = time.Since(start)
		return nil, metrics, fmt.Errorf("no sources found for entity %q", entityID)
	}

	logger.Info().
		Str("entity_id", entityID).
		Int("sources", len(sources)).
		Msg("Starting collection")

	var results []guide.FetchResult
	for i, source := range sources {
		if i > 0 {
			select {
			case <-time.After(c.config.SourceDelay):
			case <-ctx.Done():
				metrics.Duration = time.Since(start)
				return nil, metrics, ctx.Err()
			}
		}

		result := c.fetcher.Fetch(ctx, source.URL)
		metrics.SourcesTried++

		if !result.Success {
			metrics.FetchFailures++
			logger.Debug().
				Str("entity_id", entityID).
				Str("url", source.URL).
				Str("error", result.Error).
				Msg("Source failed")
			continue
		}

		results = append(results, result)

		// Good enough beats best possible: stop as soon as a source
		// yields the minimum useful volume.
		vol := result.Content.Volume()
		if vol.Practices+vol.Tips >= c.config.MinContentItems {
			logger.Debug().
				Str("entity_id", entityID).
				Str("url", source.URL).
				Int("items", vol.Total()).
				Msg("Early exit, content threshold reached")
			break
		}
	}

	metrics.Duration = time.Since(start)

	if len(results) == 0 {
		return nil, metrics, fmt.Errorf("all %d sources failed for entity %q", len(sources), entityID)
	}

	best := selectBest(results)
	g := c.buildGuide(entityID, best)

	logger.Info().
		Str("entity_id", entityID).
		Str("source", best.Source).
		Float64("confidence", g.Confidence).
		Bool("valid", g.Validation.Valid).
		Msg("Collection completed")

	return g, metrics, nil
}

// selectBest picks the result with the largest combined item count.
// Ties keep the earlier result, so static sources win over search ones.
func selectBest(results []guide.FetchResult) guide.FetchResult {
	best := results[0]
	bestVol := best.Content.Volume()

	for _, r := range results[1:] {
		if r.Content.Volume().Richer(bestVol) {
			best = r
			bestVol = r.Content.Volume()
		}
	}

	return best
}

// buildGuide assembles the guide from the winning result, scoring and
// validating it. A result with only a title still produces a usable
// guide at base confidence rather than a failure.
func (c *Collector) buildGuide(entityID string, best guide.FetchResult) *guide.Guide {
	now := time.Now().UTC()

	g := &guide.Guide{
		EntityID:      entityID,
		Category:      c.config.Category,
		Title:         best.Title,
		Description:   best.Description,
		SourcePrimary: best.Source,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if best.Content != nil {
		g.Content = *best.Content
	}
	if strings.TrimSpace(g.Title) == "" {
		g.Title = fmt.Sprintf("%s Prompt Guide", entityID)
	}

	if g.Content.Empty() {
		// Partial success: title or description but no structured
		// content. Confidence stays at base and the penalty is waived.
		g.Confidence = scoreBase
		g.Validation = Validate(g)
		g.Validation.Warnings = append(g.Validation.Warnings, "no structured content extracted, guide is partial")
		return g
	}

	g.Confidence = Score(&g.Content)
	g.Validation = Validate(g)
	g.Confidence = ApplyValidationPenalty(g.Confidence, g.Validation)

	return g
}
