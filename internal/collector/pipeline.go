package collector

import (
	"github.com/promptatlas/promptatlas/internal/store"
	"github.com/promptatlas/promptatlas/pkg/config"
)

// NewPipeline wires the full collection pipeline from service
// configuration: search client, source resolver, compliance gate,
// fetcher, entity collector, and batch orchestrator.
func NewPipeline(cfg *config.Config, guideStore store.GuideStore) *Orchestrator {
	search := NewSearchClient(&SearchConfig{
		APIKey:     cfg.Search.APIKey,
		EngineID:   cfg.Search.EngineID,
		Endpoint:   cfg.Search.Endpoint,
		MaxResults: cfg.Search.MaxResults,
	})

	resolver := NewSourceResolver(search)

	var compliance *ComplianceGate
	if cfg.Collector.RespectRobots {
		compliance = NewComplianceGate(cfg.Collector.UserAgent)
	}

	fetcher := NewFetcher(&FetcherConfig{
		UserAgent:       cfg.Collector.UserAgent,
		Referer:         cfg.Collector.Referer,
		Timeout:         cfg.Collector.FetchTimeout.Std(),
		MaxRetries:      cfg.Collector.MaxRetries,
		BackoffBase:     cfg.Collector.BackoffBase.Std(),
		RequestsPerHost: cfg.Collector.RequestsPerHost,
	}, NewExtractor(nil), compliance)

	entityCollector := NewCollector(resolver, fetcher, &CollectorConfig{
		Category:        "prompt-guide",
		SourceDelay:     cfg.Collector.SourceDelay.Std(),
		MinContentItems: cfg.Collector.MinContentItems,
	})

	return NewOrchestrator(entityCollector, guideStore, &OrchestratorConfig{
		BatchSize:  cfg.Collector.BatchSize,
		BatchDelay: cfg.Collector.BatchDelay.Std(),
	})
}
