package collector

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptatlas/promptatlas/internal/store"
	"github.com/promptatlas/promptatlas/pkg/guide"
	"github.com/promptatlas/promptatlas/pkg/logging"
)

// OrchestratorConfig configures batch processing
type OrchestratorConfig struct {
	BatchSize  int           // concurrent collectors per batch
	BatchDelay time.Duration // pause between batches
}

// DefaultOrchestratorConfig returns default orchestrator configuration
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		BatchSize:  3,
		BatchDelay: time.Second,
	}
}

// Progress is handed to the progress callback after each batch settles.
type Progress struct {
	Total     int                      `json:"total"`
	Completed int                      `json:"completed"`
	Results   []guide.CollectionResult `json:"results"`
}

// ProgressFunc receives batch progress. It runs on the orchestrator
// goroutine between batches; keep it cheap.
type ProgressFunc func(Progress)

// Orchestrator runs the entity collector over a set of entities in
// concurrency-bounded batches. One entity failing never blocks or
// cancels its siblings; the run always completes with a full report.
type Orchestrator struct {
	collector *Collector
	store     store.GuideStore
	config    *OrchestratorConfig
}

// NewOrchestrator creates a new batch orchestrator
func NewOrchestrator(collector *Collector, guideStore store.GuideStore, config *OrchestratorConfig) *Orchestrator {
	if config == nil {
		config = DefaultOrchestratorConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 3
	}

	return &Orchestrator{
		collector: collector,
		store:     guideStore,
		config:    config,
	}
}

// CollectAll processes all entities and returns one result per entity in
// submission order, plus the tracking job. Cancellation between batches
// marks the job cancelled and returns the results gathered so far.
func (o *Orchestrator) CollectAll(ctx context.Context, entityIDs []string, onProgress ProgressFunc) ([]guide.CollectionResult, *guide.CollectionJob, error) {
	logger := logging.GetLogger("orchestrator")

	job := &guide.CollectionJob{
		ID:            uuid.New().String(),
		Status:        guide.JobPending,
		TotalEntities: len(entityIDs),
		Entities:      append([]string(nil), entityIDs...),
		StartedAt:     time.Now().UTC(),
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	job.Status = guide.JobRunning
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	logger.Info().
		Str("job_id", job.ID).
		Int("entities", len(entityIDs)).
		Int("batch_size", o.config.BatchSize).
		Msg("Starting collection run")

	results := make([]guide.CollectionResult, len(entityIDs))
	completed := 0

	for batchStart := 0; batchStart < len(entityIDs); batchStart += o.config.BatchSize {
		if batchStart > 0 {
			select {
			case <-time.After(o.config.BatchDelay):
			case <-ctx.Done():
				o.finishJob(job, guide.JobCancelled, results[:completed])
				return results[:completed], job, ctx.Err()
			}
		}

		batchEnd := batchStart + o.config.BatchSize
		if batchEnd > len(entityIDs) {
			batchEnd = len(entityIDs)
		}

		// All batch members settle before the next batch starts.
		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			wg.Add(1)
			go func(idx int, entityID string) {
				defer wg.Done()
				results[idx] = o.collectOne(ctx, job.ID, entityID)
			}(i, entityIDs[i])
		}
		wg.Wait()

		completed = batchEnd
		for i := batchStart; i < batchEnd; i++ {
			if results[i].Success {
				job.SuccessCount++
			} else {
				job.FailCount++
			}
			if err := o.store.RecordResult(ctx, &results[i]); err != nil {
				logger.Error().
					Err(err).
					Str("job_id", job.ID).
					Str("entity_id", results[i].EntityID).
					Msg("Failed to record result")
			}
		}
		if err := o.store.UpdateJob(ctx, job); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to update job")
		}

		if onProgress != nil {
			onProgress(Progress{
				Total:     len(entityIDs),
				Completed: completed,
				Results:   append([]guide.CollectionResult(nil), results[:completed]...),
			})
		}
	}

	o.finishJob(job, guide.JobCompleted, results)

	logger.Info().
		Str("job_id", job.ID).
		Int("success", job.SuccessCount).
		Int("failed", job.FailCount).
		Msg("Collection run completed")

	return results, job, nil
}

// collectOne runs the entity collector and persists the outcome. Errors
// become failed results, never panics or aborts.
func (o *Orchestrator) collectOne(ctx context.Context, jobID, entityID string) guide.CollectionResult {
	logger := logging.GetCollectionLogger(jobID, entityID)

	result := guide.CollectionResult{
		JobID:    jobID,
		EntityID: entityID,
	}

	g, metrics, err := o.collector.Collect(ctx, entityID)
	result.Metrics = metrics
	if err != nil {
		logger.Warn().Err(err).Msg("Entity collection failed")
		result.Error = err.Error()
		return result
	}

	stored, created, err := o.store.Upsert(ctx, g)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to persist guide")
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.GuideID = stored.ID

	logger.Info().
		Int("version", stored.Version).
		Bool("new_version", created).
		Float64("confidence", stored.Confidence).
		Msg("Guide persisted")

	return result
}

// finishJob moves the job to its terminal status. A completed run in
// which every entity failed lands on JobFailed instead. The store
// rejects updates past a terminal state, so a failure here is log-only.
func (o *Orchestrator) finishJob(job *guide.CollectionJob, status guide.JobStatus, results []guide.CollectionResult) {
	if status == guide.JobCompleted && len(results) > 0 && allFailed(results) {
		status = guide.JobFailed
	}
	job.Status = status
	job.CompletedAt = time.Now().UTC()

	// Use a fresh context: the run's context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := logging.GetLogger("orchestrator")
	if err := o.store.UpdateJob(ctx, job); err != nil {
		logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Msg("Failed to finalize job")
	}
}

func allFailed(results []guide.CollectionResult) bool {
	for _, r := range results {
		if r.Success {
			return false
		}
	}
	return true
}
