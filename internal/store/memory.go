package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptatlas/promptatlas/pkg/guide"
)

// MemoryStore is a mutex-guarded in-memory GuideStore, used by tests and
// credential-less development runs. Semantics match the Postgres backend.
type MemoryStore struct {
	mu      sync.RWMutex
	guides  map[string][]*guide.Guide // entityID -> versions, ascending
	jobs    map[string]*guide.CollectionJob
	results map[string][]guide.CollectionResult // jobID -> rows
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guides:  make(map[string][]*guide.Guide),
		jobs:    make(map[string]*guide.CollectionJob),
		results: make(map[string][]guide.CollectionResult),
	}
}

// Upsert implements GuideStore.
func (ms *MemoryStore) Upsert(ctx context.Context, g *guide.Guide) (*guide.Guide, bool, error) {
	if err := g.Validate(); err != nil {
		return nil, false, err
	}

	hash, err := g.ComputeHash()
	if err != nil {
		return nil, false, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	versions := ms.guides[g.EntityID]
	for _, existing := range versions {
		if existing.ContentHash == hash {
			return copyGuide(existing), false, nil
		}
	}

	stored := copyGuide(g)
	stored.ID = uuid.New().String()
	stored.ContentHash = hash
	stored.Version = len(versions) + 1
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	ms.guides[g.EntityID] = append(versions, stored)

	return copyGuide(stored), true, nil
}

// Latest implements GuideStore.
func (ms *MemoryStore) Latest(ctx context.Context, entityID string) (*guide.Guide, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	versions := ms.guides[entityID]
	if len(versions) == 0 {
		return nil, fmt.Errorf("guide for %q: %w", entityID, ErrNotFound)
	}
	return copyGuide(versions[len(versions)-1]), nil
}

// History implements GuideStore.
func (ms *MemoryStore) History(ctx context.Context, entityID string) ([]*guide.Guide, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	versions := ms.guides[entityID]
	out := make([]*guide.Guide, 0, len(versions))
	for _, g := range versions {
		out = append(out, copyGuide(g))
	}
	return out, nil
}

// GetVersion implements GuideStore.
func (ms *MemoryStore) GetVersion(ctx context.Context, entityID string, version int) (*guide.Guide, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, g := range ms.guides[entityID] {
		if g.Version == version {
			return copyGuide(g), nil
		}
	}
	return nil, fmt.Errorf("guide %q version %d: %w", entityID, version, ErrNotFound)
}

// CreateJob implements GuideStore.
func (ms *MemoryStore) CreateJob(ctx context.Context, job *guide.CollectionJob) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job %q already exists", job.ID)
	}

	stored := *job
	ms.jobs[job.ID] = &stored
	return nil
}

// UpdateJob implements GuideStore.
func (ms *MemoryStore) UpdateJob(ctx context.Context, job *guide.CollectionJob) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	existing, ok := ms.jobs[job.ID]
	if !ok {
		return fmt.Errorf("job %q: %w", job.ID, ErrNotFound)
	}
	if existing.Status.Terminal() {
		return fmt.Errorf("job %q is already %s", job.ID, existing.Status)
	}

	stored := *job
	ms.jobs[job.ID] = &stored
	return nil
}

// GetJob implements GuideStore.
func (ms *MemoryStore) GetJob(ctx context.Context, jobID string) (*guide.CollectionJob, []guide.CollectionResult, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return nil, nil, fmt.Errorf("job %q: %w", jobID, ErrNotFound)
	}

	jobCopy := *job
	results := make([]guide.CollectionResult, len(ms.results[jobID]))
	copy(results, ms.results[jobID])

	return &jobCopy, results, nil
}

// RecordResult implements GuideStore.
func (ms *MemoryStore) RecordResult(ctx context.Context, result *guide.CollectionResult) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.results[result.JobID] = append(ms.results[result.JobID], *result)
	return nil
}

// Health implements GuideStore.
func (ms *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Close implements GuideStore.
func (ms *MemoryStore) Close() {}

func copyGuide(g *guide.Guide) *guide.Guide {
	out := *g

	out.Content.BestPractices = append([]string(nil), g.Content.BestPractices...)
	out.Content.Tips = append([]string(nil), g.Content.Tips...)
	out.Content.Examples = append([]guide.Example(nil), g.Content.Examples...)
	if g.Content.Parameters != nil {
		out.Content.Parameters = make(map[string]string, len(g.Content.Parameters))
		for k, v := range g.Content.Parameters {
			out.Content.Parameters[k] = v
		}
	}

	out.Validation.Issues = append([]string(nil), g.Validation.Issues...)
	out.Validation.Warnings = append([]string(nil), g.Validation.Warnings...)

	return &out
}
