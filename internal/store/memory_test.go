package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptatlas/promptatlas/pkg/guide"
)

func sampleGuide(entityID, practice string) *guide.Guide {
	return &guide.Guide{
		EntityID:    entityID,
		Category:    "prompt-guide",
		Title:       "Prompting Guide",
		Description: "How to prompt the model.",
		Content: guide.ExtractedContent{
			BestPractices: []string{practice},
			Tips:          []string{"Iterate on wording until the output stabilizes."},
		},
		Confidence: 0.6,
		Validation: guide.Validation{Valid: true},
	}
}

func TestUpsertCreatesFirstVersion(t *testing.T) {
	ms := NewMemoryStore()

	stored, created, err := ms.Upsert(context.Background(), sampleGuide("gpt-4o", "Be specific about the task."))
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, 1, stored.Version)
	assert.NotEmpty(t, stored.ID)
	assert.NotEmpty(t, stored.ContentHash)
}

func TestUpsertIdenticalContentIsNoOp(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	first, created, err := ms.Upsert(ctx, sampleGuide("gpt-4o", "Be specific about the task."))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := ms.Upsert(ctx, sampleGuide("gpt-4o", "Be specific about the task."))
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Version)

	history, err := ms.History(ctx, "gpt-4o")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpsertChangedContentBumpsVersion(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_, _, err := ms.Upsert(ctx, sampleGuide("gpt-4o", "Be specific about the task."))
	require.NoError(t, err)

	updated, created, err := ms.Upsert(ctx, sampleGuide("gpt-4o", "Put instructions first."))
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, 2, updated.Version)
}

func TestUpsertMatchesAnyPriorVersion(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_, _, err := ms.Upsert(ctx, sampleGuide("gpt-4o", "Be specific about the task."))
	require.NoError(t, err)
	_, _, err = ms.Upsert(ctx, sampleGuide("gpt-4o", "Put instructions first."))
	require.NoError(t, err)

	// Content identical to version 1, not just the latest.
	reverted, created, err := ms.Upsert(ctx, sampleGuide("gpt-4o", "Be specific about the task."))
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, 1, reverted.Version)
}

func TestUpsertRejectsInvalidGuide(t *testing.T) {
	ms := NewMemoryStore()

	_, _, err := ms.Upsert(context.Background(), &guide.Guide{Title: "No entity"})

	require.Error(t, err)
}

func TestUpsertIsolatesEntities(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	a, _, err := ms.Upsert(ctx, sampleGuide("gpt-4o", "Be specific about the task."))
	require.NoError(t, err)
	b, _, err := ms.Upsert(ctx, sampleGuide("claude-3-opus", "Be specific about the task."))
	require.NoError(t, err)

	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 1, b.Version)
}

func TestConcurrentUpsertsKeepVersionsGapless(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := sampleGuide("gpt-4o", fmt.Sprintf("Distinct practice number %d.", i))
			_, _, err := ms.Upsert(ctx, g)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := ms.History(ctx, "gpt-4o")
	require.NoError(t, err)
	require.Len(t, history, 10)
	for i, g := range history {
		assert.Equal(t, i+1, g.Version)
	}
}

func TestLatestAndGetVersion(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_, _, err := ms.Upsert(ctx, sampleGuide("gpt-4o", "Be specific about the task."))
	require.NoError(t, err)
	_, _, err = ms.Upsert(ctx, sampleGuide("gpt-4o", "Put instructions first."))
	require.NoError(t, err)

	latest, err := ms.Latest(ctx, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, []string{"Put instructions first."}, latest.Content.BestPractices)

	v1, err := ms.GetVersion(ctx, "gpt-4o", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Be specific about the task."}, v1.Content.BestPractices)

	_, err = ms.GetVersion(ctx, "gpt-4o", 99)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ms.Latest(ctx, "never-collected")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoredGuideIsIsolatedFromCaller(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	g := sampleGuide("gpt-4o", "Be specific about the task.")
	_, _, err := ms.Upsert(ctx, g)
	require.NoError(t, err)

	// Mutating the caller's copy must not leak into the store.
	g.Content.BestPractices[0] = "mutated"

	latest, err := ms.Latest(ctx, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "Be specific about the task.", latest.Content.BestPractices[0])
}

func TestJobLifecycle(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	job := &guide.CollectionJob{
		ID:            "job-1",
		Status:        guide.JobPending,
		TotalEntities: 2,
		Entities:      []string{"gpt-4o", "claude-3-opus"},
	}
	require.NoError(t, ms.CreateJob(ctx, job))
	assert.Error(t, ms.CreateJob(ctx, job), "duplicate job id")

	job.Status = guide.JobRunning
	require.NoError(t, ms.UpdateJob(ctx, job))

	require.NoError(t, ms.RecordResult(ctx, &guide.CollectionResult{
		JobID:    "job-1",
		EntityID: "gpt-4o",
		Success:  true,
	}))

	job.Status = guide.JobCompleted
	job.SuccessCount = 1
	require.NoError(t, ms.UpdateJob(ctx, job))

	stored, results, err := ms.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, guide.JobCompleted, stored.Status)
	require.Len(t, results, 1)
	assert.Equal(t, "gpt-4o", results[0].EntityID)
}

func TestUpdateJobTerminalGuard(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	job := &guide.CollectionJob{ID: "job-1", Status: guide.JobCompleted}
	require.NoError(t, ms.CreateJob(ctx, job))

	job.Status = guide.JobRunning
	err := ms.UpdateJob(ctx, job)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestUpdateJobUnknownID(t *testing.T) {
	ms := NewMemoryStore()

	err := ms.UpdateJob(context.Background(), &guide.CollectionJob{ID: "ghost"})

	assert.ErrorIs(t, err, ErrNotFound)
}
