package store

import (
	"context"
	"errors"

	"github.com/promptatlas/promptatlas/pkg/guide"
)

// ErrNotFound is returned when no guide or job matches the query.
var ErrNotFound = errors.New("not found")

// GuideStore is the persistence boundary for guides and collection jobs.
// Upsert implements content-hash dedup with monotonic versioning: an
// unchanged payload is a no-op, a changed one appends a new version and
// leaves history intact.
type GuideStore interface {
	// Upsert persists g as the next version for its entity unless a
	// guide with the same content hash already exists. It returns the
	// stored guide and whether a new version was created.
	Upsert(ctx context.Context, g *guide.Guide) (*guide.Guide, bool, error)

	// Latest returns the highest version stored for the entity.
	Latest(ctx context.Context, entityID string) (*guide.Guide, error)

	// History returns all stored versions for the entity, oldest first.
	History(ctx context.Context, entityID string) ([]*guide.Guide, error)

	// GetVersion returns one specific version for the entity.
	GetVersion(ctx context.Context, entityID string, version int) (*guide.Guide, error)

	// CreateJob records a new collection job.
	CreateJob(ctx context.Context, job *guide.CollectionJob) error

	// UpdateJob overwrites the job row. Calls after the job reached a
	// terminal status are rejected.
	UpdateJob(ctx context.Context, job *guide.CollectionJob) error

	// GetJob returns a job with its recorded results.
	GetJob(ctx context.Context, jobID string) (*guide.CollectionJob, []guide.CollectionResult, error)

	// RecordResult appends one immutable per-entity result row.
	RecordResult(ctx context.Context, result *guide.CollectionResult) error

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Close releases backend resources.
	Close()
}
