package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptatlas/promptatlas/pkg/guide"
	"github.com/promptatlas/promptatlas/pkg/logging"
)

const uniqueViolation = "23505"

// PostgresStore is the relational GuideStore backend. Version allocation
// runs inside a transaction and the (entity_id, content_hash) unique
// constraint backstops concurrent collectors racing on the same entity.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and bootstraps the schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	ps := &PostgresStore{pool: pool}
	if err := ps.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return ps, nil
}

func (ps *PostgresStore) initialize(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS guides (
			id UUID PRIMARY KEY,
			entity_id TEXT NOT NULL,
			category TEXT NOT NULL,
			version INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			content JSONB NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			validation JSONB NOT NULL,
			content_hash TEXT NOT NULL,
			source_primary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (entity_id, content_hash),
			UNIQUE (entity_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS guides_entity_idx ON guides (entity_id, version DESC)`,
		`CREATE TABLE IF NOT EXISTS collection_jobs (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			total_entities INTEGER NOT NULL,
			success_count INTEGER NOT NULL DEFAULT 0,
			fail_count INTEGER NOT NULL DEFAULT 0,
			entities JSONB NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS collection_results (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES collection_jobs(id),
			entity_id TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			guide_id TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			sources_tried INTEGER NOT NULL DEFAULT 0,
			fetch_failures INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS collection_results_job_idx ON collection_results (job_id)`,
	}

	for _, stmt := range statements {
		if _, err := ps.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}

	return nil
}

// Upsert implements GuideStore. A concurrent insert of the same
// (entity, hash) loses the race cleanly: the conflict is retried as a
// read of the winner's row.
func (ps *PostgresStore) Upsert(ctx context.Context, g *guide.Guide) (*guide.Guide, bool, error) {
	if err := g.Validate(); err != nil {
		return nil, false, err
	}

	hash, err := g.ComputeHash()
	if err != nil {
		return nil, false, err
	}

	logger := logging.GetLogger("store")

	for attempt := 0; attempt < 2; attempt++ {
		stored, created, err := ps.tryUpsert(ctx, g, hash)
		if err == nil {
			if !created {
				logger.Debug().
					Str("entity_id", g.EntityID).
					Int("version", stored.Version).
					Msg("Content unchanged, keeping existing version")
			}
			return stored, created, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && attempt == 0 {
			continue // lost a version race, re-read and retry
		}
		return nil, false, err
	}

	return nil, false, fmt.Errorf("upsert for %q did not settle after retry", g.EntityID)
}

func (ps *PostgresStore) tryUpsert(ctx context.Context, g *guide.Guide, hash string) (*guide.Guide, bool, error) {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := ps.findByHash(ctx, tx, g.EntityID, hash)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	var nextVersion int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM guides WHERE entity_id = $1`,
		g.EntityID,
	).Scan(&nextVersion)
	if err != nil {
		return nil, false, fmt.Errorf("allocating version: %w", err)
	}

	stored := *g
	stored.ID = uuid.New().String()
	stored.ContentHash = hash
	stored.Version = nextVersion
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	contentJSON, err := json.Marshal(stored.Content)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling content: %w", err)
	}
	validationJSON, err := json.Marshal(stored.Validation)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling validation: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO guides
			(id, entity_id, category, version, title, description, content,
			 confidence, validation, content_hash, source_primary, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		stored.ID, stored.EntityID, stored.Category, stored.Version,
		stored.Title, stored.Description, contentJSON,
		stored.Confidence, validationJSON, stored.ContentHash,
		stored.SourcePrimary, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting guide: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing guide: %w", err)
	}

	return &stored, true, nil
}

const guideColumns = `id, entity_id, category, version, title, description,
	content, confidence, validation, content_hash, source_primary, created_at, updated_at`

func (ps *PostgresStore) findByHash(ctx context.Context, tx pgx.Tx, entityID, hash string) (*guide.Guide, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+guideColumns+` FROM guides WHERE entity_id = $1 AND content_hash = $2`,
		entityID, hash,
	)
	return scanGuide(row)
}

// Latest implements GuideStore.
func (ps *PostgresStore) Latest(ctx context.Context, entityID string) (*guide.Guide, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT `+guideColumns+` FROM guides WHERE entity_id = $1 ORDER BY version DESC LIMIT 1`,
		entityID,
	)
	return scanGuide(row)
}

// History implements GuideStore.
func (ps *PostgresStore) History(ctx context.Context, entityID string) ([]*guide.Guide, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT `+guideColumns+` FROM guides WHERE entity_id = $1 ORDER BY version ASC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var guides []*guide.Guide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, g)
	}

	return guides, rows.Err()
}

// GetVersion implements GuideStore.
func (ps *PostgresStore) GetVersion(ctx context.Context, entityID string, version int) (*guide.Guide, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT `+guideColumns+` FROM guides WHERE entity_id = $1 AND version = $2`,
		entityID, version,
	)
	return scanGuide(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGuide(row rowScanner) (*guide.Guide, error) {
	var g guide.Guide
	var contentJSON, validationJSON []byte

	err := row.Scan(
		&g.ID, &g.EntityID, &g.Category, &g.Version, &g.Title, &g.Description,
		&contentJSON, &g.Confidence, &validationJSON, &g.ContentHash,
		&g.SourcePrimary, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning guide: %w", err)
	}

	if err := json.Unmarshal(contentJSON, &g.Content); err != nil {
		return nil, fmt.Errorf("unmarshaling content: %w", err)
	}
	if err := json.Unmarshal(validationJSON, &g.Validation); err != nil {
		return nil, fmt.Errorf("unmarshaling validation: %w", err)
	}

	return &g, nil
}

// CreateJob implements GuideStore.
func (ps *PostgresStore) CreateJob(ctx context.Context, job *guide.CollectionJob) error {
	entitiesJSON, err := json.Marshal(job.Entities)
	if err != nil {
		return fmt.Errorf("marshaling entities: %w", err)
	}

	_, err = ps.pool.Exec(ctx,
		`INSERT INTO collection_jobs
			(id, status, total_entities, success_count, fail_count, entities, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.Status, job.TotalEntities, job.SuccessCount, job.FailCount,
		entitiesJSON, job.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// UpdateJob implements GuideStore.
func (ps *PostgresStore) UpdateJob(ctx context.Context, job *guide.CollectionJob) error {
	var completedAt any
	if !job.CompletedAt.IsZero() {
		completedAt = job.CompletedAt
	}

	tag, err := ps.pool.Exec(ctx,
		`UPDATE collection_jobs
		 SET status = $2, success_count = $3, fail_count = $4, completed_at = $5
		 WHERE id = $1
		   AND status NOT IN ('completed', 'failed', 'cancelled')`,
		job.ID, job.Status, job.SuccessCount, job.FailCount, completedAt,
	)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %q is terminal or missing", job.ID)
	}
	return nil
}

// GetJob implements GuideStore.
func (ps *PostgresStore) GetJob(ctx context.Context, jobID string) (*guide.CollectionJob, []guide.CollectionResult, error) {
	var job guide.CollectionJob
	var entitiesJSON []byte
	var completedAt *time.Time

	err := ps.pool.QueryRow(ctx,
		`SELECT id, status, total_entities, success_count, fail_count, entities, started_at, completed_at
		 FROM collection_jobs WHERE id = $1`,
		jobID,
	).Scan(&job.ID, &job.Status, &job.TotalEntities, &job.SuccessCount,
		&job.FailCount, &entitiesJSON, &job.StartedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("job %q: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying job: %w", err)
	}

	if err := json.Unmarshal(entitiesJSON, &job.Entities); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling entities: %w", err)
	}
	if completedAt != nil {
		job.CompletedAt = *completedAt
	}

	rows, err := ps.pool.Query(ctx,
		`SELECT job_id, entity_id, success, guide_id, error, sources_tried, fetch_failures, duration_ms
		 FROM collection_results WHERE job_id = $1 ORDER BY created_at ASC`,
		jobID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []guide.CollectionResult
	for rows.Next() {
		var r guide.CollectionResult
		var durationMs int64
		if err := rows.Scan(&r.JobID, &r.EntityID, &r.Success, &r.GuideID,
			&r.Error, &r.Metrics.SourcesTried, &r.Metrics.FetchFailures, &durationMs); err != nil {
			return nil, nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Metrics.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, r)
	}

	return &job, results, rows.Err()
}

// RecordResult implements GuideStore.
func (ps *PostgresStore) RecordResult(ctx context.Context, result *guide.CollectionResult) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO collection_results
			(id, job_id, entity_id, success, guide_id, error, sources_tried, fetch_failures, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New().String(), result.JobID, result.EntityID, result.Success,
		result.GuideID, result.Error, result.Metrics.SourcesTried,
		result.Metrics.FetchFailures, result.Metrics.Duration.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}
	return nil
}

// Health implements GuideStore.
func (ps *PostgresStore) Health(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close implements GuideStore.
func (ps *PostgresStore) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}
