// Package guide defines the domain types shared across the collection
// pipeline: sources, fetch results, extracted content, and the versioned
// guide document itself.
package guide

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceOrigin records where a candidate URL came from.
type SourceOrigin string

const (
	OriginStatic SourceOrigin = "static"
	OriginSearch SourceOrigin = "search"
)

// Source is one candidate URL for an entity.
type Source struct {
	URL    string       `json:"url"`
	Origin SourceOrigin `json:"origin"`
	Query  string       `json:"query,omitempty"` // search query that produced it
}

// FailureClass classifies a fetch failure. The class drives the retry
// policy, so it is decided once at the fetch boundary and carried in the
// result instead of being re-derived downstream.
type FailureClass int

const (
	FailureNone FailureClass = iota
	FailureBotBlocked
	FailureTransient
	FailurePermanent
)

func (fc FailureClass) String() string {
	switch fc {
	case FailureNone:
		return "none"
	case FailureBotBlocked:
		return "bot_blocked"
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// FetchResult is the outcome of fetching and extracting one source.
type FetchResult struct {
	Source      string            `json:"source"`
	Success     bool              `json:"success"`
	StatusCode  int               `json:"status_code,omitempty"`
	Failure     FailureClass      `json:"failure,omitempty"`
	Error       string            `json:"error,omitempty"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Content     *ExtractedContent `json:"content,omitempty"`
}

// Example pairs an extracted prompt example with its section label.
type Example struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ExtractedContent holds the knowledge buckets pulled from a page.
type ExtractedContent struct {
	BestPractices []string          `json:"best_practices,omitempty"`
	Tips          []string          `json:"tips,omitempty"`
	Examples      []Example         `json:"examples,omitempty"`
	Parameters    map[string]string `json:"parameters,omitempty"`
}

// ContentVolume is the per-bucket item count of an ExtractedContent.
type ContentVolume struct {
	Practices int
	Tips      int
	Examples  int
}

// Total returns the combined item count.
func (cv ContentVolume) Total() int {
	return cv.Practices + cv.Tips + cv.Examples
}

// Richer reports whether cv holds strictly more items than other.
func (cv ContentVolume) Richer(other ContentVolume) bool {
	return cv.Total() > other.Total()
}

// Volume counts the items in each bucket. Safe on a nil receiver.
func (ec *ExtractedContent) Volume() ContentVolume {
	if ec == nil {
		return ContentVolume{}
	}
	return ContentVolume{
		Practices: len(ec.BestPractices),
		Tips:      len(ec.Tips),
		Examples:  len(ec.Examples),
	}
}

// Empty reports whether every bucket is empty. Parameters alone do not
// make a guide non-empty: they carry no prompting guidance.
func (ec *ExtractedContent) Empty() bool {
	return ec.Volume().Total() == 0
}

// Validation is the outcome of integrity checks over a guide. Issues
// mark the guide invalid; warnings only reduce confidence.
type Validation struct {
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Guide is one versioned prompt guide for an entity.
type Guide struct {
	ID            string           `json:"id"`
	EntityID      string           `json:"entity_id"`
	Category      string           `json:"category"`
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	Content       ExtractedContent `json:"content"`
	Confidence    float64          `json:"confidence"`
	Validation    Validation       `json:"validation"`
	ContentHash   string           `json:"content_hash"`
	Version       int              `json:"version"`
	SourcePrimary string           `json:"source_primary,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// hashPayload is the canonical subset of a guide that participates in
// content hashing. Versioning metadata and scores stay out so that
// re-collecting identical content always produces the same hash.
type hashPayload struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Content     ExtractedContent `json:"content"`
}

// ComputeHash returns the hex sha256 over the guide's canonical content.
func (g *Guide) ComputeHash() (string, error) {
	payload, err := json.Marshal(hashPayload{
		Title:       g.Title,
		Description: g.Description,
		Content:     g.Content,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling hash payload: %w", err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Validate checks the structural minimum for persistence: an entity id
// plus either a title or some content.
func (g *Guide) Validate() error {
	if strings.TrimSpace(g.EntityID) == "" {
		return fmt.Errorf("guide has no entity id")
	}
	if strings.TrimSpace(g.Title) == "" && g.Content.Empty() {
		return fmt.Errorf("guide for %q has neither title nor content", g.EntityID)
	}
	return nil
}

// JobStatus is the lifecycle state of a collection job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs reject
// further updates.
func (js JobStatus) Terminal() bool {
	switch js {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CollectionJob tracks one batch collection run.
type CollectionJob struct {
	ID            string    `json:"id"`
	Status        JobStatus `json:"status"`
	TotalEntities int       `json:"total_entities"`
	Entities      []string  `json:"entities"`
	SuccessCount  int       `json:"success_count"`
	FailCount     int       `json:"fail_count"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
}

// ResultMetrics carries per-entity collection statistics.
type ResultMetrics struct {
	SourcesTried  int           `json:"sources_tried"`
	FetchFailures int           `json:"fetch_failures"`
	Duration      time.Duration `json:"duration"`
}

// CollectionResult is the per-entity outcome of a collection run.
type CollectionResult struct {
	JobID    string        `json:"job_id"`
	EntityID string        `json:"entity_id"`
	Success  bool          `json:"success"`
	GuideID  string        `json:"guide_id,omitempty"`
	Error    string        `json:"error,omitempty"`
	Metrics  ResultMetrics `json:"metrics"`
}
