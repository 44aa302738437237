package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/promptatlas/promptatlas/internal/collector"
	"github.com/promptatlas/promptatlas/internal/store"
	"github.com/promptatlas/promptatlas/pkg/logging"
)

// Handlers contains the HTTP handlers for the API. The HTTP layer is a
// thin adapter: all collection logic lives in the collector package.
type Handlers struct {
	orchestrator *collector.Orchestrator
	store        store.GuideStore
	entities     []string // default entity set for a full collection run
}

// NewHandlers creates a new handlers instance
func NewHandlers(orchestrator *collector.Orchestrator, guideStore store.GuideStore, entities []string) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		store:        guideStore,
		entities:     entities,
	}
}

// RegisterRoutes mounts all API routes on the app.
func (h *Handlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	v1.Post("/collect", h.CollectAll)
	v1.Post("/collect/:entityId", h.CollectOne)
	v1.Get("/guides/:entityId", h.GetGuide)
	v1.Get("/guides/:entityId/history", h.GetGuideHistory)
	v1.Get("/jobs/:jobId", h.GetJob)
	v1.Get("/status", h.Status)
}

// Health returns the service health status
func (h *Handlers) Health(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	if err := h.store.Health(c.Context()); err != nil {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"service":   "promptatlas",
		"version":   "0.1.0",
		"timestamp": time.Now().UTC(),
	})
}

type collectionSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// CollectAll runs a collection over every configured entity and returns
// the full report once all batches settle.
func (h *Handlers) CollectAll(c *fiber.Ctx) error {
	logger := logging.GetLogger("api")

	if len(h.entities) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no entities configured for collection",
		})
	}

	results, job, err := h.orchestrator.CollectAll(c.Context(), h.entities, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Collection run failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "collection run failed",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"job_id":  job.ID,
		"results": results,
		"summary": collectionSummary{
			Total:   job.TotalEntities,
			Success: job.SuccessCount,
			Failed:  job.FailCount,
		},
		"timestamp": time.Now().UTC(),
	})
}

// CollectOne runs a collection for a single entity.
func (h *Handlers) CollectOne(c *fiber.Ctx) error {
	entityID := c.Params("entityId")
	if entityID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "entity id is required",
		})
	}

	results, job, err := h.orchestrator.CollectAll(c.Context(), []string{entityID}, nil)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "collection failed",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"job_id":  job.ID,
		"results": results,
		"summary": collectionSummary{
			Total:   job.TotalEntities,
			Success: job.SuccessCount,
			Failed:  job.FailCount,
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetGuide returns the latest stored guide for an entity.
func (h *Handlers) GetGuide(c *fiber.Ctx) error {
	entityID := c.Params("entityId")

	g, err := h.store.Latest(c.Context(), entityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no guide found for entity",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(g)
}

// GetGuideHistory returns all stored versions for an entity, oldest first.
func (h *Handlers) GetGuideHistory(c *fiber.Ctx) error {
	entityID := c.Params("entityId")

	history, err := h.store.History(c.Context(), entityID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"entity_id": entityID,
		"versions":  len(history),
		"guides":    history,
	})
}

// GetJob returns one collection job with its per-entity results.
func (h *Handlers) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	job, results, err := h.store.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "job not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"job":     job,
		"results": results,
	})
}

// Status reports the collection schedule. Scheduling itself lives
// outside this service; collections here run on demand.
func (h *Handlers) Status(c *fiber.Ctx) error {
	nextRun := nextWeeklyRun(time.Now().UTC())

	return c.JSON(fiber.Map{
		"schedule":       "weekly, Sundays 03:00 UTC",
		"next_run":       nextRun,
		"entities":       h.entities,
		"entities_count": len(h.entities),
	})
}

// nextWeeklyRun returns the next Sunday 03:00 UTC after now.
func nextWeeklyRun(now time.Time) time.Time {
	daysAhead := (int(time.Sunday) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, time.UTC).
		AddDate(0, 0, daysAhead)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
