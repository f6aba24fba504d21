package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"server/internal/domain"
)

// DefaultBatchSize bounds concurrent renders for one project; batches run
// strictly one after another, so this is also the peak concurrent use of the
// external gateway.
const DefaultBatchSize = 10

// CredentialChecker reports whether the external AI gateway can be called at
// all. Checked once per project before any attempt is spent.
type CredentialChecker interface {
	Configured() bool
}

// Coordinator drains a project's queued work items in fixed-size batches.
type Coordinator struct {
	items     domain.WorkItemRepository
	projects  domain.ProjectRepository
	orch      *Orchestrator
	creds     CredentialChecker
	batchSize int
	logger    zerolog.Logger
}

// NewCoordinator wires the coordinator. A non-positive batchSize falls back
// to DefaultBatchSize.
func NewCoordinator(items domain.WorkItemRepository, projects domain.ProjectRepository, orch *Orchestrator, creds CredentialChecker, batchSize int, logger zerolog.Logger) *Coordinator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Coordinator{
		items:     items,
		projects:  projects,
		orch:      orch,
		creds:     creds,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ProcessProject runs the orchestrator over every queued work item of the
// project. Items within a batch run concurrently but isolated: one item's
// failure never cancels its siblings. After each batch the cumulative count
// of settled items is persisted as project progress, and the project flips to
// completed once that count reaches the total.
func (c *Coordinator) ProcessProject(ctx context.Context, projectID string) error {
	queued, err := c.items.ListQueued(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list queued items: %w", err)
	}
	if len(queued) == 0 {
		c.logger.Info().Str("project_id", projectID).Msg("pipeline: no queued items")
		return nil
	}

	if c.creds != nil && !c.creds.Configured() {
		// Unrecoverable configuration error: fail everything up front
		// instead of burning attempts per item.
		if err := c.items.FailQueued(ctx, projectID, "AI service not configured. Please contact support."); err != nil {
			c.logger.Error().Err(err).Str("project_id", projectID).Msg("pipeline: fail queued items")
		}
		if err := c.projects.UpdateStatus(ctx, projectID, domain.ProjectFailed); err != nil {
			c.logger.Error().Err(err).Str("project_id", projectID).Msg("pipeline: mark project failed")
		}
		return domain.ErrNotConfigured
	}

	project, err := c.projects.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}

	settled := 0
	totalBatches := (len(queued) + c.batchSize - 1) / c.batchSize
	for offset := 0; offset < len(queued); offset += c.batchSize {
		end := min(offset+c.batchSize, len(queued))
		batch := queued[offset:end]

		c.logger.Info().
			Str("project_id", projectID).
			Int("batch", offset/c.batchSize+1).
			Int("batches", totalBatches).
			Int("size", len(batch)).
			Msg("pipeline: processing batch")

		g := new(errgroup.Group)
		for i := range batch {
			item := &batch[i]
			g.Go(func() error {
				// Per-item outcomes are independent; failures are
				// persisted on the item, not propagated.
				if err := c.orch.Process(ctx, item); err != nil {
					c.logger.Error().Err(err).Str("item_id", item.ID).Msg("pipeline: item failed")
				}
				return nil
			})
		}
		_ = g.Wait()

		settled += len(batch)
		completed := project.CompletedImages + settled
		status := domain.ProjectProcessingImages
		if completed >= project.TotalImages {
			// A regenerated item re-runs after the project already counted
			// it, so the sum can overshoot the total.
			completed = project.TotalImages
			status = domain.ProjectCompleted
		}
		if err := c.projects.UpdateProgress(ctx, projectID, completed, status); err != nil {
			c.logger.Error().Err(err).Str("project_id", projectID).Msg("pipeline: update progress")
		}
	}

	c.logger.Info().
		Str("project_id", projectID).
		Int("processed", settled).
		Msg("pipeline: project drained")
	return nil
}
