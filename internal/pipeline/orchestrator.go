// Package pipeline drives work items through render, verification, and
// bounded retry, and coordinates batches of items per project.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/verify"
)

const (
	// MaxRetries bounds re-renders per work item; three attempts total.
	MaxRetries = 2

	// acceptScore ends the retry loop early; a result at or above it is
	// excellent and spends no further attempts.
	acceptScore = 90.0

	// retryScore is the floor below which a result is re-rendered while
	// attempts remain. Scores between retryScore and acceptScore are
	// accepted as-is.
	retryScore = 70.0
)

// Renderer produces an edited image for an instruction and a source image
// reference.
type Renderer interface {
	RenderImage(ctx context.Context, instruction, imageURL string) ([]byte, error)
}

// TextExtractor OCRs a rendered image.
type TextExtractor interface {
	ExtractText(ctx context.Context, instruction string, image []byte) (string, error)
}

// ObjectStore persists rendered bytes under a key and maps keys to
// retrievable URLs.
type ObjectStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	PublicURL(key string) string
}

// Orchestrator runs the per-item render-verify-retry state machine.
type Orchestrator struct {
	items    domain.WorkItemRepository
	renderer Renderer
	ocr      TextExtractor
	store    ObjectStore
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(items domain.WorkItemRepository, renderer Renderer, ocr TextExtractor, store ObjectStore, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		items:    items,
		renderer: renderer,
		ocr:      ocr,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Process runs the bounded retry loop for a single work item and always
// leaves it in a terminal state: completed on acceptance, failed after a hard
// error on the last allowed attempt. The returned error reports the terminal
// failure; content-quality shortfalls are never errors.
func (o *Orchestrator) Process(ctx context.Context, item *domain.WorkItem) error {
	start := o.now()
	var lastAccuracy float64

	for {
		done, err := o.attempt(ctx, item, start, &lastAccuracy)
		if err != nil {
			o.logger.Error().Err(err).
				Str("item_id", item.ID).
				Int("attempt", item.RetryCount+1).
				Msg("pipeline: attempt failed")
			if item.RetryCount >= MaxRetries {
				item.Status = domain.WorkItemFailed
				item.ErrorMessage = err.Error()
				if persistErr := o.items.Fail(ctx, item.ID, err.Error(), item.RetryCount); persistErr != nil {
					o.logger.Error().Err(persistErr).Str("item_id", item.ID).Msg("pipeline: persist failure state")
				}
				return err
			}
			item.RetryCount++
			continue
		}
		if done {
			return nil
		}
		item.RetryCount++
	}
}

// attempt performs one render cycle. done=true means the item reached its
// final completed state; done=false requests another attempt. A non-nil
// error is a hard failure of this attempt.
func (o *Orchestrator) attempt(ctx context.Context, item *domain.WorkItem, start time.Time, lastAccuracy *float64) (bool, error) {
	attempt := item.RetryCount + 1
	item.Status = domain.WorkItemProcessing
	if err := o.items.MarkProcessing(ctx, item.ID, item.RetryCount); err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}

	o.logger.Info().
		Str("item_id", item.ID).
		Int("image_number", item.ImageNumber).
		Int("attempt", attempt).
		Str("filename", item.OriginalFilename).
		Msg("pipeline: rendering")

	instruction := BuildRenderInstruction(item, *lastAccuracy)
	rendered, err := o.renderer.RenderImage(ctx, instruction, item.OriginalURL)
	if err != nil {
		return false, fmt.Errorf("render: %w", err)
	}

	// Versioned key per attempt so earlier renders stay retrievable.
	key := fmt.Sprintf("%s/%s_edited_v%d.jpg", item.ProjectID, item.ID, attempt)
	savedKey, err := o.store.Write(ctx, key, rendered)
	if err != nil {
		return false, fmt.Errorf("store rendered image: %w", err)
	}
	editedURL := o.store.PublicURL(savedKey)

	extracted, ocrErr := o.ocr.ExtractText(ctx, BuildOCRInstruction(item.Title, item.Subtitle), rendered)
	if ocrErr != nil {
		// OCR is an auxiliary check: accept the render unverified rather
		// than block completion on it.
		o.logger.Warn().Err(ocrErr).Str("item_id", item.ID).Msg("pipeline: ocr failed, accepting without verification")
		return true, o.complete(ctx, item, editedURL, start, "", nil)
	}

	result := verify.Score(item.Title, item.Subtitle, extracted)
	*lastAccuracy = result.Overall
	score := result.Overall
	item.OCRExtractedText = extracted
	item.TextAccuracyScore = &score
	item.RetryHistory = append(item.RetryHistory, domain.RetryAttempt{
		Attempt:   attempt,
		Accuracy:  result.Overall,
		Timestamp: o.now(),
	})
	if err := o.items.SaveVerification(ctx, item.ID, extracted, result.Overall, item.RetryHistory); err != nil {
		return false, fmt.Errorf("save verification: %w", err)
	}

	o.logger.Info().
		Str("item_id", item.ID).
		Int("attempt", attempt).
		Float64("title_score", result.TitleScore).
		Float64("subtitle_score", result.SubtitleScore).
		Float64("overall", result.Overall).
		Msg("pipeline: verification scored")

	if result.Overall >= acceptScore {
		return true, o.complete(ctx, item, editedURL, start, extracted, &score)
	}
	if result.Overall < retryScore && item.RetryCount < MaxRetries {
		return false, nil
	}
	return true, o.complete(ctx, item, editedURL, start, extracted, &score)
}

func (o *Orchestrator) complete(ctx context.Context, item *domain.WorkItem, editedURL string, start time.Time, extracted string, score *float64) error {
	item.Status = domain.WorkItemCompleted
	item.EditedURL = editedURL
	item.ProcessingTimeMs = o.now().Sub(start).Milliseconds()
	item.NeedsReview = score != nil && *score < acceptScore

	update := domain.CompletionUpdate{
		EditedURL:         editedURL,
		ProcessingTimeMs:  item.ProcessingTimeMs,
		OCRExtractedText:  extracted,
		TextAccuracyScore: score,
		NeedsReview:       item.NeedsReview,
		RetryCount:        item.RetryCount,
	}
	if err := o.items.Complete(ctx, item.ID, update); err != nil {
		return fmt.Errorf("persist completion: %w", err)
	}

	evt := o.logger.Info().
		Str("item_id", item.ID).
		Int("attempts", item.RetryCount+1).
		Int64("processing_ms", item.ProcessingTimeMs)
	if score != nil {
		evt = evt.Float64("accuracy", *score)
	}
	evt.Msg("pipeline: item completed")
	return nil
}
