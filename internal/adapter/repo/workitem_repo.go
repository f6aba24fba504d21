package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// WorkItemRepositoryPG implements domain.WorkItemRepository.
type WorkItemRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewWorkItemRepository creates a work item repository backed by PostgreSQL.
func NewWorkItemRepository(pool *pgxpool.Pool) *WorkItemRepositoryPG {
	return &WorkItemRepositoryPG{pool: pool}
}

const workItemColumns = `
id, project_id, image_number, original_url, original_filename,
title, subtitle, asset_name, variant, render_prompt,
status, edited_url, processing_time_ms, ocr_extracted_text, text_accuracy_score,
needs_review, retry_count, retry_history, error_message, created_at, updated_at
`

// CreateAll inserts the matched work items of one upload batch.
func (r *WorkItemRepositoryPG) CreateAll(ctx context.Context, items []domain.WorkItem) error {
	query := `
INSERT INTO images (id, project_id, image_number, original_url, original_filename,
                    title, subtitle, asset_name, variant, render_prompt, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	for _, item := range items {
		_, err := r.pool.Exec(ctx, query,
			item.ID,
			item.ProjectID,
			item.ImageNumber,
			item.OriginalURL,
			item.OriginalFilename,
			item.Title,
			item.Subtitle,
			item.AssetName,
			item.Variant,
			item.RenderPrompt,
			item.Status,
		)
		if err != nil {
			return fmt.Errorf("insert work item %s: %w", item.ID, err)
		}
	}
	return nil
}

// GetByID fetches a work item by its identifier.
func (r *WorkItemRepositoryPG) GetByID(ctx context.Context, id string) (*domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM images WHERE id = $1;`
	item, err := scanWorkItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// ListQueued returns the project's queued items in image order.
func (r *WorkItemRepositoryPG) ListQueued(ctx context.Context, projectID string) ([]domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
FROM images
WHERE project_id = $1 AND status = 'queued'
ORDER BY image_number, created_at;`
	return r.list(ctx, query, projectID)
}

// ListByProject returns every item of a project in image order.
func (r *WorkItemRepositoryPG) ListByProject(ctx context.Context, projectID string) ([]domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
FROM images
WHERE project_id = $1
ORDER BY image_number, created_at;`
	return r.list(ctx, query, projectID)
}

func (r *WorkItemRepositoryPG) list(ctx context.Context, query, projectID string) ([]domain.WorkItem, error) {
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// MarkProcessing flips an item into processing before a render attempt.
func (r *WorkItemRepositoryPG) MarkProcessing(ctx context.Context, id string, retryCount int) error {
	query := `
UPDATE images
SET status = 'processing', retry_count = $2, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, retryCount)
	return err
}

// SaveVerification records the OCR result of one attempt while the item is
// still mid-flight.
func (r *WorkItemRepositoryPG) SaveVerification(ctx context.Context, id, extractedText string, score float64, history []domain.RetryAttempt) error {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode retry history: %w", err)
	}
	query := `
UPDATE images
SET ocr_extracted_text = $2, text_accuracy_score = $3, retry_history = $4, updated_at = NOW()
WHERE id = $1;
`
	_, err = r.pool.Exec(ctx, query, id, extractedText, score, historyJSON)
	return err
}

// Complete persists the final accepted state of an item.
func (r *WorkItemRepositoryPG) Complete(ctx context.Context, id string, update domain.CompletionUpdate) error {
	query := `
UPDATE images
SET status = 'completed',
    edited_url = $2,
    processing_time_ms = $3,
    ocr_extracted_text = $4,
    text_accuracy_score = $5,
    needs_review = $6,
    retry_count = $7,
    error_message = NULL,
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id,
		update.EditedURL,
		update.ProcessingTimeMs,
		update.OCRExtractedText,
		update.TextAccuracyScore,
		update.NeedsReview,
		update.RetryCount,
	)
	return err
}

// Fail records a terminal failure.
func (r *WorkItemRepositoryPG) Fail(ctx context.Context, id, errMsg string, retryCount int) error {
	query := `
UPDATE images
SET status = 'failed', error_message = $2, retry_count = $3, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, errMsg, retryCount)
	return err
}

// Requeue returns an item to the queue for regeneration. Retry history is
// kept; the retry counter restarts for the new run.
func (r *WorkItemRepositoryPG) Requeue(ctx context.Context, id string) error {
	query := `
UPDATE images
SET status = 'queued', retry_count = 0, error_message = NULL, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// RequeueStale returns items stuck in processing, typically after a worker
// crash, back to the queue. Reports how many were recovered.
func (r *WorkItemRepositoryPG) RequeueStale(ctx context.Context, projectID string) (int64, error) {
	query := `
UPDATE images
SET status = 'queued', updated_at = NOW()
WHERE project_id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, query, projectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FailQueued fails every still-queued item of a project with one message.
func (r *WorkItemRepositoryPG) FailQueued(ctx context.Context, projectID, errMsg string) error {
	query := `
UPDATE images
SET status = 'failed', error_message = $2, updated_at = NOW()
WHERE project_id = $1 AND status = 'queued';
`
	_, err := r.pool.Exec(ctx, query, projectID, errMsg)
	return err
}

func scanWorkItem(row pgx.Row) (*domain.WorkItem, error) {
	var (
		item        domain.WorkItem
		editedURL   *string
		extracted   *string
		errMsg      *string
		historyJSON []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.ProjectID,
		&item.ImageNumber,
		&item.OriginalURL,
		&item.OriginalFilename,
		&item.Title,
		&item.Subtitle,
		&item.AssetName,
		&item.Variant,
		&item.RenderPrompt,
		&item.Status,
		&editedURL,
		&item.ProcessingTimeMs,
		&extracted,
		&item.TextAccuracyScore,
		&item.NeedsReview,
		&item.RetryCount,
		&historyJSON,
		&errMsg,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if editedURL != nil {
		item.EditedURL = *editedURL
	}
	if extracted != nil {
		item.OCRExtractedText = *extracted
	}
	if errMsg != nil {
		item.ErrorMessage = *errMsg
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &item.RetryHistory); err != nil {
			return nil, fmt.Errorf("decode retry history: %w", err)
		}
	}
	return &item, nil
}
