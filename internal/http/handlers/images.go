package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

type workItemView struct {
	ID                string                `json:"id"`
	ProjectID         string                `json:"project_id"`
	ImageNumber       int                   `json:"image_number"`
	OriginalURL       string                `json:"original_url"`
	OriginalFilename  string                `json:"original_filename"`
	Title             string                `json:"title"`
	Subtitle          string                `json:"subtitle"`
	AssetName         string                `json:"asset_name"`
	Variant           string                `json:"variant"`
	Status            domain.WorkItemStatus `json:"status"`
	EditedURL         string                `json:"edited_url,omitempty"`
	ProcessingTimeMs  int64                 `json:"processing_time_ms"`
	OCRExtractedText  string                `json:"ocr_extracted_text,omitempty"`
	TextAccuracyScore *float64              `json:"text_accuracy_score,omitempty"`
	NeedsReview       bool                  `json:"needs_review"`
	RetryCount        int                   `json:"retry_count"`
	RetryHistory      []domain.RetryAttempt `json:"retry_history,omitempty"`
	ErrorMessage      string                `json:"error_message,omitempty"`
}

func itemView(item *domain.WorkItem) workItemView {
	return workItemView{
		ID:                item.ID,
		ProjectID:         item.ProjectID,
		ImageNumber:       item.ImageNumber,
		OriginalURL:       item.OriginalURL,
		OriginalFilename:  item.OriginalFilename,
		Title:             item.Title,
		Subtitle:          item.Subtitle,
		AssetName:         item.AssetName,
		Variant:           item.Variant,
		Status:            item.Status,
		EditedURL:         item.EditedURL,
		ProcessingTimeMs:  item.ProcessingTimeMs,
		OCRExtractedText:  item.OCRExtractedText,
		TextAccuracyScore: item.TextAccuracyScore,
		NeedsReview:       item.NeedsReview,
		RetryCount:        item.RetryCount,
		RetryHistory:      item.RetryHistory,
		ErrorMessage:      item.ErrorMessage,
	}
}

// GetImage returns one work item.
func (a *App) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := a.Items.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		a.Logger.Error().Err(err).Str("item_id", id).Msg("api: load image")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load image")
		return
	}
	a.json(w, http.StatusOK, itemView(item))
}

// RegenerateImage requeues a settled work item for a fresh render run. The
// retry counter restarts; the accumulated retry history is kept.
func (a *App) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := a.Items.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		a.Logger.Error().Err(err).Str("item_id", id).Msg("api: load image")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load image")
		return
	}
	if item.Status == domain.WorkItemQueued || item.Status == domain.WorkItemProcessing {
		a.error(w, http.StatusConflict, "conflict", "image is already being processed")
		return
	}

	if err := a.Items.Requeue(r.Context(), item.ID); err != nil {
		a.Logger.Error().Err(err).Str("item_id", id).Msg("api: requeue image")
		a.error(w, http.StatusInternalServerError, "internal", "failed to requeue image")
		return
	}
	if err := a.Projects.UpdateStatus(r.Context(), item.ProjectID, domain.ProjectProcessingImages); err != nil {
		a.Logger.Error().Err(err).Str("project_id", item.ProjectID).Msg("api: update status")
	}
	a.json(w, http.StatusAccepted, map[string]string{
		"id":     item.ID,
		"status": string(domain.WorkItemQueued),
	})
}
