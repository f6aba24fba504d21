package domain

import "time"

// WorkItemStatus enumerates work-item lifecycle states. Transitions are
// one-directional except for an explicit operator-triggered regeneration.
type WorkItemStatus string

const (
	WorkItemQueued     WorkItemStatus = "queued"
	WorkItemProcessing WorkItemStatus = "processing"
	WorkItemCompleted  WorkItemStatus = "completed"
	WorkItemFailed     WorkItemStatus = "failed"
)

// ProjectStatus enumerates project lifecycle states.
type ProjectStatus string

const (
	ProjectUploading        ProjectStatus = "uploading"
	ProjectParsingBrief     ProjectStatus = "parsing_brief"
	ProjectProcessingImages ProjectStatus = "processing_images"
	ProjectCompleted        ProjectStatus = "completed"
	ProjectFailed           ProjectStatus = "failed"
)

// RetryAttempt records the measured accuracy of one render attempt.
// RetryHistory is append-only for the lifetime of a work item, across
// regenerations included.
type RetryAttempt struct {
	Attempt   int       `json:"attempt"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkItem is the full processing record of one uploaded image: spec-matched,
// rendered, and verified. Spec fields are copied at creation and independent
// of the specification afterwards.
type WorkItem struct {
	ID               string
	ProjectID        string
	ImageNumber      int
	OriginalURL      string
	OriginalFilename string

	Title        string
	Subtitle     string
	AssetName    string
	Variant      string
	RenderPrompt string

	Status            WorkItemStatus
	EditedURL         string
	ProcessingTimeMs  int64
	OCRExtractedText  string
	TextAccuracyScore *float64
	NeedsReview       bool
	RetryCount        int
	RetryHistory      []RetryAttempt
	ErrorMessage      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CompletionUpdate carries the fields persisted when a work item reaches its
// final accepted state. TextAccuracyScore is nil when the OCR check was
// skipped; no score means no review flag.
type CompletionUpdate struct {
	EditedURL         string
	ProcessingTimeMs  int64
	OCRExtractedText  string
	TextAccuracyScore *float64
	NeedsReview       bool
	RetryCount        int
}

// Project aggregates the work items created from one brief upload.
// CompletedImages only ever grows.
type Project struct {
	ID              string
	Name            string
	Status          ProjectStatus
	BriefFilename   string
	BriefURL        string
	Brand           BrandSettings
	TotalImages     int
	CompletedImages int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
