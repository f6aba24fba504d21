package domain

import "context"

// WorkItemRepository persists work items with partial-field updates so
// mid-flight progress stays observable to external readers.
type WorkItemRepository interface {
	CreateAll(ctx context.Context, items []WorkItem) error
	GetByID(ctx context.Context, id string) (*WorkItem, error)
	ListQueued(ctx context.Context, projectID string) ([]WorkItem, error)
	ListByProject(ctx context.Context, projectID string) ([]WorkItem, error)
	MarkProcessing(ctx context.Context, id string, retryCount int) error
	SaveVerification(ctx context.Context, id, extractedText string, score float64, history []RetryAttempt) error
	Complete(ctx context.Context, id string, update CompletionUpdate) error
	Fail(ctx context.Context, id, errMsg string, retryCount int) error
	Requeue(ctx context.Context, id string) error
	RequeueStale(ctx context.Context, projectID string) (int64, error)
	FailQueued(ctx context.Context, projectID, errMsg string) error
}

// ProjectRepository persists project aggregates.
type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	UpdateStatus(ctx context.Context, id string, status ProjectStatus) error
	SetBrief(ctx context.Context, id, filename, url string) error
	SetTotalImages(ctx context.Context, id string, total int) error
	UpdateProgress(ctx context.Context, id string, completed int, status ProjectStatus) error
	NextPending(ctx context.Context) (string, error)
}
