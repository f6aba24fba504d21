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

// ProjectRepositoryPG implements domain.ProjectRepository.
type ProjectRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a project repository backed by PostgreSQL.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepositoryPG {
	return &ProjectRepositoryPG{pool: pool}
}

// Create inserts a new project record.
func (r *ProjectRepositoryPG) Create(ctx context.Context, project *domain.Project) error {
	brand, err := json.Marshal(project.Brand)
	if err != nil {
		return fmt.Errorf("encode brand settings: %w", err)
	}
	query := `
INSERT INTO projects (id, name, status, brief_filename, brief_url, brand, total_images, completed_images)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err = r.pool.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Status,
		project.BriefFilename,
		project.BriefURL,
		brand,
		project.TotalImages,
		project.CompletedImages,
	)
	return err
}

// GetByID fetches a project by its identifier.
func (r *ProjectRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `
SELECT id, name, status, brief_filename, brief_url, brand, total_images, completed_images, created_at, updated_at
FROM projects
WHERE id = $1;
`
	var (
		project   domain.Project
		brandJSON []byte
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.Status,
		&project.BriefFilename,
		&project.BriefURL,
		&brandJSON,
		&project.TotalImages,
		&project.CompletedImages,
		&project.CreatedAt,
		&project.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(brandJSON) > 0 {
		if err := json.Unmarshal(brandJSON, &project.Brand); err != nil {
			return nil, fmt.Errorf("decode brand settings: %w", err)
		}
	}
	return &project, nil
}

// UpdateStatus moves the project through its lifecycle.
func (r *ProjectRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.ProjectStatus) error {
	query := `UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1;`
	_, err := r.pool.Exec(ctx, query, id, status)
	return err
}

// SetBrief records the uploaded brief document.
func (r *ProjectRepositoryPG) SetBrief(ctx context.Context, id, filename, url string) error {
	query := `UPDATE projects SET brief_filename = $2, brief_url = $3, updated_at = NOW() WHERE id = $1;`
	_, err := r.pool.Exec(ctx, query, id, filename, url)
	return err
}

// SetTotalImages fixes the number of work items created for the project.
func (r *ProjectRepositoryPG) SetTotalImages(ctx context.Context, id string, total int) error {
	query := `UPDATE projects SET total_images = $2, updated_at = NOW() WHERE id = $1;`
	_, err := r.pool.Exec(ctx, query, id, total)
	return err
}

// UpdateProgress persists the settled-item count and status after a batch.
// GREATEST keeps the count monotone under concurrent writers.
func (r *ProjectRepositoryPG) UpdateProgress(ctx context.Context, id string, completed int, status domain.ProjectStatus) error {
	query := `
UPDATE projects
SET completed_images = GREATEST(completed_images, $2), status = $3, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, completed, status)
	return err
}

// NextPending returns the oldest project that still has queued work, or
// domain.ErrNotFound when the queue is drained.
func (r *ProjectRepositoryPG) NextPending(ctx context.Context) (string, error) {
	query := `
SELECT p.id
FROM projects p
WHERE p.status = 'processing_images'
  AND EXISTS (SELECT 1 FROM images i WHERE i.project_id = p.id AND i.status = 'queued')
ORDER BY p.updated_at
LIMIT 1;
`
	var id string
	if err := r.pool.QueryRow(ctx, query).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return id, nil
}
