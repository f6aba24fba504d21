package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/brief"
	"server/internal/domain"
	"server/internal/matching"
	"server/pkg/zip"
)

// maxUploadBytes caps one intake request: a brief document plus a batch of
// product photos.
const maxUploadBytes = 256 << 20

type createProjectRequest struct {
	Name  string               `json:"name"`
	Brand domain.BrandSettings `json:"brand"`
}

type projectResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Status          domain.ProjectStatus `json:"status"`
	BriefFilename   string               `json:"brief_filename,omitempty"`
	TotalImages     int                  `json:"total_images"`
	CompletedImages int                  `json:"completed_images"`
}

func projectView(p *domain.Project) projectResponse {
	return projectResponse{
		ID:              p.ID,
		Name:            p.Name,
		Status:          p.Status,
		BriefFilename:   p.BriefFilename,
		TotalImages:     p.TotalImages,
		CompletedImages: p.CompletedImages,
	}
}

// CreateProject registers an empty project awaiting its brief upload.
func (a *App) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name required")
		return
	}

	project := &domain.Project{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Status: domain.ProjectUploading,
		Brand:  req.Brand,
	}
	if err := a.Projects.Create(r.Context(), project); err != nil {
		a.Logger.Error().Err(err).Msg("api: create project")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create project")
		return
	}
	a.json(w, http.StatusCreated, projectView(project))
}

// GetProject returns the project with its full work item list.
func (a *App) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	project, err := a.Projects.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: load project")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load project")
		return
	}
	items, err := a.Items.ListByProject(r.Context(), id)
	if err != nil {
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: load items")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load images")
		return
	}

	views := make([]workItemView, 0, len(items))
	for i := range items {
		views = append(views, itemView(&items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"project": projectView(project),
		"images":  views,
	})
}

// IntakeBrief accepts the multipart upload that kicks off processing: a brief
// document under "brief" and any number of product photos under "images".
// The brief is parsed into specifications, embedded document images are
// extracted, every image is matched against the specifications, and the
// resulting work items are queued.
func (a *App) IntakeBrief(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	project, err := a.Projects.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: load project")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load project")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	briefFile, briefHeader, err := r.FormFile("brief")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "brief file required")
		return
	}
	defer briefFile.Close()
	briefData, err := io.ReadAll(briefFile)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable brief file")
		return
	}

	briefKey, err := a.Store.Write(r.Context(), project.ID+"/brief/"+briefHeader.Filename, briefData)
	if err != nil {
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: store brief")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store brief")
		return
	}
	if err := a.Projects.SetBrief(r.Context(), project.ID, briefHeader.Filename, a.Store.PublicURL(briefKey)); err != nil {
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: record brief")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record brief")
		return
	}
	if err := a.Projects.UpdateStatus(r.Context(), project.ID, domain.ProjectParsingBrief); err != nil {
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: update status")
	}

	specs, extracted, err := a.parseBrief(r, project, briefHeader.Filename, briefData)
	if err != nil {
		a.failProject(w, r, project.ID, err)
		return
	}

	assets := extracted
	uploads, err := a.storeUploads(r, project.ID)
	if err != nil {
		a.failProject(w, r, project.ID, err)
		return
	}
	assets = append(assets, uploads...)
	if len(assets) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "no images to process")
		return
	}

	items := make([]domain.WorkItem, 0, len(assets))
	matched := 0
	for i, asset := range assets {
		match := matching.BestMatch(asset, specs)
		if match != nil {
			matched++
		} else {
			a.Logger.Warn().Str("filename", asset.Filename).Msg("api: no specification matched upload")
		}
		// Image numbers are positional and unique per project; the matched
		// specification's own number is not unique across variants.
		items = append(items, matching.BuildWorkItem(project.ID, i+1, asset, match, project.Brand))
	}

	if err := a.Items.CreateAll(r.Context(), items); err != nil {
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: queue work items")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue images")
		return
	}
	if err := a.Projects.SetTotalImages(r.Context(), project.ID, len(items)); err != nil {
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: set total images")
	}
	if err := a.Projects.UpdateStatus(r.Context(), project.ID, domain.ProjectProcessingImages); err != nil {
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: update status")
	}

	a.json(w, http.StatusAccepted, map[string]any{
		"project_id":     project.ID,
		"status":         domain.ProjectProcessingImages,
		"total_images":   len(items),
		"matched":        matched,
		"unmatched":      len(items) - matched,
		"specifications": len(specs),
	})
}

// DownloadResults streams a zip archive of every completed render.
func (a *App) DownloadResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	project, err := a.Projects.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: load project")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load project")
		return
	}
	items, err := a.Items.ListByProject(r.Context(), id)
	if err != nil {
		a.Logger.Error().Err(err).Str("project_id", id).Msg("api: load items")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load images")
		return
	}

	var assets []zip.Asset
	for _, item := range items {
		if item.Status != domain.WorkItemCompleted || item.EditedURL == "" {
			continue
		}
		key := a.Store.KeyFromURL(item.EditedURL)
		if key == "" {
			continue
		}
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			a.Logger.Warn().Err(err).Str("item_id", item.ID).Msg("api: skip unreadable render")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: path.Base(key),
			MIME:     "image/jpeg",
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no completed images")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", project.Name+".zip"))
	_, _ = w.Write(zip.ArchiveAssets(assets))
}

// parseBrief routes the uploaded document to the right extractor by
// extension, stores any embedded images, and returns the parsed
// specifications together with the document-extracted assets.
func (a *App) parseBrief(r *http.Request, project *domain.Project, filename string, data []byte) ([]domain.SpecificationRecord, []domain.UploadedAsset, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		text, err := brief.ExtractPDF(data)
		if err != nil {
			return nil, nil, err
		}
		specs, err := a.Parser.ParsePDFText(r.Context(), text, project.Brand)
		return specs, nil, err
	case ".docx":
		content, err := brief.ExtractDOCX(data)
		if err != nil {
			return nil, nil, err
		}
		var assets []domain.UploadedAsset
		for i, img := range content.Images {
			key := fmt.Sprintf("%s/extracted_%d%s", project.ID, i+1, path.Ext(img.Filename))
			savedKey, err := a.Store.Write(r.Context(), key, img.Data)
			if err != nil {
				return nil, nil, err
			}
			assets = append(assets, domain.UploadedAsset{
				Filename:      path.Base(savedKey),
				URL:           a.Store.PublicURL(savedKey),
				DocumentOrder: img.DocumentOrder,
			})
		}
		specs, err := a.Parser.ParseDOCXText(r.Context(), content.Text, len(content.Images), project.Brand)
		return specs, assets, err
	default:
		return nil, nil, domain.ErrUnsupportedFormat
	}
}

// storeUploads persists the directly uploaded product photos.
func (a *App) storeUploads(r *http.Request, projectID string) ([]domain.UploadedAsset, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var assets []domain.UploadedAsset
	for _, header := range r.MultipartForm.File["images"] {
		data, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		key, err := a.Store.Write(r.Context(), projectID+"/"+header.Filename, data)
		if err != nil {
			return nil, err
		}
		assets = append(assets, domain.UploadedAsset{
			Filename: header.Filename,
			URL:      a.Store.PublicURL(key),
		})
	}
	return assets, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// failProject maps a brief processing error onto the project state and the
// HTTP response. Client mistakes are 4xx; parser and gateway trouble is 502.
func (a *App) failProject(w http.ResponseWriter, r *http.Request, projectID string, cause error) {
	code := http.StatusBadGateway
	kind := "brief_parse_failed"
	switch {
	case errors.Is(cause, domain.ErrUnsupportedFormat):
		code, kind = http.StatusBadRequest, "unsupported_format"
	case errors.Is(cause, domain.ErrEmptyDocument):
		code, kind = http.StatusBadRequest, "empty_document"
	}
	if err := a.Projects.UpdateStatus(r.Context(), projectID, domain.ProjectFailed); err != nil {
		a.Logger.Error().Err(err).Str("project_id", projectID).Msg("api: mark project failed")
	}
	a.Logger.Error().Err(cause).Str("project_id", projectID).Msg("api: brief intake failed")
	a.error(w, code, kind, cause.Error())
}
