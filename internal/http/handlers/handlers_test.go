package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/brief"
	"server/internal/domain"
	"server/internal/providers/gateway"
	"server/internal/storage"
	"server/pkg/zip"
)

type fakeProjects struct {
	projects map[string]*domain.Project
	statuses []domain.ProjectStatus
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{projects: map[string]*domain.Project{}}
}

func (f *fakeProjects) Create(ctx context.Context, project *domain.Project) error {
	f.projects[project.ID] = project
	return nil
}

func (f *fakeProjects) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjects) UpdateStatus(ctx context.Context, id string, status domain.ProjectStatus) error {
	f.statuses = append(f.statuses, status)
	if p, ok := f.projects[id]; ok {
		p.Status = status
	}
	return nil
}

func (f *fakeProjects) SetBrief(ctx context.Context, id, filename, url string) error {
	if p, ok := f.projects[id]; ok {
		p.BriefFilename = filename
		p.BriefURL = url
	}
	return nil
}

func (f *fakeProjects) SetTotalImages(ctx context.Context, id string, total int) error {
	if p, ok := f.projects[id]; ok {
		p.TotalImages = total
	}
	return nil
}

func (f *fakeProjects) UpdateProgress(ctx context.Context, id string, completed int, status domain.ProjectStatus) error {
	if p, ok := f.projects[id]; ok {
		p.CompletedImages = completed
		p.Status = status
	}
	return nil
}

func (f *fakeProjects) NextPending(ctx context.Context) (string, error) {
	return "", domain.ErrNotFound
}

type fakeItems struct {
	created  []domain.WorkItem
	requeued []string
}

func (f *fakeItems) CreateAll(ctx context.Context, items []domain.WorkItem) error {
	f.created = append(f.created, items...)
	return nil
}

func (f *fakeItems) GetByID(ctx context.Context, id string) (*domain.WorkItem, error) {
	for i := range f.created {
		if f.created[i].ID == id {
			return &f.created[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeItems) ListQueued(ctx context.Context, projectID string) ([]domain.WorkItem, error) {
	return nil, nil
}

func (f *fakeItems) ListByProject(ctx context.Context, projectID string) ([]domain.WorkItem, error) {
	var items []domain.WorkItem
	for _, item := range f.created {
		if item.ProjectID == projectID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeItems) MarkProcessing(ctx context.Context, id string, retryCount int) error { return nil }

func (f *fakeItems) SaveVerification(ctx context.Context, id, extractedText string, score float64, history []domain.RetryAttempt) error {
	return nil
}

func (f *fakeItems) Complete(ctx context.Context, id string, update domain.CompletionUpdate) error {
	return nil
}

func (f *fakeItems) Fail(ctx context.Context, id, errMsg string, retryCount int) error { return nil }

func (f *fakeItems) Requeue(ctx context.Context, id string) error {
	f.requeued = append(f.requeued, id)
	for i := range f.created {
		if f.created[i].ID == id {
			f.created[i].Status = domain.WorkItemQueued
		}
	}
	return nil
}

func (f *fakeItems) RequeueStale(ctx context.Context, projectID string) (int64, error) {
	return 0, nil
}

func (f *fakeItems) FailQueued(ctx context.Context, projectID, errMsg string) error { return nil }

type fixedCompleter struct {
	response string
}

func (c fixedCompleter) CompleteText(ctx context.Context, messages []gateway.Message, temperature float64) (string, error) {
	return c.response, nil
}

func newTestApp(t *testing.T, projects *fakeProjects, items *fakeItems, completer brief.Completer) *App {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewApp(zerolog.New(io.Discard), projects, items, brief.NewParser(completer), store)
}

func routerFor(app *App) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/projects", app.CreateProject)
	r.Get("/v1/projects/{id}", app.GetProject)
	r.Post("/v1/projects/{id}/intake", app.IntakeBrief)
	r.Get("/v1/images/{id}", app.GetImage)
	r.Post("/v1/images/{id}/regenerate", app.RegenerateImage)
	return r
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, newFakeProjects(), &fakeItems{}, fixedCompleter{})
	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	rec := httptest.NewRecorder()
	app.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" || resp["service"] == "" {
		t.Fatalf("unexpected health payload: %v", resp)
	}
}

func TestCreateProject(t *testing.T) {
	projects := newFakeProjects()
	app := newTestApp(t, projects, &fakeItems{}, fixedCompleter{})
	router := routerFor(app)

	body := `{"name":"Holiday campaign","brand":{"font":"Inter","text_color":"#FFFFFF"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp projectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != domain.ProjectUploading {
		t.Fatalf("unexpected status: %s", resp.Status)
	}
	stored, ok := projects.projects[resp.ID]
	if !ok {
		t.Fatal("project not persisted")
	}
	if stored.Brand.Font != "Inter" {
		t.Fatalf("brand not persisted: %+v", stored.Brand)
	}
}

func TestCreateProjectRequiresName(t *testing.T) {
	app := newTestApp(t, newFakeProjects(), &fakeItems{}, fixedCompleter{})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{"name":"  "}`))
	rec := httptest.NewRecorder()
	routerFor(app).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

const intakeDocumentXML = `<w:document>
<w:p><w:r><w:t>IMAGE 1 HEADLINE: CORSAIR ONE I600 COPY: A compact PC packed with cutting-edge components.</w:t></w:r></w:p>
<w:p><w:r><w:drawing><a:blip r:embed="rId4"/></w:drawing></w:r></w:p>
<w:p><w:r><w:drawing><a:blip r:embed="rId5"/></w:drawing></w:r></w:p>
</w:document>`

const intakeRelsXML = `<Relationships>
<Relationship Id="rId4" Type="image" Target="media/image1.png"/>
<Relationship Id="rId5" Type="image" Target="media/image2.png"/>
</Relationships>`

const intakeSpecsJSON = `[
  {"image_number": 1, "variant": "METAL DARK", "title": "CORSAIR ONE I600", "subtitle": "A compact PC.", "asset": "hero_shot", "ai_prompt": "Add a dark gradient overlay."},
  {"image_number": 2, "variant": "WOOD DARK", "title": "CORSAIR ONE I600", "subtitle": "A compact PC.", "asset": "detail_shot", "ai_prompt": "Add a light gradient overlay."}
]`

func multipartDOCX(t *testing.T, extraImages map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	docx := zip.ArchiveAssets([]zip.Asset{
		{Filename: "word/document.xml", Data: []byte(intakeDocumentXML)},
		{Filename: "word/_rels/document.xml.rels", Data: []byte(intakeRelsXML)},
		{Filename: "word/media/image1.png", Data: []byte{0x89, 0x50}},
		{Filename: "word/media/image2.png", Data: []byte{0x89, 0x51}},
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("brief", "campaign.docx")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(docx); err != nil {
		t.Fatalf("write brief: %v", err)
	}
	for name, data := range extraImages {
		fw, err := mw.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestIntakeBriefDOCX(t *testing.T) {
	projects := newFakeProjects()
	projects.projects["proj-1"] = &domain.Project{ID: "proj-1", Name: "Campaign", Status: domain.ProjectUploading}
	items := &fakeItems{}
	app := newTestApp(t, projects, items, fixedCompleter{response: intakeSpecsJSON})
	router := routerFor(app)

	body, contentType := multipartDOCX(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/projects/proj-1/intake", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["total_images"] != float64(2) {
		t.Fatalf("unexpected total: %v", resp["total_images"])
	}
	// Both extracted images match by document order.
	if resp["matched"] != float64(2) {
		t.Fatalf("unexpected matched count: %v", resp["matched"])
	}
	if len(items.created) != 2 {
		t.Fatalf("expected 2 queued items, got %d", len(items.created))
	}
	for _, item := range items.created {
		if item.Status != domain.WorkItemQueued {
			t.Fatalf("item not queued: %+v", item)
		}
		if item.Title != "CORSAIR ONE I600" {
			t.Fatalf("spec fields not copied: %+v", item)
		}
	}
	project := projects.projects["proj-1"]
	if project.Status != domain.ProjectProcessingImages {
		t.Fatalf("unexpected project status: %s", project.Status)
	}
	if project.TotalImages != 2 {
		t.Fatalf("unexpected total images: %d", project.TotalImages)
	}
	if project.BriefFilename != "campaign.docx" {
		t.Fatalf("brief not recorded: %q", project.BriefFilename)
	}
}

func TestIntakeBriefUnmatchedUploadGetsFallback(t *testing.T) {
	projects := newFakeProjects()
	projects.projects["proj-1"] = &domain.Project{
		ID:     "proj-1",
		Name:   "Campaign",
		Status: domain.ProjectUploading,
		Brand:  domain.BrandSettings{Font: "Inter"},
	}
	items := &fakeItems{}
	app := newTestApp(t, projects, items, fixedCompleter{response: intakeSpecsJSON})

	body, contentType := multipartDOCX(t, map[string][]byte{"random_photo.jpg": {0xff, 0xd8}})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects/proj-1/intake", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	routerFor(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(items.created) != 3 {
		t.Fatalf("expected 3 queued items, got %d", len(items.created))
	}
	var fallback *domain.WorkItem
	for i := range items.created {
		if items.created[i].OriginalFilename == "random_photo.jpg" {
			fallback = &items.created[i]
		}
	}
	if fallback == nil {
		t.Fatal("upload missing from queue")
	}
	if !strings.HasPrefix(fallback.Title, "[UNMATCHED: ") {
		t.Fatalf("unexpected fallback title: %q", fallback.Title)
	}
	if !strings.Contains(fallback.RenderPrompt, "Inter") {
		t.Fatalf("fallback prompt must use brand font: %q", fallback.RenderPrompt)
	}
}

func TestIntakeBriefSiblingVariantsGetUniqueImageNumbers(t *testing.T) {
	// Two variants of one brief image share a specification image number;
	// work item numbers must stay positional and unique regardless.
	specsJSON := `[
	  {"image_number": 2, "variant": "METAL DARK", "title": "CORSAIR ONE I600", "subtitle": "A compact PC.", "asset": "CORSAIR_ONE_i600_DARK_METAL", "ai_prompt": "Add a dark gradient overlay."},
	  {"image_number": 2, "variant": "WOOD DARK", "title": "CORSAIR ONE I600", "subtitle": "A compact PC.", "asset": "CORSAIR_ONE_i600_WOOD_DARK_PHOTO", "ai_prompt": "Add a dark gradient overlay."}
	]`
	docx := zip.ArchiveAssets([]zip.Asset{
		{Filename: "word/document.xml", Data: []byte(`<w:document><w:p><w:r><w:t>IMAGE 2 HEADLINE: CORSAIR ONE I600 with METAL DARK and WOOD DARK variants.</w:t></w:r></w:p></w:document>`)},
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("brief", "campaign.docx")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(docx); err != nil {
		t.Fatalf("write brief: %v", err)
	}
	for _, name := range []string{"CORSAIR_ONE_i600_DARK_METAL.jpg", "CORSAIR_ONE_i600_WOOD_DARK_PHOTO.jpg"} {
		fw, err := mw.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		if _, err := fw.Write([]byte{0xff, 0xd8}); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	projects := newFakeProjects()
	projects.projects["proj-1"] = &domain.Project{ID: "proj-1", Name: "Campaign", Status: domain.ProjectUploading}
	items := &fakeItems{}
	app := newTestApp(t, projects, items, fixedCompleter{response: specsJSON})

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/proj-1/intake", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	routerFor(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(items.created) != 2 {
		t.Fatalf("expected 2 queued items, got %d", len(items.created))
	}
	seen := map[int]bool{}
	for i, item := range items.created {
		if item.ImageNumber != i+1 {
			t.Fatalf("image number must be positional, got %d at position %d", item.ImageNumber, i)
		}
		if seen[item.ImageNumber] {
			t.Fatalf("duplicate image number %d", item.ImageNumber)
		}
		seen[item.ImageNumber] = true
		if item.Variant == "" {
			t.Fatalf("spec fields not copied: %+v", item)
		}
	}
}

func TestIntakeBriefUnsupportedFormat(t *testing.T) {
	projects := newFakeProjects()
	projects.projects["proj-1"] = &domain.Project{ID: "proj-1", Name: "Campaign", Status: domain.ProjectUploading}
	app := newTestApp(t, projects, &fakeItems{}, fixedCompleter{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("brief", "campaign.txt")
	_, _ = fw.Write([]byte("plain text brief"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/proj-1/intake", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	routerFor(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if projects.projects["proj-1"].Status != domain.ProjectFailed {
		t.Fatalf("project must be failed, got %s", projects.projects["proj-1"].Status)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	app := newTestApp(t, newFakeProjects(), &fakeItems{}, fixedCompleter{})
	req := httptest.NewRequest(http.MethodGet, "/v1/projects/missing", nil)
	rec := httptest.NewRecorder()
	routerFor(app).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestRegenerateImage(t *testing.T) {
	projects := newFakeProjects()
	projects.projects["proj-1"] = &domain.Project{ID: "proj-1", Status: domain.ProjectCompleted}
	items := &fakeItems{created: []domain.WorkItem{
		{ID: "item-1", ProjectID: "proj-1", Status: domain.WorkItemCompleted},
		{ID: "item-2", ProjectID: "proj-1", Status: domain.WorkItemProcessing},
	}}
	app := newTestApp(t, projects, items, fixedCompleter{})
	router := routerFor(app)

	req := httptest.NewRequest(http.MethodPost, "/v1/images/item-1/regenerate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(items.requeued) != 1 || items.requeued[0] != "item-1" {
		t.Fatalf("item not requeued: %v", items.requeued)
	}
	if projects.projects["proj-1"].Status != domain.ProjectProcessingImages {
		t.Fatalf("project must return to processing, got %s", projects.projects["proj-1"].Status)
	}

	// An in-flight item cannot be regenerated.
	req = httptest.NewRequest(http.MethodPost, "/v1/images/item-2/regenerate", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
