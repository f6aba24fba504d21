// Package handlers implements the HTTP API surface: project creation, brief
// intake, status reads, regeneration, and result download.
package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/brief"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/storage"
)

// App bundles the handler dependencies.
type App struct {
	Logger   infra.Logger
	Projects domain.ProjectRepository
	Items    domain.WorkItemRepository
	Parser   *brief.Parser
	Store    *storage.FileStore
}

func NewApp(logger infra.Logger, projects domain.ProjectRepository, items domain.WorkItemRepository, parser *brief.Parser, store *storage.FileStore) *App {
	return &App{
		Logger:   logger,
		Projects: projects,
		Items:    items,
		Parser:   parser,
		Store:    store,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
