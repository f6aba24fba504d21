package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(app.Logger),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/projects", func(r chi.Router) {
		r.Post("/", app.CreateProject)
		r.Get("/{id}", app.GetProject)
		r.Post("/{id}/intake", app.IntakeBrief)
		r.Get("/{id}/download", app.DownloadResults)
	})

	r.Route("/v1/images", func(r chi.Router) {
		r.Get("/{id}", app.GetImage)
		r.Post("/{id}/regenerate", app.RegenerateImage)
	})

	// Stored briefs, originals, and renders.
	fileServer := stdhttp.StripPrefix("/files/", stdhttp.FileServer(stdhttp.Dir(app.Store.BasePath())))
	r.Get("/files/*", fileServer.ServeHTTP)

	return r
}
