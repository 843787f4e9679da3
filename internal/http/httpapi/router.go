package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mockupstudio/internal/http/handlers"
	"mockupstudio/internal/infra"
	mw "mockupstudio/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		mw.Logger(logger),
		mw.CORS(cfg.CORSAllowedOrigins),
	)

	// Calls that reach the model or accept uploads are rate limited per IP.
	limited := mw.RateLimit(cfg.RateLimitPerMin, time.Minute)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/catalog", app.Catalog)
	r.Get("/v1/stats", app.StatsSummary)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.With(limited).Post("/", app.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Patch("/", app.UpdateSelections)
			r.Delete("/", app.DeleteSession)
			r.Get("/source", app.SourceImage)
			r.Get("/result", app.ResultImage)
			r.Get("/bundle", app.Bundle)
			r.Get("/events", app.Events)

			r.Group(func(r chi.Router) {
				r.Use(limited)
				r.Put("/image", app.ReplaceImage)
				r.Post("/generate", app.Generate)
				r.Post("/repair", app.Repair)
			})
		})
	})

	return r
}
