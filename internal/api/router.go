package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSessionHandler)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSessionHandler)
			r.Delete("/", app.DeleteSessionHandler)

			r.With(app.limitUploads).Post("/candidate", app.UploadCandidateHandler)
			r.Get("/candidate/stream", app.StreamCandidateHandler)

			r.Get("/references", app.ListReferencesHandler)
			r.With(app.limitUploads).Post("/references", app.AddReferencesHandler)
			r.Delete("/references/{refID}", app.RemoveReferenceHandler)

			r.Get("/patterns", app.PatternsHandler)

			r.Post("/analysis", app.StartAnalysisHandler)
			r.Delete("/analysis", app.CancelAnalysisHandler)
			r.Get("/analysis/stream", app.AnalysisStreamHandler)

			r.Get("/result", app.ResultHandler)
			r.Get("/report", app.ReportHandler)
			r.Post("/reset", app.ResetHandler)
		})
	})

	return r
}
