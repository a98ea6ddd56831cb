package app

import (
	"database/sql"
	"net/http"
	"time"

	"formhub/internal/app/observability"
	"formhub/internal/auth"
	"formhub/internal/form"
	"formhub/internal/report"
	"formhub/internal/submission"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)

	limiter := NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute)
	r.Use(RateLimitMiddleware(limiter))

	authSvc := auth.NewService(db, auth.ServiceConfig{
		BcryptCost:     cfg.BcryptCost,
		BootstrapToken: cfg.BootstrapToken,
	})
	authHandler := auth.NewHandler(authSvc)

	formSvc := form.NewService(db)
	formHandler := form.NewHandler(formSvc)

	submissionSvc := submission.NewService(db)
	submissionHandler := submission.NewHandler(submissionSvc)

	reportSvc := report.NewService(db)
	reportHandler := report.NewHandler(reportSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/bootstrap/init", authHandler.BootstrapInit)

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireKey)

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles("admin"))
				admin.Post("/keys", authHandler.CreateKey)
				admin.Delete("/keys", authHandler.RevokeKey)
			})

			secure.Group(func(editor chi.Router) {
				editor.Use(authHandler.RequireRoles("admin", "editor"))
				editor.Post("/forms", formHandler.CreateForm)
				editor.Post("/forms/{id}/questions", formHandler.CreateQuestion)
				editor.Put("/questions/{id}/options", formHandler.ReplaceOptions)
				editor.Patch("/questions/{id}/options/{key}/label", formHandler.RenameOption)
			})

			secure.Get("/forms", formHandler.ListForms)
			secure.Get("/forms/{id}", formHandler.GetForm)
			secure.Get("/forms/{id}/questions", formHandler.ListQuestions)
			secure.Get("/questions/{id}", formHandler.GetQuestion)
			secure.Get("/questions/{id}/options/{key}/history", formHandler.ListOptionHistory)

			secure.Post("/forms/{id}/submissions", submissionHandler.CreateSubmission)
			secure.Get("/forms/{id}/submissions", submissionHandler.ListSubmissions)
			secure.Get("/submissions/{id}", submissionHandler.GetSubmission)

			secure.Get("/forms/{id}/stats", reportHandler.FormStats)
			secure.Get("/forms/{id}/stats/export", reportHandler.ExportFormStats)
			secure.Get("/questions/{id}/stats", reportHandler.QuestionStats)
		})
	})

	return r
}
