package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route. Everything under /api except login and
// register requires a session token.
func NewRouter(d Deps) chi.Router {
	cfg := d.config()
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(AccessLog(d.Log))
	r.Use(Recover(d.Log))
	r.Use(Cors(cfg.App.CORSOrigins))

	r.Get("/health", HealthHandler{d}.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/logo/{key}", LogosHandler{d}.Get)

	ah := AuthHandler{d}
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(RateLimit(NewRateLimiter(1, 10)))
		r.Post("/register", ah.Register)
		r.Post("/login", ah.Login)
		r.Post("/logout", ah.Logout)
		r.With(RequireAuth(d.Auth.Tokens())).Get("/me", ah.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(d.Auth.Tokens()))

		// LCA data
		lh := LCAHandler{d}
		r.Get("/api/lca/data", lh.Data)
		r.Get("/api/lca/filter-values", lh.FilterValues)
		r.Get("/api/lca/stats", lh.Stats)
		r.Get("/api/lca/records/{caseNumber}", lh.Record)

		// Sending
		sh := SendHandler{d}
		r.Post("/api/send-email", sh.One)
		r.Post("/api/send-bulk-email", sh.Bulk)
		r.Post("/api/test-email", sh.Test)

		// Tracking
		ap := ApplicationsHandler{d}
		r.Get("/api/applications", ap.List)
		r.Post("/api/applications", ap.Track)
		r.Post("/api/applications/track", ap.Track)

		r.Post("/api/generate-cover-letter", CoverLetterHandler{d}.Generate)

		// Secrets (use CfgVal, NOT a snapshot cfg)
		sec := SecretsHandler{d}
		r.Post("/api/secrets/smtp", sec.SetSMTPPassword)
		r.Delete("/api/secrets/smtp", sec.DeleteSMTPPassword)

		// SSE events
		r.Get("/api/events", EventsHandler{Hub: d.Hub}.ServeSSE)

		// Config
		ch := ConfigHandler{d}
		r.Get("/api/config", ch.Get)
		r.Get("/api/config/path", ch.Path)
		r.Get("/api/config/validate", ch.Validate)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}
