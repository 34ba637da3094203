package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/planpanel/internal/planservice"
)

// NewRouter creates a chi router with all plan routes mounted.
// authEnabled controls whether the shared token is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *planservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(CORS)
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/planning", func(r chi.Router) {
		r.Get("/", h.GetPlan)
		r.Post("/", h.SavePlan)
		r.Post("/toggle", h.TogglePlan)
		r.Post("/format", h.FormatPlan)
		r.Get("/history", h.History)
		r.Get("/days", h.Days)
		r.Get("/search", h.Search)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
