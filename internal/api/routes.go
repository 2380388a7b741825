package api

import (
	"net/http"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
)

// SetupRoutes mounts the public parcel API. requestsPerMinute bounds each
// client IP; zero disables the limit.
func (h *Handler) SetupRoutes(requestsPerMinute int) http.Handler {
	r := chi.NewRouter()
	if requestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/points", h.Points)
	r.Get("/search", h.Search)
	r.Get("/suggest", h.Suggest)
	r.Get("/groups", h.Groups)
	r.Get("/bbox", h.BBox)
	r.Get("/map-config", h.MapConfig)

	r.Post("/sessions", h.OpenSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(h.sessions, h.sessions.idle))
		r.Delete("/", h.CloseSession)
		r.Post("/viewport", h.Settle)
		r.Get("/polygons", h.Polygons)
		r.Get("/parcel", h.Parcel)
		r.Get("/results", h.Results)
	})

	return r
}
