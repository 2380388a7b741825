package api

import (
	"context"
	"net/http"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/logging"
	"github.com/EmpoweredVote/appellations-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Reloader rebuilds the live catalog from its source.
type Reloader interface {
	Load(ctx context.Context) (*catalog.Index, error)
}

// AdminRoutes mounts maintenance endpoints behind the admin token.
func AdminRoutes(store Reloader, tokenHash string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.AdminToken(tokenHash))

	r.Post("/catalog/reload", func(w http.ResponseWriter, r *http.Request) {
		idx, err := store.Load(r.Context())
		if err != nil {
			logging.LogError("admin", "catalog reload", err)
			http.Error(w, "Catalog reload failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		render.JSON(w, r, map[string]int{"parcelles": idx.Len()})
	})

	return r
}
