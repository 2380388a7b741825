package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/geometry"
	"github.com/EmpoweredVote/appellations-backend/internal/logging"
	"github.com/EmpoweredVote/appellations-backend/internal/metrics"
	"github.com/EmpoweredVote/appellations-backend/internal/middleware"
	"github.com/EmpoweredVote/appellations-backend/internal/search"
	"github.com/EmpoweredVote/appellations-backend/internal/viewport"
	"github.com/go-chi/render"
	"github.com/paulmach/orb/geojson"
)

// ResultsLimit caps the free-text results page.
const ResultsLimit = 50

// Handler serves the parcel map API.
type Handler struct {
	catalog    catalog.Provider
	search     *search.Engine
	sessions   *Registry
	maxResults int
}

func NewHandler(p catalog.Provider, engine *search.Engine, sessions *Registry, maxResults int) *Handler {
	return &Handler{catalog: p, search: engine, sessions: sessions, maxResults: maxResults}
}

type searchResponse struct {
	Query       string          `json:"query"`
	Results     []search.Result `json:"results"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

type bboxResponse struct {
	Count     int                     `json:"count"`
	Parcelles []catalog.ParcelSummary `json:"parcelles"`
}

type sessionResponse struct {
	ID          string          `json:"id"`
	AccessToken string          `json:"accessToken,omitempty"`
	Camera      viewport.Camera `json:"camera"`
	Points      int             `json:"points"`
}

type viewportResponse struct {
	Status   viewport.Status            `json:"status"`
	InView   int                        `json:"inView"`
	Features *geojson.FeatureCollection `json:"features,omitempty"`
}

type mapConfigResponse struct {
	AccessToken string          `json:"accessToken,omitempty"`
	Camera      viewport.Camera `json:"camera"`
	DetailZoom  float64         `json:"detailZoom"`
}

func (h *Handler) Points(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, viewport.PointFeatures(h.catalog.Current().All()))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := intParam(r, "limit", h.maxResults)

	start := time.Now()
	results := h.search.Search(q, limit)
	addServerTiming(w, "search", time.Since(start))

	metrics.SearchRequestsTotal.Inc()
	resp := searchResponse{Query: q, Results: results}
	if len(results) == 0 {
		metrics.SearchEmptyTotal.Inc()
		resp.Suggestions = h.search.Suggest(q, 5)
		resp.Results = []search.Result{}
	}
	render.JSON(w, r, resp)
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	names := h.search.Suggest(r.URL.Query().Get("q"), intParam(r, "limit", 5))
	if names == nil {
		names = []string{}
	}
	render.JSON(w, r, names)
}

// Groups lists appellations matching q with their parcels; an empty q lists
// every appellation.
func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	var parcelles []catalog.ParcelSummary
	if q == "" {
		parcelles = h.catalog.Current().All()
	} else {
		parcelles = h.search.Matching(q, 0)
	}
	groups := catalog.GroupByName(parcelles)
	if groups == nil {
		groups = []catalog.Group{}
	}
	render.JSON(w, r, groups)
}

func (h *Handler) BBox(w http.ResponseWriter, r *http.Request) {
	bbox, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	parcelles := h.catalog.Current().InBBox(bbox)
	if parcelles == nil {
		parcelles = []catalog.ParcelSummary{}
	}
	render.JSON(w, r, bboxResponse{Count: len(parcelles), Parcelles: parcelles})
}

func (h *Handler) MapConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, mapConfigResponse{
		AccessToken: h.sessions.accessToken,
		Camera:      viewport.DefaultCamera,
		DetailZoom:  h.sessions.detailZoom,
	})
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Open()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sessionResponse{
		ID:          s.ID,
		AccessToken: s.AccessToken,
		Camera:      s.Camera,
		Points:      len(s.Renderer.Points().Features),
	})
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, _ := middleware.SessionFromContext(r.Context())
	h.sessions.Close(s.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Settle feeds one viewport-settle event to the session's controller.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	s, _ := middleware.SessionFromContext(r.Context())

	var vp viewport.Viewport
	if err := render.DecodeJSON(r.Body, &vp); err != nil {
		http.Error(w, "Invalid viewport body: "+err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	out := s.Controller.Settle(r.Context(), vp)
	addServerTiming(w, "settle", time.Since(start))

	resp := viewportResponse{Status: out.Status, InView: out.InView}
	if out.Status == viewport.StatusLoaded {
		resp.Features = s.Renderer.Polygons()
	}
	render.JSON(w, r, resp)
}

// Polygons returns the session's current polygon layer.
func (h *Handler) Polygons(w http.ResponseWriter, r *http.Request) {
	s, _ := middleware.SessionFromContext(r.Context())
	render.JSON(w, r, s.Renderer.Polygons())
}

// Parcel resolves a navigation target (path + commune) to its geometry.
func (h *Handler) Parcel(w http.ResponseWriter, r *http.Request) {
	s, _ := middleware.SessionFromContext(r.Context())
	q := r.URL.Query()

	summary, ok := h.catalog.Current().Find(q.Get("path"), q.Get("commune"))
	if !ok {
		http.Error(w, "Parcel not found", http.StatusNotFound)
		return
	}

	rec, err := s.Loader.Get(r.Context(), summary)
	if err != nil {
		if !errors.Is(err, geometry.ErrUnavailable) {
			logging.Warnf("api", "parcel %s: %v", summary.GeojsonPath, err)
		}
		http.Error(w, "Parcel geometry is temporarily unavailable", http.StatusBadGateway)
		return
	}
	render.JSON(w, r, rec.Feature)
}

// Results loads the geometries of every parcel matching a free-text query,
// up to ResultsLimit, largest first.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	s, _ := middleware.SessionFromContext(r.Context())

	matches := h.search.Matching(r.URL.Query().Get("q"), ResultsLimit)
	records := s.Loader.GetAll(r.Context(), matches)
	geometry.SortByArea(records)
	render.JSON(w, r, geometry.FeatureCollection(records))
}
