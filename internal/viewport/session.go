package viewport

import (
	"sync"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Camera is the initial map position.
type Camera struct {
	Center [2]float64 `json:"center"`
	Zoom   float64    `json:"zoom"`
}

// DefaultCamera frames Burgundy.
var DefaultCamera = Camera{Center: [2]float64{4.8, 47.0}, Zoom: 9}

// Session is the state of one open map: its access token, camera, geometry
// cache and controller. Nothing here is process-global.
type Session struct {
	ID          string
	AccessToken string
	Camera      Camera

	Loader     *geometry.Loader
	Renderer   *FeatureRenderer
	Controller *Controller

	mu       sync.Mutex
	lastSeen time.Time
}

// NewSession wires a loader and controller around a fresh FeatureRenderer.
func NewSession(id, accessToken string, p catalog.Provider, loader *geometry.Loader, detailZoom float64) *Session {
	r := NewFeatureRenderer()
	return &Session{
		ID:          id,
		AccessToken: accessToken,
		Camera:      DefaultCamera,
		Loader:      loader,
		Renderer:    r,
		Controller:  NewController(p, loader, r, detailZoom),
		lastSeen:    time.Now(),
	}
}

// Start hands the full point list to the renderer.
func (s *Session) Start(p catalog.Provider) {
	s.Renderer.ShowPoints(p.Current().All())
}

// Touch records activity on the session.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// FeatureRenderer keeps the layers a browser map would draw as GeoJSON.
type FeatureRenderer struct {
	mu       sync.RWMutex
	points   *geojson.FeatureCollection
	polygons *geojson.FeatureCollection
}

func NewFeatureRenderer() *FeatureRenderer {
	return &FeatureRenderer{
		points:   geojson.NewFeatureCollection(),
		polygons: geojson.NewFeatureCollection(),
	}
}

func (r *FeatureRenderer) ShowPoints(summaries []catalog.ParcelSummary) {
	fc := PointFeatures(summaries)
	r.mu.Lock()
	r.points = fc
	r.mu.Unlock()
}

func (r *FeatureRenderer) ReplaceAll(records []*geometry.Record) {
	fc := geometry.FeatureCollection(records)
	r.mu.Lock()
	r.polygons = fc
	r.mu.Unlock()
}

// Points returns the overview layer.
func (r *FeatureRenderer) Points() *geojson.FeatureCollection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.points
}

// Polygons returns the last polygon batch.
func (r *FeatureRenderer) Polygons() *geojson.FeatureCollection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.polygons
}

// PointFeatures builds the overview layer: one point per parcel at its center.
func PointFeatures(summaries []catalog.ParcelSummary) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range summaries {
		f := geojson.NewFeature(orb.Point{s.Lng(), s.Lat()})
		f.Properties["id"] = s.GeojsonPath
		f.Properties["nom"] = s.Nom
		f.Properties["nomComplet"] = s.NomComplet
		f.Properties["commune"] = s.CommuneNom
		f.Properties["departement"] = s.Departement
		fc.Append(f)
	}
	return fc
}
