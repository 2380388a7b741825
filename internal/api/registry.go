package api

import (
	"context"
	"sync"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/geometry"
	"github.com/EmpoweredVote/appellations-backend/internal/logging"
	"github.com/EmpoweredVote/appellations-backend/internal/viewport"
	"github.com/google/uuid"
)

// Registry holds the open map sessions. Each session owns its own geometry
// cache and visible set; only the raw document source is shared.
type Registry struct {
	catalog     catalog.Provider
	newLoader   func() *geometry.Loader
	accessToken string
	detailZoom  float64
	idle        time.Duration

	mu       sync.Mutex
	sessions map[string]*viewport.Session
}

// NewRegistry creates an empty registry. newLoader is called once per session.
func NewRegistry(p catalog.Provider, newLoader func() *geometry.Loader, accessToken string, detailZoom float64, idle time.Duration) *Registry {
	return &Registry{
		catalog:     p,
		newLoader:   newLoader,
		accessToken: accessToken,
		detailZoom:  detailZoom,
		idle:        idle,
		sessions:    make(map[string]*viewport.Session),
	}
}

// Open starts a session and hands it the point overview.
func (r *Registry) Open() *viewport.Session {
	s := viewport.NewSession(uuid.NewString(), r.accessToken, r.catalog, r.newLoader(), r.detailZoom)
	s.Start(r.catalog)

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	logging.Infof("sessions", "opened %s (%d open)", s.ID, n)
	return s
}

func (r *Registry) FindSession(id string) (*viewport.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close drops a session and its cache.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle since before now minus the idle timeout.
func (r *Registry) Sweep(now time.Time) int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.IdleSince().Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		logging.Infof("sessions", "closed %d idle sessions (%d open)", n, len(r.sessions))
	}
	return n
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.Sweep(now)
		}
	}
}
