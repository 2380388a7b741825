package catalog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/logging"
	"github.com/EmpoweredVote/appellations-backend/internal/metrics"
)

// Provider hands out the current catalog index. Callers must re-read it per
// operation rather than keep it, so that a reload is picked up.
type Provider interface {
	Current() *Index
}

// Static wraps a fixed index as a Provider.
func Static(idx *Index) Provider { return staticProvider{idx: idx} }

type staticProvider struct{ idx *Index }

func (s staticProvider) Current() *Index { return s.idx }

// Store owns the live catalog. Each load builds a fresh Index and swaps it in
// whole; an index is never mutated after Build.
type Store struct {
	loader  Loader
	current atomic.Pointer[Index]
}

// NewStore creates an empty store; call Load before serving.
func NewStore(loader Loader) *Store {
	return &Store{loader: loader}
}

// Current returns the live index, or nil before the first successful load.
func (s *Store) Current() *Index { return s.current.Load() }

// Load reads the source and atomically replaces the live index. On error the
// previous index, if any, stays in place.
func (s *Store) Load(ctx context.Context) (*Index, error) {
	start := time.Now()
	entries, err := s.loader.Load(ctx)
	if err != nil {
		metrics.CatalogLoadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	idx, err := Build(entries)
	if err != nil {
		metrics.CatalogLoadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	s.current.Store(idx)

	metrics.CatalogLoadsTotal.WithLabelValues("ok").Inc()
	metrics.CatalogParcels.Set(float64(idx.Len()))
	logging.Infof("catalog", "%d parcels loaded from %s in %dms", idx.Len(), s.loader.Name(), time.Since(start).Milliseconds())
	return idx, nil
}
