package geometry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/logging"
	"github.com/EmpoweredVote/appellations-backend/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxPending is the largest number of not-yet-visible parcels a single
// EnsureVisible call will load.
const DefaultMaxPending = 800

// State is the load state of one parcel geometry.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unloaded"
	}
}

// Loader fetches parcel geometries on demand and keeps them for the life of a
// session. Loaded and Failed are both terminal: a parcel is fetched at most
// once and a failed parcel is never retried.
type Loader struct {
	source      Source
	palette     *Palette
	maxPending  int
	concurrency int

	mu      sync.Mutex
	states  map[string]State
	cache   map[string]*Record
	visible map[string]*Record

	flights singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxPending sets the safety cap on not-yet-visible parcels per batch.
func WithMaxPending(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxPending = n
		}
	}
}

// WithConcurrency bounds the number of fetches running at once. Zero means
// every fetch of a batch runs concurrently.
func WithConcurrency(n int) Option {
	return func(l *Loader) { l.concurrency = n }
}

// WithPalette shares a color memo between loaders.
func WithPalette(p *Palette) Option {
	return func(l *Loader) { l.palette = p }
}

// NewLoader creates an empty loader over source.
func NewLoader(source Source, opts ...Option) *Loader {
	l := &Loader{
		source:     source,
		maxPending: DefaultMaxPending,
		states:     make(map[string]State),
		cache:      make(map[string]*Record),
		visible:    make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.palette == nil {
		l.palette = NewPalette()
	}
	return l
}

// EnsureVisible makes summaries the visible set and returns their records,
// largest bbox first. Visible parcels are reused, cached parcels promoted and
// the rest fetched concurrently; the call returns once every fetch settled.
// Parcels that fail are logged and left out of the batch.
//
// When more than MaxPending distinct parcels are not yet visible (failed
// parcels excluded), nothing is fetched, no state changes and
// ErrTooManyParcels is returned. If ctx ends before the batch settles, the
// visible set is left as it was and ctx.Err() is returned; fetches already
// started still complete into the cache.
func (l *Loader) EnsureVisible(ctx context.Context, summaries []catalog.ParcelSummary) ([]*Record, error) {
	start := time.Now()
	wanted := dedup(summaries)

	l.mu.Lock()
	pending := 0
	for _, s := range wanted {
		if _, ok := l.visible[s.GeojsonPath]; ok {
			continue
		}
		if l.states[s.GeojsonPath] == Failed {
			continue
		}
		pending++
	}
	if pending > l.maxPending {
		l.mu.Unlock()
		return nil, ErrTooManyParcels
	}

	batch := make([]*Record, len(wanted))
	var toFetch []int
	for i, s := range wanted {
		id := s.GeojsonPath
		if r, ok := l.visible[id]; ok {
			batch[i] = r
			continue
		}
		if r, ok := l.cache[id]; ok {
			batch[i] = r
			continue
		}
		if l.states[id] == Failed {
			continue
		}
		toFetch = append(toFetch, i)
	}
	l.mu.Unlock()

	l.fetchAll(ctx, wanted, toFetch, batch)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := compact(batch)
	visible := make(map[string]*Record, len(records))
	for _, r := range records {
		visible[r.ID()] = r
	}
	l.mu.Lock()
	l.visible = visible
	l.mu.Unlock()

	SortByArea(records)
	logging.LogBatch("geometry", len(wanted), len(records), len(toFetch), time.Since(start))
	return records, nil
}

// Get returns the record for one parcel, fetching it if needed. It does not
// touch the visible set.
func (l *Loader) Get(ctx context.Context, s catalog.ParcelSummary) (*Record, error) {
	l.mu.Lock()
	r, ok := l.cache[s.GeojsonPath]
	failed := l.states[s.GeojsonPath] == Failed
	l.mu.Unlock()
	if ok {
		return r, nil
	}
	if failed {
		return nil, ErrUnavailable
	}
	return l.load(ctx, s)
}

// GetAll loads several parcels concurrently and returns the ones that
// succeeded, in input order. It does not touch the visible set.
func (l *Loader) GetAll(ctx context.Context, summaries []catalog.ParcelSummary) []*Record {
	wanted := dedup(summaries)
	batch := make([]*Record, len(wanted))
	idx := make([]int, 0, len(wanted))

	l.mu.Lock()
	for i, s := range wanted {
		if r, ok := l.cache[s.GeojsonPath]; ok {
			batch[i] = r
		} else if l.states[s.GeojsonPath] != Failed {
			idx = append(idx, i)
		}
	}
	l.mu.Unlock()

	l.fetchAll(ctx, wanted, idx, batch)
	return compact(batch)
}

// Visible returns the ids of the current visible set.
func (l *Loader) Visible() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.visible))
	for id := range l.visible {
		ids = append(ids, id)
	}
	return ids
}

// Cached returns the loaded record for id, if any.
func (l *Loader) Cached(id string) (*Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.cache[id]
	return r, ok
}

// State returns the load state of id.
func (l *Loader) State(id string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[id]
}

// fetchAll loads wanted[i] for each i in idx into batch[i], joining on all of
// them. Failures leave batch[i] nil.
func (l *Loader) fetchAll(ctx context.Context, wanted []catalog.ParcelSummary, idx []int, batch []*Record) {
	if len(idx) == 0 {
		return
	}
	var g errgroup.Group
	if l.concurrency > 0 {
		g.SetLimit(l.concurrency)
	}
	for _, i := range idx {
		i := i
		g.Go(func() error {
			r, err := l.load(ctx, wanted[i])
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logging.Warnf("geometry", "failed to load parcel %s (%s): %v", wanted[i].Nom, wanted[i].GeojsonPath, err)
				return nil
			}
			batch[i] = r
			return nil
		})
	}
	_ = g.Wait()
}

// load fetches and decodes one parcel. Concurrent calls for the same id share
// a single fetch. The fetch is detached from the caller's cancellation so a
// caller that gives up never fails the others waiting on it; each caller
// still stops waiting when its own ctx ends.
func (l *Loader) load(ctx context.Context, s catalog.ParcelSummary) (*Record, error) {
	id := s.GeojsonPath
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.flights.DoChan(id, func() (interface{}, error) {
		l.mu.Lock()
		if r, ok := l.cache[id]; ok {
			l.mu.Unlock()
			return r, nil
		}
		if l.states[id] == Failed {
			l.mu.Unlock()
			return nil, ErrUnavailable
		}
		l.states[id] = Loading
		l.mu.Unlock()

		start := time.Now()
		raw, err := l.source.Fetch(fetchCtx, id)
		var r *Record
		if err == nil {
			r, err = Decode(raw, s, l.palette.Color(s.Nom))
		}
		metrics.GeometryFetchDurationMs.Observe(float64(time.Since(start).Milliseconds()))

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			metrics.GeometryFetchTotal.WithLabelValues("error").Inc()
			if errors.Is(err, context.Canceled) {
				// Cancelled, not a broken parcel.
				delete(l.states, id)
			} else {
				l.states[id] = Failed
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				err = &FetchError{Path: id, Err: err}
			}
			return nil, err
		}
		metrics.GeometryFetchTotal.WithLabelValues("ok").Inc()
		logging.LogFetch("geometry", id, time.Since(start), len(raw))
		l.states[id] = Loaded
		l.cache[id] = r
		return r, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Record), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dedup keeps the first summary for each id.
func dedup(summaries []catalog.ParcelSummary) []catalog.ParcelSummary {
	seen := make(map[string]struct{}, len(summaries))
	out := make([]catalog.ParcelSummary, 0, len(summaries))
	for _, s := range summaries {
		if _, ok := seen[s.GeojsonPath]; ok {
			continue
		}
		seen[s.GeojsonPath] = struct{}{}
		out = append(out, s)
	}
	return out
}

func compact(batch []*Record) []*Record {
	out := make([]*Record, 0, len(batch))
	for _, r := range batch {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
