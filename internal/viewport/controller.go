package viewport

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/geometry"
	"github.com/EmpoweredVote/appellations-backend/internal/logging"
	"github.com/EmpoweredVote/appellations-backend/internal/metrics"
)

// DefaultDetailZoom is the zoom level from which parcel polygons are loaded.
const DefaultDetailZoom = 12

// Viewport is a settled map camera: the visible rectangle
// [minLng, minLat, maxLng, maxLat] and the zoom level.
type Viewport struct {
	BBox []float64 `json:"bbox"`
	Zoom float64   `json:"zoom"`
}

// Status is the outcome of one settle event.
type Status string

const (
	StatusBusy      Status = "busy"
	StatusBelowZoom Status = "below_zoom"
	StatusEmpty     Status = "empty"
	StatusTooMany   Status = "too_many"
	StatusCancelled Status = "cancelled"
	StatusLoaded    Status = "loaded"
)

// Outcome reports what a settle event did. Records is only set when Status
// is StatusLoaded; InView counts the parcels whose center is in the bbox.
type Outcome struct {
	Status  Status
	InView  int
	Records []*geometry.Record
}

// Renderer is the map drawing collaborator.
type Renderer interface {
	// ShowPoints receives every catalog summary once for the overview layer.
	ShowPoints(summaries []catalog.ParcelSummary)

	// ReplaceAll swaps the polygon layer for a sorted batch.
	ReplaceAll(records []*geometry.Record)
}

// Controller turns viewport-settle events into polygon batches. At most one
// batch runs at a time; an event that arrives meanwhile is dropped, and the
// next settle picks up the latest camera.
type Controller struct {
	catalog    catalog.Provider
	loader     *geometry.Loader
	renderer   Renderer
	detailZoom float64

	loading atomic.Bool
}

// NewController creates an idle controller.
func NewController(p catalog.Provider, loader *geometry.Loader, renderer Renderer, detailZoom float64) *Controller {
	if detailZoom <= 0 {
		detailZoom = DefaultDetailZoom
	}
	return &Controller{
		catalog:    p,
		loader:     loader,
		renderer:   renderer,
		detailZoom: detailZoom,
	}
}

// Loading reports whether a batch is in flight.
func (c *Controller) Loading() bool { return c.loading.Load() }

// Settle handles one viewport-settle event.
func (c *Controller) Settle(ctx context.Context, vp Viewport) Outcome {
	out := c.settle(ctx, vp)
	metrics.ViewportOutcomesTotal.WithLabelValues(string(out.Status)).Inc()
	return out
}

func (c *Controller) settle(ctx context.Context, vp Viewport) Outcome {
	if vp.Zoom < c.detailZoom {
		return Outcome{Status: StatusBelowZoom}
	}
	if !c.loading.CompareAndSwap(false, true) {
		return Outcome{Status: StatusBusy}
	}
	defer c.loading.Store(false)

	inView := c.catalog.Current().InBBox(vp.BBox)
	if len(inView) == 0 {
		return Outcome{Status: StatusEmpty}
	}

	records, err := c.loader.EnsureVisible(ctx, inView)
	if errors.Is(err, geometry.ErrTooManyParcels) {
		logging.Warnf("viewport", "too many parcels to load polygons (%d), wait for zoom", len(inView))
		return Outcome{Status: StatusTooMany, InView: len(inView)}
	}
	if err != nil {
		return Outcome{Status: StatusCancelled, InView: len(inView)}
	}

	c.renderer.ReplaceAll(records)
	return Outcome{Status: StatusLoaded, InView: len(inView), Records: records}
}
