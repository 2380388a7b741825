package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CatalogParcels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "appellations_catalog_parcels",
		Help: "Number of parcel summaries in the current catalog index",
	})
	CatalogLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appellations_catalog_loads_total",
		Help: "Catalog loads by result",
	}, []string{"result"})
	GeometryFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appellations_geometry_fetch_total",
		Help: "Geometry document fetches by result",
	}, []string{"result"})
	GeometryFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "appellations_geometry_fetch_duration_ms",
		Help:    "Geometry fetch duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
	GeometrySharedCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appellations_geometry_shared_cache_total",
		Help: "Shared geometry cache lookups by result",
	}, []string{"result"})
	ViewportOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appellations_viewport_outcomes_total",
		Help: "Viewport settle events by outcome",
	}, []string{"status"})
	SearchRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appellations_search_requests_total",
		Help: "Total number of search requests",
	})
	SearchEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appellations_search_empty_total",
		Help: "Total number of searches that returned no result",
	})
)

func init() {
	prometheus.MustRegister(CatalogParcels)
	prometheus.MustRegister(CatalogLoadsTotal)
	prometheus.MustRegister(GeometryFetchTotal)
	prometheus.MustRegister(GeometryFetchDurationMs)
	prometheus.MustRegister(GeometrySharedCacheTotal)
	prometheus.MustRegister(ViewportOutcomesTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchEmptyTotal)
}

// Handler exposes the registered metrics for Prometheus scraping.
func Handler() http.Handler { return promhttp.Handler() }
