package maintenance

import (
	"math"

	"github.com/paulmach/orb"
)

// Summarize derives a catalog bbox and representative point from a parcel
// geometry. Only outer rings count: ring 0 of a polygon, or ring 0 of each
// polygon of a multipolygon.
//
// The center is the arithmetic mean of those vertices, closing vertex
// included. It is not an area centroid; existing catalog entries were built
// this way and bbox queries depend on it.
func Summarize(g orb.Geometry) (bbox, center []float64, ok bool) {
	var pts []orb.Point
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) > 0 {
			pts = append(pts, g[0]...)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			if len(poly) > 0 {
				pts = append(pts, poly[0]...)
			}
		}
	}
	if len(pts) == 0 {
		return nil, nil, false
	}

	minLng, minLat := math.Inf(1), math.Inf(1)
	maxLng, maxLat := math.Inf(-1), math.Inf(-1)
	var sumLng, sumLat float64
	for _, p := range pts {
		minLng = math.Min(minLng, p.Lon())
		minLat = math.Min(minLat, p.Lat())
		maxLng = math.Max(maxLng, p.Lon())
		maxLat = math.Max(maxLat, p.Lat())
		sumLng += p.Lon()
		sumLat += p.Lat()
	}
	n := float64(len(pts))
	return []float64{minLng, minLat, maxLng, maxLat}, []float64{sumLng / n, sumLat / n}, true
}
