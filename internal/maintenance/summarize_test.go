package maintenance_test

import (
	"fmt"
	"testing"

	"github.com/EmpoweredVote/appellations-backend/internal/maintenance"
	"github.com/paulmach/orb"
)

func TestSummarize_Polygon(t *testing.T) {
	// The closing vertex is counted, so the mean leans toward (0,0).
	poly := orb.Polygon{
		{{0, 0}, {4, 0}, {4, 2}, {0, 2}, {0, 0}},
		{{1, 1}, {2, 1}, {2, 1.5}, {1, 1}}, // hole, ignored
	}
	bbox, center, ok := maintenance.Summarize(poly)
	if !ok {
		t.Fatal("Summarize returned !ok")
	}
	if got := fmt.Sprint(bbox); got != "[0 0 4 2]" {
		t.Errorf("bbox = %s", got)
	}
	if got := fmt.Sprint(center); got != "[1.6 0.8]" {
		t.Errorf("center = %s, want vertex mean [1.6 0.8]", got)
	}
}

func TestSummarize_MultiPolygon(t *testing.T) {
	mp := orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {0, 0}}},
		{{{10, 10}, {11, 10}, {10, 10}}},
	}
	bbox, center, ok := maintenance.Summarize(mp)
	if !ok {
		t.Fatal("Summarize returned !ok")
	}
	if got := fmt.Sprint(bbox); got != "[0 0 11 10]" {
		t.Errorf("bbox = %s", got)
	}
	if got := fmt.Sprint(center); got != "[5.333333333333333 5]" {
		t.Errorf("center = %s", got)
	}
}

func TestSummarize_Unsupported(t *testing.T) {
	for _, g := range []orb.Geometry{orb.Point{1, 2}, orb.Polygon{}, nil} {
		if _, _, ok := maintenance.Summarize(g); ok {
			t.Errorf("Summarize(%T) returned ok", g)
		}
	}
}

func TestParcelID_Deterministic(t *testing.T) {
	a := maintenance.ParcelID("delimitation_aoc/21/21464/01012.geojson")
	b := maintenance.ParcelID("delimitation_aoc/21/21464/01012.geojson")
	c := maintenance.ParcelID("delimitation_aoc/21/21464/01013.geojson")
	if a != b {
		t.Error("same path produced different ids")
	}
	if a == c {
		t.Error("different paths produced the same id")
	}
	if a.Version() != 5 {
		t.Errorf("version = %d, want 5", a.Version())
	}
}
