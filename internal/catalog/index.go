package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/EmpoweredVote/appellations-backend/internal/logging"
)

// Common errors
var (
	ErrMissingField  = errors.New("catalog entry is missing a required field")
	ErrMalformedBBox = errors.New("bbox must be [minLng, minLat, maxLng, maxLat]")
)

// LoadError reports a catalog source that is unreachable or malformed.
// It is fatal to startup.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("catalog load from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Index is the read-only catalog: the summaries in load order plus a
// lower-cased name accelerator. The accelerator is never authoritative.
type Index struct {
	parcelles []ParcelSummary
	byName    map[string][]int
}

// NormalizeName lower-cases a catalog name.
func NormalizeName(s string) string {
	return strings.ToLower(s)
}

// Build validates entries and builds the name accelerator in the same pass.
func Build(entries []ParcelSummary) (*Index, error) {
	idx := &Index{
		parcelles: make([]ParcelSummary, 0, len(entries)),
		byName:    make(map[string][]int),
	}
	for i, e := range entries {
		if err := validate(e); err != nil {
			return nil, &LoadError{Source: "build", Err: fmt.Errorf("entry %d (%q): %w", i, e.GeojsonPath, err)}
		}
		key := NormalizeName(e.Nom)
		idx.byName[key] = append(idx.byName[key], len(idx.parcelles))
		idx.parcelles = append(idx.parcelles, e)
	}
	return idx, nil
}

func validate(e ParcelSummary) error {
	switch {
	case e.GeojsonPath == "":
		return fmt.Errorf("%w: geojsonPath", ErrMissingField)
	case e.Nom == "":
		return fmt.Errorf("%w: nom", ErrMissingField)
	case len(e.Center) != 2:
		return fmt.Errorf("%w: center", ErrMissingField)
	case len(e.BBox) != 0 && len(e.BBox) != 4:
		return ErrMalformedBBox
	}
	return nil
}

// Len returns the number of summaries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.parcelles)
}

// At returns the summary at position i.
func (idx *Index) At(i int) ParcelSummary { return idx.parcelles[i] }

// All returns a copy of every summary in load order.
func (idx *Index) All() []ParcelSummary {
	if idx == nil {
		return nil
	}
	out := make([]ParcelSummary, len(idx.parcelles))
	copy(out, idx.parcelles)
	return out
}

// ByNormalizedName returns the positions of summaries whose lower-cased nom equals name.
func (idx *Index) ByNormalizedName(name string) []int {
	if idx == nil {
		return nil
	}
	hits := idx.byName[NormalizeName(name)]
	out := make([]int, len(hits))
	copy(out, hits)
	return out
}

// ValidBBox reports whether bbox is exactly [minLng, minLat, maxLng, maxLat] with ordered bounds.
func ValidBBox(bbox []float64) bool {
	if len(bbox) != 4 {
		return false
	}
	for _, v := range bbox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return bbox[0] <= bbox[2] && bbox[1] <= bbox[3]
}

// InBBox returns the summaries whose center lies inside the closed rectangle.
// A nil index or a malformed bbox yields an empty result.
func (idx *Index) InBBox(bbox []float64) []ParcelSummary {
	if idx == nil {
		return nil
	}
	if !ValidBBox(bbox) {
		logging.Warnf("catalog", "ignoring malformed bbox %v", bbox)
		return nil
	}
	minLng, minLat, maxLng, maxLat := bbox[0], bbox[1], bbox[2], bbox[3]

	var out []ParcelSummary
	for _, p := range idx.parcelles {
		lng, lat := p.Lng(), p.Lat()
		if lng >= minLng && lng <= maxLng && lat >= minLat && lat <= maxLat {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the parcel identified by its geometry path within a commune.
func (idx *Index) Find(geojsonPath, commune string) (ParcelSummary, bool) {
	if idx == nil {
		return ParcelSummary{}, false
	}
	for _, p := range idx.parcelles {
		if p.GeojsonPath == geojsonPath && p.Commune == commune {
			return p, true
		}
	}
	return ParcelSummary{}, false
}

// GroupByName groups parcels by nom, keeping first-seen order.
func GroupByName(parcelles []ParcelSummary) []Group {
	pos := make(map[string]int)
	var groups []Group
	for _, p := range parcelles {
		i, ok := pos[p.Nom]
		if !ok {
			i = len(groups)
			pos[p.Nom] = i
			groups = append(groups, Group{Nom: p.Nom})
		}
		groups[i].Parcelles = append(groups[i].Parcelles, p)
		groups[i].Count++
	}
	return groups
}
