package geometry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/paulmach/orb/geojson"
)

// Common errors
var (
	ErrNotFound       = errors.New("geometry document not found")
	ErrNoFeatures     = errors.New("geometry document has no features")
	ErrUnavailable    = errors.New("parcel geometry is unavailable for this session")
	ErrTooManyParcels = errors.New("too many parcels to load")
)

// FetchError reports a parcel whose geometry could not be fetched or decoded.
// It is recovered locally: the parcel is dropped from its batch.
type FetchError struct {
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("geometry %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Record is the full geometry of one parcel, enriched with its catalog
// summary and display color.
type Record struct {
	Summary catalog.ParcelSummary
	Feature *geojson.Feature
	Color   string
}

// ID returns the parcel identifier.
func (r *Record) ID() string { return r.Summary.GeojsonPath }

// Area is the bbox area used for render ordering.
func (r *Record) Area() float64 { return r.Summary.Area() }

// Decode parses a geometry document. Only the first feature is authoritative;
// its properties are overlaid with the summary fields and color.
func Decode(raw []byte, s catalog.ParcelSummary, color string) (*Record, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, &FetchError{Path: s.GeojsonPath, Err: fmt.Errorf("decoding geojson: %w", err)}
	}
	if len(fc.Features) == 0 || fc.Features[0] == nil {
		return nil, &FetchError{Path: s.GeojsonPath, Err: ErrNoFeatures}
	}

	f := fc.Features[0]
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	f.Properties["geojsonPath"] = s.GeojsonPath
	f.Properties["nom"] = s.Nom
	f.Properties["nomComplet"] = s.NomComplet
	f.Properties["commune"] = s.Commune
	f.Properties["communeNom"] = s.CommuneNom
	f.Properties["departement"] = s.Departement
	f.Properties["center"] = s.Center
	if len(s.BBox) == 4 {
		f.Properties["bbox"] = s.BBox
	}
	f.Properties["color"] = color

	return &Record{Summary: s, Feature: f, Color: color}, nil
}

// SortByArea orders records largest bbox first so small parcels are drawn on
// top and stay clickable. Records without a bbox count as area 0.
func SortByArea(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Area() > records[j].Area()
	})
}

// FeatureCollection wraps the records' features for the renderer.
func FeatureCollection(records []*Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		fc.Append(r.Feature)
	}
	return fc
}
