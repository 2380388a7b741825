package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ParcelSummary is one lightweight catalog entry. GeojsonPath is the unique key
// and also the location of the parcel's full geometry document.
type ParcelSummary struct {
	GeojsonPath string    `json:"geojsonPath"`
	Nom         string    `json:"nom"`
	NomComplet  string    `json:"nomComplet"`
	Commune     string    `json:"commune"`
	CommuneNom  string    `json:"communeNom"`
	Departement string    `json:"departement"`
	Center      []float64 `json:"center"` // [lng, lat]
	BBox        []float64 `json:"bbox,omitempty"`
}

// Lng returns the longitude of the representative point.
func (p ParcelSummary) Lng() float64 { return p.Center[0] }

// Lat returns the latitude of the representative point.
func (p ParcelSummary) Lat() float64 { return p.Center[1] }

// Area returns the bounding-box area in square degrees, or 0 when no bbox is known.
func (p ParcelSummary) Area() float64 {
	if len(p.BBox) != 4 {
		return 0
	}
	return (p.BBox[2] - p.BBox[0]) * (p.BBox[3] - p.BBox[1])
}

// Document is the on-disk / over-the-wire shape of the catalog.
type Document struct {
	TotalParcelles int             `json:"totalParcelles"`
	Parcelles      []ParcelSummary `json:"parcelles"`
}

// Group is a set of parcels sharing one appellation name.
type Group struct {
	Nom       string          `json:"nom"`
	Count     int             `json:"count"`
	Parcelles []ParcelSummary `json:"parcelles"`
}

// Entry is the Postgres row backing a ParcelSummary.
type Entry struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	GeojsonPath string          `gorm:"column:geojson_path;uniqueIndex;not null" json:"geojson_path"`
	Nom         string          `gorm:"index;not null" json:"nom"`
	NomComplet  string          `gorm:"not null" json:"nom_complet"`
	Commune     string          `gorm:"index" json:"commune"`
	CommuneNom  string          `json:"commune_nom"`
	Departement string          `gorm:"index" json:"departement"`
	Center      pq.Float64Array `gorm:"type:float8[];not null" json:"center"`
	BBox        pq.Float64Array `gorm:"column:bbox;type:float8[]" json:"bbox"`
	Position    int             `gorm:"not null;default:0" json:"position"` // load order
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Entry) TableName() string {
	return "appellations.parcel_summaries"
}

// EntryFromSummary builds the row for a summary. The caller assigns ID and Position.
func EntryFromSummary(s ParcelSummary) Entry {
	return Entry{
		GeojsonPath: s.GeojsonPath,
		Nom:         s.Nom,
		NomComplet:  s.NomComplet,
		Commune:     s.Commune,
		CommuneNom:  s.CommuneNom,
		Departement: s.Departement,
		Center:      pq.Float64Array(s.Center),
		BBox:        pq.Float64Array(s.BBox),
	}
}
