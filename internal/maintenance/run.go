package maintenance

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/db"
	"github.com/EmpoweredVote/appellations-backend/internal/logging"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cadastreFile is a sibling export that is not a parcel.
const cadastreFile = "cadastre-parcelles.json"

type Config struct {
	Dir          string // directory of per-parcel .geojson files
	IndexPath    string // catalog document to update
	RelativeBase string // prefix for geojsonPath, e.g. delimitation_aoc/21/21464
	Departement  string
	DatabaseURL  string // optional; also upsert into Postgres
	DryRun       bool
}

// Result counts what a run did to the catalog.
type Result struct {
	Added   int
	Updated int
	Skipped int
}

// Run scans cfg.Dir and upserts one catalog entry per geometry file, keyed by
// geojsonPath.
func Run(cfg Config) (Result, error) {
	var res Result
	if cfg.Dir == "" || cfg.IndexPath == "" {
		return res, errors.New("dir and index are required")
	}

	doc, err := catalog.ReadDocument(cfg.IndexPath)
	if errors.Is(err, os.ErrNotExist) {
		logging.Infof("maintenance", "%s does not exist, starting an empty catalog", cfg.IndexPath)
	} else if err != nil {
		return res, fmt.Errorf("read index: %w", err)
	}

	entries, skipped, err := scan(cfg)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped

	pos := make(map[string]int, len(doc.Parcelles))
	for i, p := range doc.Parcelles {
		pos[p.GeojsonPath] = i
	}
	for _, e := range entries {
		if i, ok := pos[e.GeojsonPath]; ok {
			doc.Parcelles[i] = e
			res.Updated++
			continue
		}
		pos[e.GeojsonPath] = len(doc.Parcelles)
		doc.Parcelles = append(doc.Parcelles, e)
		res.Added++
	}
	doc.TotalParcelles = len(doc.Parcelles)

	if cfg.DryRun {
		logging.Infof("maintenance", "dry run: would add %d, update %d (skipped %d)", res.Added, res.Updated, res.Skipped)
		return res, nil
	}

	if err := catalog.WriteDocument(cfg.IndexPath, doc); err != nil {
		return res, fmt.Errorf("write index: %w", err)
	}
	logging.Infof("maintenance", "%s: added %d, updated %d, total %d", cfg.IndexPath, res.Added, res.Updated, doc.TotalParcelles)

	if cfg.DatabaseURL != "" {
		d, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			return res, err
		}
		if err := db.Migrate(d, &catalog.Entry{}); err != nil {
			return res, err
		}
		if err := Upsert(d, doc.Parcelles); err != nil {
			return res, err
		}
	}
	return res, nil
}

// scan builds entries for every parcel file in cfg.Dir, in file name order.
func scan(cfg Config) ([]catalog.ParcelSummary, int, error) {
	files, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read dir: %w", err)
	}

	var entries []catalog.ParcelSummary
	skipped := 0
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".geojson") || name == cadastreFile {
			continue
		}
		e, err := entryFromFile(filepath.Join(cfg.Dir, name), cfg, name)
		if err != nil {
			logging.Warnf("maintenance", "skipping %s: %v", name, err)
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}

func entryFromFile(file string, cfg Config, name string) (catalog.ParcelSummary, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return catalog.ParcelSummary{}, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return catalog.ParcelSummary{}, err
	}
	if len(fc.Features) == 0 {
		return catalog.ParcelSummary{}, errors.New("no features")
	}

	f := fc.Features[0]
	bbox, center, ok := Summarize(f.Geometry)
	if !ok {
		return catalog.ParcelSummary{}, fmt.Errorf("unsupported geometry %T", f.Geometry)
	}

	app := f.Properties.MustString("app", "")
	if app == "" {
		return catalog.ParcelSummary{}, errors.New("missing app property")
	}
	complet := f.Properties.MustString("denom", "")
	if complet == "" {
		complet = app
	}
	return catalog.ParcelSummary{
		GeojsonPath: path.Join(cfg.RelativeBase, name),
		Nom:         app,
		NomComplet:  complet,
		Commune:     f.Properties.MustString("insee", ""),
		CommuneNom:  f.Properties.MustString("nomcom", ""),
		Departement: cfg.Departement,
		Center:      center,
		BBox:        bbox,
	}, nil
}

// Upsert writes the whole catalog to Postgres keyed by geojson_path; a row's
// position is its index in parcelles.
func Upsert(d *gorm.DB, parcelles []catalog.ParcelSummary) error {
	rows := make([]catalog.Entry, len(parcelles))
	for i, p := range parcelles {
		rows[i] = catalog.EntryFromSummary(p)
		rows[i].ID = ParcelID(p.GeojsonPath)
		rows[i].Position = i
	}
	if len(rows) == 0 {
		return nil
	}

	err := d.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "geojson_path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"nom", "nom_complet", "commune", "commune_nom", "departement",
			"center", "bbox", "position", "updated_at",
		}),
	}).CreateInBatches(rows, 500).Error
	if err != nil {
		return fmt.Errorf("upsert parcel summaries: %w", err)
	}
	logging.Infof("maintenance", "upserted %d rows into %s", len(rows), catalog.Entry{}.TableName())
	return nil
}
