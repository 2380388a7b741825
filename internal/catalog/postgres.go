package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresLoader reads the catalog from appellations.parcel_summaries,
// the table maintained by cmd/catalog-upsert.
type PostgresLoader struct {
	DSN string
}

func (l PostgresLoader) Name() string { return "postgres" }

func (l PostgresLoader) Load(ctx context.Context) ([]ParcelSummary, error) {
	conn, err := pgx.Connect(ctx, l.DSN)
	if err != nil {
		return nil, &LoadError{Source: l.Name(), Err: fmt.Errorf("connect: %w", err)}
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, `
		SELECT geojson_path, nom, nom_complet, COALESCE(commune, ''),
		       COALESCE(commune_nom, ''), COALESCE(departement, ''), center, bbox
		FROM appellations.parcel_summaries
		ORDER BY position, geojson_path
	`)
	if err != nil {
		return nil, &LoadError{Source: l.Name(), Err: fmt.Errorf("catalog query failed: %w", err)}
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ParcelSummary, error) {
		var s ParcelSummary
		if err := row.Scan(
			&s.GeojsonPath,
			&s.Nom,
			&s.NomComplet,
			&s.Commune,
			&s.CommuneNom,
			&s.Departement,
			&s.Center,
			&s.BBox,
		); err != nil {
			return ParcelSummary{}, err
		}
		return s, nil
	})
	if err != nil {
		return nil, &LoadError{Source: l.Name(), Err: fmt.Errorf("scan catalog row: %w", err)}
	}
	return out, nil
}
