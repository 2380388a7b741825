package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/EmpoweredVote/appellations-backend/internal/config"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("CATALOG_SOURCE", "")
	t.Setenv("GEOMETRY_SOURCE", "")
	t.Setenv("DETAIL_ZOOM", "")
	t.Setenv("MAX_PENDING_PARCELS", "")

	cfg := config.LoadFromEnv()

	if cfg.CatalogSource != config.CatalogFile {
		t.Errorf("expected file catalog source, got %q", cfg.CatalogSource)
	}
	if cfg.GeometrySource != config.GeometryDir {
		t.Errorf("expected dir geometry source, got %q", cfg.GeometrySource)
	}
	if cfg.DetailZoom != 12 {
		t.Errorf("expected detail zoom 12, got %v", cfg.DetailZoom)
	}
	if cfg.MaxPendingParcels != 800 {
		t.Errorf("expected max pending 800, got %d", cfg.MaxPendingParcels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("CATALOG_SOURCE", "HTTP")
	t.Setenv("CATALOG_URL", "https://example.test/data/parcelles-index.json")
	t.Setenv("MAX_PENDING_PARCELS", "50")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test")

	cfg := config.LoadFromEnv()

	if cfg.CatalogSource != config.CatalogHTTP {
		t.Errorf("expected http catalog source, got %q", cfg.CatalogSource)
	}
	if cfg.MaxPendingParcels != 50 {
		t.Errorf("expected 50, got %d", cfg.MaxPendingParcels)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.test" {
		t.Errorf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestValidate_MissingValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want error
	}{
		{
			name: "http catalog without url",
			cfg:  config.Config{CatalogSource: config.CatalogHTTP, GeometrySource: config.GeometryDir, GeometryDir: "data", DetailZoom: 12, MaxPendingParcels: 800},
			want: config.ErrMissingCatalogURL,
		},
		{
			name: "postgres catalog without dsn",
			cfg:  config.Config{CatalogSource: config.CatalogPostgres, GeometrySource: config.GeometryDir, GeometryDir: "data", DetailZoom: 12, MaxPendingParcels: 800},
			want: config.ErrMissingDatabaseURL,
		},
		{
			name: "minio without endpoint",
			cfg:  config.Config{CatalogSource: config.CatalogFile, CatalogPath: "x.json", GeometrySource: config.GeometryMinio, GeometryBucket: "b", DetailZoom: 12, MaxPendingParcels: 800},
			want: config.ErrMissingMinioEndpoint,
		},
		{
			name: "unknown geometry source",
			cfg:  config.Config{CatalogSource: config.CatalogFile, CatalogPath: "x.json", GeometrySource: "ftp", DetailZoom: 12, MaxPendingParcels: 800},
			want: config.ErrUnknownSource,
		},
		{
			name: "zero cap",
			cfg:  config.Config{CatalogSource: config.CatalogFile, CatalogPath: "x.json", GeometrySource: config.GeometryDir, GeometryDir: "data", DetailZoom: 12},
			want: config.ErrInvalidLimits,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyFile_OverlaysPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "catalog_source: http\ncatalog_url: https://example.test/index.json\nmax_pending_parcels: 400\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{Port: "5050", CatalogSource: config.CatalogFile, MaxPendingParcels: 800}
	if err := cfg.ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile failed: %v", err)
	}

	if cfg.CatalogSource != config.CatalogHTTP {
		t.Errorf("expected http, got %q", cfg.CatalogSource)
	}
	if cfg.MaxPendingParcels != 400 {
		t.Errorf("expected 400, got %d", cfg.MaxPendingParcels)
	}
	if cfg.Port != "5050" {
		t.Errorf("port should be untouched, got %q", cfg.Port)
	}
}
