package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleDocument = `{
  "totalParcelles": 2,
  "parcelles": [
    {"nom": "Pommard", "nomComplet": "Pommard premier cru", "commune": "21492", "communeNom": "Pommard",
     "departement": "21", "geojsonPath": "delimitation_aoc/21/21492/001.geojson",
     "center": [4.79, 47.01], "bbox": [4.78, 47.0, 4.8, 47.02]},
    {"nom": "Volnay", "nomComplet": "Volnay", "commune": "21714", "communeNom": "Volnay",
     "departement": "21", "geojsonPath": "delimitation_aoc/21/21714/002.geojson",
     "center": [4.77, 46.99]}
  ]
}`

func TestHTTPLoader_CacheBustsAndDecodes(t *testing.T) {
	var gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.URL.Query().Get("v")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleDocument))
	}))
	defer srv.Close()

	l := NewHTTPLoader(srv.URL + "/data/parcelles-index.json")
	l.now = func() time.Time { return time.UnixMilli(1700000000123) }

	entries, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if gotVersion != "1700000000123" {
		t.Errorf("expected cache-busting v=1700000000123, got %q", gotVersion)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Nom != "Pommard" || len(entries[0].BBox) != 4 {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].BBox != nil {
		t.Errorf("expected nil bbox for second entry, got %v", entries[1].BBox)
	}
}

func TestHTTPLoader_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"parcelles": [`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPLoader(srv.URL).Load(context.Background())
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
		})
	}
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcelles-index.json")
	if err := os.WriteFile(path, []byte(sampleDocument), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := FileLoader{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}

	_, err = FileLoader{Path: filepath.Join(t.TempDir(), "missing.json")}.Load(context.Background())
	var le *LoadError
	if !errors.As(err, &le) {
		t.Errorf("expected *LoadError for missing file, got %v", err)
	}
}

func TestWriteDocument_RoundTripsThroughReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	doc := Document{TotalParcelles: 1, Parcelles: []ParcelSummary{{
		GeojsonPath: "a.geojson", Nom: "Chablis", NomComplet: "Chablis grand cru", Center: []float64{3.8, 47.8},
	}}}
	if err := WriteDocument(path, doc); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	got, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if got.TotalParcelles != 1 || got.Parcelles[0].NomComplet != "Chablis grand cru" {
		t.Errorf("unexpected document %+v", got)
	}
}

type stubLoader struct {
	entries []ParcelSummary
	err     error
}

func (s *stubLoader) Name() string { return "stub" }

func (s *stubLoader) Load(ctx context.Context) ([]ParcelSummary, error) {
	return s.entries, s.err
}

func TestStore_ReloadSwapsIndex(t *testing.T) {
	src := &stubLoader{entries: []ParcelSummary{
		{GeojsonPath: "a", Nom: "Pommard", Center: []float64{4.79, 47.01}},
	}}
	store := NewStore(src)
	if store.Current() != nil {
		t.Fatal("expected nil index before first load")
	}

	if _, err := store.Load(context.Background()); err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	first := store.Current()
	if first.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", first.Len())
	}

	src.entries = append(src.entries, ParcelSummary{GeojsonPath: "b", Nom: "Volnay", Center: []float64{4.77, 46.99}})
	if _, err := store.Load(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if store.Current().Len() != 2 {
		t.Errorf("expected 2 entries after reload, got %d", store.Current().Len())
	}
	if first.Len() != 1 {
		t.Errorf("previous index must not change, got %d entries", first.Len())
	}
	if got := store.Current().ByNormalizedName("volnay"); len(got) != 1 {
		t.Errorf("name accelerator not rebuilt, got %v", got)
	}

	src.err = errors.New("unreachable")
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.Current().Len() != 2 {
		t.Errorf("failed reload must keep the previous index")
	}
}
