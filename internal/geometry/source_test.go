package geometry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/geometry"
	"github.com/redis/go-redis/v9"
)

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/21/a.geojson":
			w.Write([]byte(polygonDoc))
		case "/data/21/broken.geojson":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := geometry.NewHTTPSource(srv.URL+"/data", 5*time.Second, 0)

	b, err := src.Fetch(context.Background(), "21/a.geojson")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(b) != polygonDoc {
		t.Errorf("body = %q", b)
	}

	if _, err := src.Fetch(context.Background(), "21/missing.geojson"); !errors.Is(err, geometry.ErrNotFound) {
		t.Errorf("missing document: err = %v, want ErrNotFound", err)
	}
	if _, err := src.Fetch(context.Background(), "21/broken.geojson"); err == nil || errors.Is(err, geometry.ErrNotFound) {
		t.Errorf("server error: err = %v", err)
	}
}

func TestHTTPSource_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(polygonDoc))
	}))
	defer srv.Close()

	src := geometry.NewHTTPSource(srv.URL, 5*time.Second, 0.001)
	if _, err := src.Fetch(context.Background(), "a.geojson"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := src.Fetch(ctx, "a.geojson"); err == nil {
		t.Error("second fetch should wait past the deadline and fail")
	}
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "21"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "21", "a.geojson"), []byte(polygonDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	src := geometry.DirSource{Root: root}

	if _, err := src.Fetch(context.Background(), "21/a.geojson"); err != nil {
		t.Errorf("Fetch: %v", err)
	}
	if _, err := src.Fetch(context.Background(), "21/missing.geojson"); !errors.Is(err, geometry.ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}
	if _, err := src.Fetch(context.Background(), "../secret.geojson"); err == nil {
		t.Error("path outside the root should be rejected")
	}
}

type fakeRedis struct {
	data   map[string]string
	getErr error
	sets   int
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCache_ReadThrough(t *testing.T) {
	next := newCountingSource()
	rdb := &fakeRedis{data: make(map[string]string)}
	c := geometry.NewRedisCache(next, rdb, time.Hour)

	for i := 0; i < 3; i++ {
		b, err := c.Fetch(context.Background(), "a.geojson")
		if err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
		if string(b) != polygonDoc {
			t.Fatalf("Fetch %d returned %q", i, b)
		}
	}
	if n := next.count("a.geojson"); n != 1 {
		t.Errorf("underlying source hit %d times, want 1", n)
	}
	if rdb.sets != 1 {
		t.Errorf("redis set %d times, want 1", rdb.sets)
	}
}

func TestRedisCache_OutageFallsThrough(t *testing.T) {
	next := newCountingSource()
	rdb := &fakeRedis{data: make(map[string]string), getErr: errors.New("dial tcp: connection refused")}
	c := geometry.NewRedisCache(next, rdb, time.Hour)

	if _, err := c.Fetch(context.Background(), "a.geojson"); err != nil {
		t.Fatalf("redis outage failed the fetch: %v", err)
	}
	if n := next.count("a.geojson"); n != 1 {
		t.Errorf("underlying source hit %d times, want 1", n)
	}
}

func TestRedisCache_SourceErrorNotCached(t *testing.T) {
	next := newCountingSource()
	next.fail["a.geojson"] = geometry.ErrNotFound
	rdb := &fakeRedis{data: make(map[string]string)}
	c := geometry.NewRedisCache(next, rdb, time.Hour)

	if _, err := c.Fetch(context.Background(), "a.geojson"); !errors.Is(err, geometry.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if rdb.sets != 0 {
		t.Error("failed fetch was written to redis")
	}
}
