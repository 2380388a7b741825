package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/geometry"
	"github.com/EmpoweredVote/appellations-backend/internal/middleware"
	"github.com/EmpoweredVote/appellations-backend/internal/viewport"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// mockFetcher implements middleware.SessionFetcher over a map.
type mockFetcher map[string]*viewport.Session

func (m mockFetcher) FindSession(id string) (*viewport.Session, bool) {
	s, ok := m[id]
	return s, ok
}

func newSession(id string) *viewport.Session {
	return viewport.NewSession(id, "", catalog.Static(nil), geometry.NewLoader(geometry.DirSource{Root: "."}), 12)
}

// serveSession mounts mw on /sessions/{sessionID} and requests path.
func serveSession(t *testing.T, mw func(http.Handler) http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.With(mw).Get("/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		s, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session not in context", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(s.ID))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSessionMiddleware_UnknownSession(t *testing.T) {
	mw := middleware.SessionMiddleware(mockFetcher{}, time.Hour)

	rec := serveSession(t, mw, "/sessions/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSessionMiddleware_ExpiredSession(t *testing.T) {
	s := newSession("old")
	s.Touch(time.Now().Add(-2 * time.Hour))
	mw := middleware.SessionMiddleware(mockFetcher{"old": s}, time.Hour)

	rec := serveSession(t, mw, "/sessions/old")
	if rec.Code != http.StatusGone {
		t.Errorf("expected 410, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Session expired") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestSessionMiddleware_ValidSession(t *testing.T) {
	s := newSession("abc")
	before := s.IdleSince()
	mw := middleware.SessionMiddleware(mockFetcher{"abc": s}, time.Hour)

	rec := serveSession(t, mw, "/sessions/abc")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "abc" {
		t.Errorf("wrong session in context: %q", rec.Body.String())
	}
	if s.IdleSince().Before(before) {
		t.Error("session was not touched")
	}
}

func TestCORS(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.CORS([]string{"http://localhost:5173"})(inner)

	req := httptest.NewRequest(http.MethodGet, "/parcels/points", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allowed origin not echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/parcels/points", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin echoed: %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/parcels/viewport", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", rec.Code)
	}
}

func TestAdminToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		hash   string
		header string
		want   int
	}{
		{"disabled", "", "Bearer s3cret", http.StatusForbidden},
		{"missing", string(hash), "", http.StatusUnauthorized},
		{"wrong scheme", string(hash), "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", string(hash), "Bearer nope", http.StatusForbidden},
		{"ok", string(hash), "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/catalog/reload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			middleware.AdminToken(tt.hash)(inner).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
