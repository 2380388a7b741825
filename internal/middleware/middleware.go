package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/viewport"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const sessionKey contextKey = "mapSession"

// SessionFetcher looks up an open map session.
type SessionFetcher interface {
	FindSession(id string) (*viewport.Session, bool)
}

// SessionMiddleware resolves the {sessionID} URL parameter to a live map
// session and stores it in the request context. Sessions idle for longer
// than idle are treated as gone.
func SessionMiddleware(fetcher SessionFetcher, idle time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "sessionID")
			if id == "" {
				http.Error(w, "Missing session id", http.StatusBadRequest)
				return
			}

			session, ok := fetcher.FindSession(id)
			if !ok {
				http.Error(w, "Couldn't find session", http.StatusNotFound)
				return
			}

			now := time.Now()
			if idle > 0 && session.IdleSince().Add(idle).Before(now) {
				http.Error(w, "Session expired", http.StatusGone)
				return
			}
			session.Touch(now)

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by SessionMiddleware.
func SessionFromContext(ctx context.Context) (*viewport.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*viewport.Session)
	return s, ok
}

// CORS echoes the request origin back when it is on the allow-list.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin") // important for caches
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminToken guards admin routes with a bearer token checked against a
// bcrypt hash. An empty hash disables the routes entirely.
func AdminToken(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				http.Error(w, "Forbidden: admin access is disabled", http.StatusForbidden)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				http.Error(w, "Unauthorized: missing bearer token", http.StatusUnauthorized)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
				http.Error(w, "Forbidden: invalid admin token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
