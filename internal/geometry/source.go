package geometry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// maxDocumentSize guards against runaway geometry documents.
const maxDocumentSize = 32 << 20

// Source fetches the raw GeoJSON document for a parcel identifier.
type Source interface {
	Fetch(ctx context.Context, geojsonPath string) ([]byte, error)
}

// HTTPSource reads geometry documents relative to a base URL.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPSource creates a source under baseURL. A positive rps throttles
// outbound requests; zero leaves them unthrottled.
func NewHTTPSource(baseURL string, timeout time.Duration, rps float64) *HTTPSource {
	s := &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return s
}

func (s *HTTPSource) Fetch(ctx context.Context, geojsonPath string) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for fetch slot: %w", err)
		}
	}

	u, err := url.JoinPath(s.baseURL, geojsonPath)
	if err != nil {
		return nil, fmt.Errorf("building geometry url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geometry request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("geometry source returned HTTP %d", resp.StatusCode)
	}
	return readLimited(resp.Body)
}

// DirSource reads geometry documents from a local directory tree.
type DirSource struct {
	Root string
}

func (s DirSource) Fetch(ctx context.Context, geojsonPath string) ([]byte, error) {
	rel := filepath.FromSlash(geojsonPath)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("geometry path %q escapes the data directory", geojsonPath)
	}
	b, err := os.ReadFile(filepath.Join(s.Root, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func readLimited(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxDocumentSize {
		return nil, fmt.Errorf("geometry document larger than %d bytes", maxDocumentSize)
	}
	return b, nil
}
