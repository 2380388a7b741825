package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Loader reads the raw catalog entries from a source.
type Loader interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Load returns every entry in source order.
	Load(ctx context.Context) ([]ParcelSummary, error)
}

// DecodeDocument parses a catalog document.
func DecodeDocument(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decoding catalog document: %w", err)
	}
	return doc, nil
}

// ReadDocument reads a catalog document from disk.
func ReadDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return DecodeDocument(f)
}

// WriteDocument writes doc as indented JSON, replacing path atomically.
func WriteDocument(path string, doc Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog document: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// HTTPLoader fetches the catalog document over HTTP. Every request carries a
// timestamp query parameter so intermediaries never serve a stale copy.
type HTTPLoader struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPLoader creates a loader for the document at rawURL.
func NewHTTPLoader(rawURL string) *HTTPLoader {
	return &HTTPLoader{
		url: rawURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

func (l *HTTPLoader) Name() string { return l.url }

func (l *HTTPLoader) Load(ctx context.Context) ([]ParcelSummary, error) {
	u, err := url.Parse(l.url)
	if err != nil {
		return nil, &LoadError{Source: l.url, Err: fmt.Errorf("parsing url: %w", err)}
	}
	q := u.Query()
	q.Set("v", strconv.FormatInt(l.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &LoadError{Source: l.url, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, &LoadError{Source: l.url, Err: fmt.Errorf("catalog request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Source: l.url, Err: fmt.Errorf("catalog returned HTTP %d", resp.StatusCode)}
	}

	doc, err := DecodeDocument(resp.Body)
	if err != nil {
		return nil, &LoadError{Source: l.url, Err: err}
	}
	return doc.Parcelles, nil
}

// FileLoader reads the catalog document from the local file system.
type FileLoader struct {
	Path string
}

func (l FileLoader) Name() string { return l.Path }

func (l FileLoader) Load(ctx context.Context) ([]ParcelSummary, error) {
	doc, err := ReadDocument(l.Path)
	if err != nil {
		return nil, &LoadError{Source: l.Path, Err: err}
	}
	return doc.Parcelles, nil
}
