package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// CatalogSource identifies where the parcel catalog document is read from.
type CatalogSource string

const (
	CatalogHTTP     CatalogSource = "http"
	CatalogFile     CatalogSource = "file"
	CatalogPostgres CatalogSource = "postgres"
)

// GeometrySource identifies where per-parcel GeoJSON documents are read from.
type GeometrySource string

const (
	GeometryHTTP  GeometrySource = "http"
	GeometryDir   GeometrySource = "dir"
	GeometryS3    GeometrySource = "s3"
	GeometryMinio GeometrySource = "minio"
)

// Common errors
var (
	ErrMissingCatalogURL    = errors.New("CATALOG_URL environment variable is required for http catalog source")
	ErrMissingCatalogPath   = errors.New("CATALOG_PATH environment variable is required for file catalog source")
	ErrMissingDatabaseURL   = errors.New("DATABASE_URL environment variable is required for postgres catalog source")
	ErrMissingGeometryURL   = errors.New("GEOMETRY_BASE_URL environment variable is required for http geometry source")
	ErrMissingGeometryDir   = errors.New("GEOMETRY_DIR environment variable is required for dir geometry source")
	ErrMissingBucket        = errors.New("GEOMETRY_BUCKET environment variable is required for s3 and minio geometry sources")
	ErrMissingMinioEndpoint = errors.New("MINIO_ENDPOINT environment variable is required for minio geometry source")
	ErrUnknownSource        = errors.New("unknown source type")
	ErrInvalidLimits        = errors.New("DETAIL_ZOOM and MAX_PENDING_PARCELS must be positive")
)

// Config holds the service configuration.
type Config struct {
	Port string `yaml:"port"`

	// Catalog document
	CatalogSource CatalogSource `yaml:"catalog_source"`
	CatalogURL    string        `yaml:"catalog_url"`
	CatalogPath   string        `yaml:"catalog_path"`
	DatabaseURL   string        `yaml:"database_url"`

	// Geometry documents
	GeometrySource   GeometrySource `yaml:"geometry_source"`
	GeometryBaseURL  string         `yaml:"geometry_base_url"`
	GeometryDir      string         `yaml:"geometry_dir"`
	GeometryBucket   string         `yaml:"geometry_bucket"`
	GeometryPrefix   string         `yaml:"geometry_prefix"`
	GeometryTimeout  time.Duration  `yaml:"geometry_timeout"`
	GeometryFetchRPS float64        `yaml:"geometry_fetch_rps"`
	FetchConcurrency int            `yaml:"fetch_concurrency"`

	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`

	// Optional shared cache for raw geometry documents
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`

	// Viewport policy
	DetailZoom        float64 `yaml:"detail_zoom"`
	MaxPendingParcels int     `yaml:"max_pending_parcels"`
	SearchMaxResults  int     `yaml:"search_max_results"`

	// Map client
	MapboxToken string `yaml:"mapbox_token"`

	// HTTP surface
	AdminTokenHash     string        `yaml:"admin_token_hash"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// Defaults used when the environment leaves a value unset.
const (
	DefaultPort               = "5050"
	DefaultDetailZoom         = 12
	DefaultMaxPendingParcels  = 800
	DefaultSearchMaxResults   = 20
	DefaultGeometryTimeout    = 10 * time.Second
	DefaultRedisTTL           = 24 * time.Hour
	DefaultRateLimitPerMinute = 300
	DefaultSessionIdleTimeout = 30 * time.Minute
)

// LoadFromEnv loads configuration from environment variables.
//
// Environment variables:
//   - PORT: listen port (default: 5050)
//   - CATALOG_SOURCE: "http", "file" or "postgres" (default: "file")
//   - CATALOG_URL, CATALOG_PATH, DATABASE_URL: location of the catalog
//   - GEOMETRY_SOURCE: "http", "dir", "s3" or "minio" (default: "dir")
//   - GEOMETRY_BASE_URL, GEOMETRY_DIR, GEOMETRY_BUCKET, GEOMETRY_PREFIX
//   - GEOMETRY_TIMEOUT (Go duration), GEOMETRY_FETCH_RPS, FETCH_CONCURRENCY
//   - MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_USE_SSL
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_TTL
//   - DETAIL_ZOOM (default: 12), MAX_PENDING_PARCELS (default: 800), SEARCH_MAX_RESULTS (default: 20)
//   - MAPBOX_TOKEN, ADMIN_TOKEN_HASH (bcrypt), CORS_ORIGINS (comma separated)
//   - RATE_LIMIT_PER_MINUTE, SESSION_IDLE_TIMEOUT
func LoadFromEnv() Config {
	cfg := Config{
		Port:               envString("PORT", DefaultPort),
		CatalogSource:      CatalogSource(strings.ToLower(envString("CATALOG_SOURCE", string(CatalogFile)))),
		CatalogURL:         envString("CATALOG_URL", ""),
		CatalogPath:        envString("CATALOG_PATH", "data/parcelles-index.json"),
		DatabaseURL:        envString("DATABASE_URL", ""),
		GeometrySource:     GeometrySource(strings.ToLower(envString("GEOMETRY_SOURCE", string(GeometryDir)))),
		GeometryBaseURL:    envString("GEOMETRY_BASE_URL", ""),
		GeometryDir:        envString("GEOMETRY_DIR", "data"),
		GeometryBucket:     envString("GEOMETRY_BUCKET", ""),
		GeometryPrefix:     envString("GEOMETRY_PREFIX", ""),
		GeometryTimeout:    envDuration("GEOMETRY_TIMEOUT", DefaultGeometryTimeout),
		GeometryFetchRPS:   envFloat("GEOMETRY_FETCH_RPS", 0),
		FetchConcurrency:   envInt("FETCH_CONCURRENCY", 0),
		MinioEndpoint:      envString("MINIO_ENDPOINT", ""),
		MinioAccessKey:     envString("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     envString("MINIO_SECRET_KEY", ""),
		MinioUseSSL:        envBool("MINIO_USE_SSL", true),
		RedisAddr:          envString("REDIS_ADDR", ""),
		RedisPassword:      envString("REDIS_PASSWORD", ""),
		RedisDB:            envInt("REDIS_DB", 0),
		RedisTTL:           envDuration("REDIS_TTL", DefaultRedisTTL),
		DetailZoom:         envFloat("DETAIL_ZOOM", DefaultDetailZoom),
		MaxPendingParcels:  envInt("MAX_PENDING_PARCELS", DefaultMaxPendingParcels),
		SearchMaxResults:   envInt("SEARCH_MAX_RESULTS", DefaultSearchMaxResults),
		MapboxToken:        envString("MAPBOX_TOKEN", ""),
		AdminTokenHash:     envString("ADMIN_TOKEN_HASH", ""),
		CORSOrigins:        envList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:5174"}),
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", DefaultRateLimitPerMinute),
		SessionIdleTimeout: envDuration("SESSION_IDLE_TIMEOUT", DefaultSessionIdleTimeout),
	}
	return cfg
}

// ApplyFile overlays the keys present in a YAML file onto c.
// Keys missing from the file keep their current value.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable for the selected sources.
func (c Config) Validate() error {
	switch c.CatalogSource {
	case CatalogHTTP:
		if c.CatalogURL == "" {
			return ErrMissingCatalogURL
		}
	case CatalogFile:
		if c.CatalogPath == "" {
			return ErrMissingCatalogPath
		}
	case CatalogPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("%w: catalog %q", ErrUnknownSource, c.CatalogSource)
	}

	switch c.GeometrySource {
	case GeometryHTTP:
		if c.GeometryBaseURL == "" {
			return ErrMissingGeometryURL
		}
	case GeometryDir:
		if c.GeometryDir == "" {
			return ErrMissingGeometryDir
		}
	case GeometryS3:
		if c.GeometryBucket == "" {
			return ErrMissingBucket
		}
	case GeometryMinio:
		if c.GeometryBucket == "" {
			return ErrMissingBucket
		}
		if c.MinioEndpoint == "" {
			return ErrMissingMinioEndpoint
		}
	default:
		return fmt.Errorf("%w: geometry %q", ErrUnknownSource, c.GeometrySource)
	}

	if c.DetailZoom <= 0 || c.MaxPendingParcels <= 0 {
		return ErrInvalidLimits
	}
	return nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
