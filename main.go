package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/api"
	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/EmpoweredVote/appellations-backend/internal/config"
	"github.com/EmpoweredVote/appellations-backend/internal/db"
	"github.com/EmpoweredVote/appellations-backend/internal/geometry"
	"github.com/EmpoweredVote/appellations-backend/internal/metrics"
	"github.com/EmpoweredVote/appellations-backend/internal/middleware"
	"github.com/EmpoweredVote/appellations-backend/internal/search"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzhttp"
	"github.com/redis/go-redis/v9"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg := config.LoadFromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.CatalogSource == config.CatalogPostgres {
		d, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		if err := db.Migrate(d, &catalog.Entry{}); err != nil {
			log.Fatal("Failed to migrate catalog tables: ", err)
		}
	}

	store := catalog.NewStore(catalogLoader(cfg))
	if _, err := store.Load(ctx); err != nil {
		log.Fatal("Failed to load catalog: ", err)
	}

	source, err := geometrySource(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to set up geometry source: ", err)
	}

	palette := geometry.NewPalette()
	newLoader := func() *geometry.Loader {
		return geometry.NewLoader(source,
			geometry.WithMaxPending(cfg.MaxPendingParcels),
			geometry.WithConcurrency(cfg.FetchConcurrency),
			geometry.WithPalette(palette),
		)
	}
	sessions := api.NewRegistry(store, newLoader, cfg.MapboxToken, cfg.DetailZoom, cfg.SessionIdleTimeout)
	go sessions.RunSweeper(ctx, time.Minute)

	handler := api.NewHandler(store, search.New(store), sessions, cfg.SearchMaxResults)

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
	r.Get("/", RootHandler)

	r.Mount("/parcels", handler.SetupRoutes(cfg.RateLimitPerMinute))
	r.Mount("/admin", api.AdminRoutes(store, cfg.AdminTokenHash))
	r.Handle("/metrics", metrics.Handler())

	fmt.Printf("Server listening on port :%s...\n", cfg.Port)

	if err := http.ListenAndServe("0.0.0.0:"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}

func catalogLoader(cfg config.Config) catalog.Loader {
	switch cfg.CatalogSource {
	case config.CatalogHTTP:
		return catalog.NewHTTPLoader(cfg.CatalogURL)
	case config.CatalogPostgres:
		return catalog.PostgresLoader{DSN: cfg.DatabaseURL}
	default:
		return catalog.FileLoader{Path: cfg.CatalogPath}
	}
}

func geometrySource(ctx context.Context, cfg config.Config) (geometry.Source, error) {
	var (
		src geometry.Source
		err error
	)
	switch cfg.GeometrySource {
	case config.GeometryHTTP:
		src = geometry.NewHTTPSource(cfg.GeometryBaseURL, cfg.GeometryTimeout, cfg.GeometryFetchRPS)
	case config.GeometryS3:
		src, err = geometry.NewS3Source(ctx, cfg.GeometryBucket, cfg.GeometryPrefix)
	case config.GeometryMinio:
		src, err = geometry.NewMinioSource(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioUseSSL, cfg.GeometryBucket, cfg.GeometryPrefix)
	default:
		src = geometry.DirSource{Root: cfg.GeometryDir}
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[geometry] WARNING: redis %s unreachable, continuing without shared cache: %v", cfg.RedisAddr, err)
		} else {
			src = geometry.NewRedisCache(src, rdb, cfg.RedisTTL)
		}
	}
	return src, nil
}
