package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"relief-backend/internal/api"
	"relief-backend/internal/catalog"
	"relief-backend/internal/config"
	"relief-backend/internal/extool"
	"relief-backend/internal/messaging"
	"relief-backend/internal/render"
	"relief-backend/internal/storage"
)

func createCatalog(cfg config.Config, runner extool.Runner) *catalog.Catalog {
	var srid string
	var footprints []catalog.Footprint

	switch {
	case cfg.CatalogDB != "":
		db, err := catalog.OpenDB(cfg.CatalogDB)
		if err != nil {
			log.Fatalf("Failed to open tile catalog database: %v", err)
		}
		footprints, err = catalog.LoadFootprints(db)
		if err != nil {
			log.Fatalf("Failed to load tile footprints: %v", err)
		}
		srid = cfg.CatalogSrid

	case cfg.CatalogFile != "":
		var err error
		srid, footprints, err = catalog.LoadYAML(cfg.CatalogFile)
		if err != nil {
			log.Fatalf("Failed to load tile catalog: %v", err)
		}
		if srid == "" {
			srid = cfg.CatalogSrid
		}

	default:
		log.Fatalf("Either CATALOG_DB or CATALOG_FILE must be set")
	}

	if len(footprints) == 0 {
		log.Fatalf("Tile catalog is empty")
	}

	return catalog.New(srid, footprints, catalog.NewReprojector(runner))
}

func createArtifactStore(cfg config.Config) storage.ObjectStore {
	switch cfg.StorageBackend {
	case "local":
		store, err := storage.NewLocalObjectStore(filepath.Join(cfg.Root, "artifacts"))
		if err != nil {
			log.Fatalf("Failed to create artifact store: %v", err)
		}
		return store

	case "s3":
		store, err := storage.NewS3ObjectStore(&storage.S3Config{
			EndpointURL:     cfg.S3EndpointURL,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.ArtifactBucket,
		})
		if err != nil {
			log.Fatalf("Failed to create artifact store: %v", err)
		}
		return store

	default:
		log.Fatalf("Invalid storage backend: %s. Must be either 'local' or 's3'", cfg.StorageBackend)
		return nil
	}
}

func createServer(service *api.RenderService, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		service.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "concurrency", cfg.Concurrency)

	defaultExtent, err := cfg.ParseDefaultExtent()
	if err != nil {
		log.Fatalf("error parsing default extent: %v", err)
	}

	runner := extool.ExecRunner{}
	cat := createCatalog(cfg, runner)
	slog.Info("tile catalog loaded", "tiles", cat.Len(), "srid", cat.Srid())

	var fetcher *catalog.Fetcher
	if cfg.TileBaseURL != "" {
		cacheDir := cfg.TileCacheDir
		if cacheDir == "" {
			cacheDir = filepath.Join(cfg.Root, "tiles")
		}
		if err := os.MkdirAll(cacheDir, os.ModePerm); err != nil {
			log.Fatalf("error creating tile cache directory: %v", err)
		}
		fetcher = catalog.NewFetcher(cfg.TileBaseURL, cacheDir)
	}

	artifacts := createArtifactStore(cfg)
	queue := messaging.NewInMemoryQueue()
	jobs := render.NewInMemoryJobStore()

	workRoot := filepath.Join(cfg.Root, "work")
	if err := os.MkdirAll(workRoot, os.ModePerm); err != nil {
		log.Fatalf("error creating work directory: %v", err)
	}

	processor := render.NewRenderProcessor(jobs, artifacts, cat, fetcher, queue, runner, render.ProcessorOptions{
		ReliefScript:  cfg.ReliefScript,
		WorkRoot:      workRoot,
		StageTimeout:  cfg.StageTimeout,
		DefaultExtent: defaultExtent,
	})

	slog.Info("starting workers")
	for i := 0; i < cfg.Concurrency; i++ {
		go processor.Start()
	}

	service := api.NewRenderService(jobs, artifacts, queue, defaultExtent == nil)
	server := createServer(service, cfg.Port)

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down workers")
		queue.Close()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
