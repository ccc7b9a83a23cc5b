package config

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"relief-backend/internal/catalog"
)

type Config struct {
	Port int    `env:"PORT" envDefault:"3001"`
	Root string `env:"ROOT" envDefault:"./relief-data"`

	// Exactly one of CatalogDB (sqlite tile index) or CatalogFile (yaml tile
	// list) provides the footprint catalog.
	CatalogDB   string `env:"CATALOG_DB" envDefault:""`
	CatalogFile string `env:"CATALOG_FILE" envDefault:""`
	CatalogSrid string `env:"CATALOG_SRID" envDefault:"EPSG:4326"`

	// TileBaseURL enables on-demand tile download; tiles are cached under
	// TileCacheDir (default: <Root>/tiles).
	TileBaseURL  string `env:"TILE_BASE_URL" envDefault:""`
	TileCacheDir string `env:"TILE_CACHE_DIR" envDefault:""`

	// DefaultExtent ("left,bottom,right,top") frames requests that carry
	// neither an extent nor a cutline. Empty means such requests are rejected.
	DefaultExtent string `env:"DEFAULT_EXTENT" envDefault:""`

	ReliefScript string        `env:"RELIEF_SCRIPT" envDefault:"render.py"`
	StageTimeout time.Duration `env:"STAGE_TIMEOUT" envDefault:"10m"`
	Concurrency  int           `env:"CONCURRENCY" envDefault:"1"`

	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"local"`
	ArtifactBucket    string `env:"ARTIFACT_BUCKET" envDefault:"relief-artifacts"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL" envDefault:""`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" envDefault:""`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" envDefault:""`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
}

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return cfg, nil
}

// ParseDefaultExtent parses the DEFAULT_EXTENT value; nil when unset.
func (cfg Config) ParseDefaultExtent() (*catalog.Extent, error) {
	if cfg.DefaultExtent == "" {
		return nil, nil
	}

	parts := strings.Split(cfg.DefaultExtent, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("default extent %q must have 4 comma-separated values", cfg.DefaultExtent)
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("default extent %q has a non-numeric value: %w", cfg.DefaultExtent, err)
		}
		vals[i] = v
	}

	extent := catalog.Extent{Left: vals[0], Bottom: vals[1], Right: vals[2], Top: vals[3]}
	if !extent.Valid() {
		return nil, fmt.Errorf("default extent %q is not a valid extent", cfg.DefaultExtent)
	}
	return &extent, nil
}
