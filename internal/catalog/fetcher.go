package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads catalog tiles that are not present on local disk. The
// footprint catalog can reference the full dataset while only a working set
// is cached locally.
type Fetcher struct {
	client   *resty.Client
	cacheDir string
}

func NewFetcher(baseURL, cacheDir string) *Fetcher {
	return &Fetcher{
		client:   resty.New().SetBaseURL(baseURL),
		cacheDir: cacheDir,
	}
}

// EnsureLocal returns a readable local path for the tile, downloading it
// into the cache when missing. Downloads go through a temp file so a partial
// fetch is never visible under the final name.
func (f *Fetcher) EnsureLocal(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	cached := filepath.Join(f.cacheDir, filepath.Base(path))
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	if err := os.MkdirAll(f.cacheDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("creating tile cache dir %s: %w", f.cacheDir, err)
	}

	tmp := cached + ".partial"
	slog.Info("fetching missing tile", "tile", filepath.Base(path))

	resp, err := f.client.R().
		SetContext(ctx).
		SetOutput(tmp).
		Get("/" + filepath.Base(path))
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("downloading tile %s: %w", filepath.Base(path), err)
	}
	if resp.IsError() {
		os.Remove(tmp)
		return "", fmt.Errorf("downloading tile %s: status %s", filepath.Base(path), resp.Status())
	}

	if err := os.Rename(tmp, cached); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("moving tile %s into cache: %w", filepath.Base(path), err)
	}

	return cached, nil
}
