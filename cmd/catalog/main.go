package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"relief-backend/internal/catalog"
	"relief-backend/internal/extool"
)

// catalog ingests a directory of elevation tiles into the sqlite footprint
// index the server resolves extents against. Footprints come from the USGS
// cell naming convention where possible, falling back to probing each raster.

var rasterExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
	".img":  true,
	".vrt":  true,
}

func main() {
	var dbPath, tileDir string
	flag.StringVar(&dbPath, "db", "catalog.db", "path of the sqlite catalog to write")
	flag.StringVar(&tileDir, "tiles", "", "directory of elevation tiles to ingest")
	flag.Parse()

	if tileDir == "" {
		log.Fatalf("-tiles is required")
	}

	var tiles []string
	err := filepath.WalkDir(tileDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && rasterExtensions[strings.ToLower(filepath.Ext(path))] {
			tiles = append(tiles, path)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("error scanning tile directory: %v", err)
	}
	if len(tiles) == 0 {
		log.Fatalf("no raster tiles found under %s", tileDir)
	}

	db, err := catalog.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("error opening catalog database: %v", err)
	}

	runner := extool.ExecRunner{}
	ctx := context.Background()

	bar := progressbar.Default(int64(len(tiles)), "ingesting tiles")

	ingested, failed := 0, 0
	for _, tile := range tiles {
		fp, err := catalog.FootprintForFile(ctx, runner, tile)
		if err != nil {
			log.Printf("skipping %s: %v", tile, err)
			failed++
			_ = bar.Add(1)
			continue
		}

		if err := catalog.UpsertFootprint(db, fp); err != nil {
			log.Fatalf("error writing footprint for %s: %v", tile, err)
		}
		ingested++
		_ = bar.Add(1)
	}

	log.Printf("catalog %s updated: %d tiles ingested, %d skipped", dbPath, ingested, failed)
}
