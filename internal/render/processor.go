package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"relief-backend/internal/catalog"
	"relief-backend/internal/extool"
	"relief-backend/internal/messaging"
	"relief-backend/internal/storage"
	"relief-backend/pkg/api"
)

const (
	HeightmapArtifact    = "heightmap.tif"
	ShadedReliefArtifact = "shaded-relief.tif"
)

type ProcessorOptions struct {
	ReliefScript string
	WorkRoot     string
	StageTimeout time.Duration

	// DefaultExtent frames requests that carry neither an extent nor a
	// cutline. Nil means such requests fail.
	DefaultExtent *catalog.Extent
}

// RenderProcessor consumes render tasks and drives the pipeline:
// tile resolve -> mosaic -> heightmap -> shaded relief -> artifact upload.
// Every task ends with exactly one terminal transition of its run in the
// job store, or no transition at all if a newer run owns the record.
type RenderProcessor struct {
	jobs      JobStore
	artifacts storage.ObjectStore
	catalog   *catalog.Catalog
	fetcher   *catalog.Fetcher
	reciever  messaging.Reciever

	mosaic    *MosaicBuilder
	heightmap *HeightmapRenderer
	relief    *ShadedReliefRenderer

	opts ProcessorOptions
}

func NewRenderProcessor(jobs JobStore, artifacts storage.ObjectStore, cat *catalog.Catalog, fetcher *catalog.Fetcher, reciever messaging.Reciever, runner extool.Runner, opts ProcessorOptions) *RenderProcessor {
	if opts.WorkRoot == "" {
		opts.WorkRoot = os.TempDir()
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 10 * time.Minute
	}

	return &RenderProcessor{
		jobs:      jobs,
		artifacts: artifacts,
		catalog:   cat,
		fetcher:   fetcher,
		reciever:  reciever,
		mosaic:    NewMosaicBuilder(runner),
		heightmap: NewHeightmapRenderer(runner),
		relief:    NewShadedReliefRenderer(runner, opts.ReliefScript),
		opts:      opts,
	}
}

func (proc *RenderProcessor) Start() {
	slog.Info("starting render processor")

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *RenderProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	switch task.Type() {
	case messaging.RenderQueue:
		var payload messaging.RenderTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling render task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		proc.HandleRender(ctx, payload)
		if err := task.Ack(); err != nil {
			slog.Error("error acking message from queue", "error", err)
		}

	default:
		slog.Error("received task from unknown queue, discarding", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
	}
}

// HandleRender runs one pipeline for one job run. Failures are recorded in
// the job store, never propagated; a single job's failure must not take
// anything else down.
func (proc *RenderProcessor) HandleRender(ctx context.Context, payload messaging.RenderTaskPayload) {
	job, ok := proc.jobs.Get(payload.Id)
	if !ok || job.RunId != payload.RunId || job.Status != StatusProcessing {
		slog.Warn("skipping stale render task", "job_id", payload.Id, "run_id", payload.RunId)
		return
	}

	log := slog.With("job_id", job.Id, "run_id", job.RunId)
	req := job.Request

	fail := func(err error) {
		log.Error("render failed", "error", err)
		proc.jobs.Fail(job.Id, job.RunId, err.Error())
	}

	// The extent used for tile resolution: explicit extent, else the
	// cutline's bounds, else the configured default.
	var resolveExtent catalog.Extent
	var frameExtent *catalog.Extent
	srid := ""
	switch {
	case req.Extent != nil:
		resolveExtent = catalog.Extent{Left: req.Extent.Left, Bottom: req.Extent.Bottom, Right: req.Extent.Right, Top: req.Extent.Top}
		frameExtent = &resolveExtent
		srid = req.Srid
	case req.Cutline != nil:
		bounds, err := CutlineBounds(req.Cutline)
		if err != nil {
			fail(err)
			return
		}
		resolveExtent = bounds
		srid = req.Srid
	case proc.opts.DefaultExtent != nil:
		resolveExtent = *proc.opts.DefaultExtent
		frameExtent = proc.opts.DefaultExtent
	default:
		fail(errors.New("request has no extent or cutline and no default extent is configured"))
		return
	}

	tiles, err := proc.resolveTiles(ctx, resolveExtent, srid)
	if err != nil {
		// No external tool runs for an uncovered extent.
		fail(err)
		return
	}

	workDir := filepath.Join(proc.opts.WorkRoot, fmt.Sprintf("render-%s-%s", job.Id, job.RunId))
	if err := os.MkdirAll(workDir, os.ModePerm); err != nil {
		fail(fmt.Errorf("creating work dir: %w", err))
		return
	}
	defer os.RemoveAll(workDir)

	mosaicPath := filepath.Join(workDir, "elevation.vrt")
	if err := proc.runStage(ctx, func(stageCtx context.Context) error {
		return proc.mosaic.Build(stageCtx, tiles, mosaicPath)
	}); err != nil {
		fail(err)
		return
	}

	heightmapPath := filepath.Join(workDir, HeightmapArtifact)
	if err := proc.runStage(ctx, func(stageCtx context.Context) error {
		return proc.heightmap.Render(stageCtx, HeightmapParams{
			MosaicPath: mosaicPath,
			OutPath:    heightmapPath,
			WorkDir:    workDir,
			Extent:     frameExtent,
			Srid:       srid,
			Cutline:    req.Cutline,
			Size:       *req.Size,
			Margin:     margin(req.Margin),
		})
	}); err != nil {
		fail(err)
		return
	}

	var reliefPath string
	if err := proc.runStage(ctx, func(stageCtx context.Context) error {
		var err error
		reliefPath, err = proc.relief.Render(stageCtx, heightmapPath, workDir, req.Samples, req.Scale)
		return err
	}); err != nil {
		fail(err)
		return
	}

	heightmapKey := path.Join(job.Id, job.RunId.String(), HeightmapArtifact)
	reliefKey := path.Join(job.Id, job.RunId.String(), ShadedReliefArtifact)
	if err := proc.artifacts.PutFile(ctx, heightmapKey, heightmapPath); err != nil {
		fail(fmt.Errorf("storing heightmap artifact: %w", err))
		return
	}
	if err := proc.artifacts.PutFile(ctx, reliefKey, reliefPath); err != nil {
		fail(fmt.Errorf("storing shaded relief artifact: %w", err))
		return
	}

	if !proc.jobs.Complete(job.Id, job.RunId, heightmapKey, reliefKey) {
		// A newer run owns the record now; our artifacts are unreachable.
		log.Warn("render completed for a superseded run, discarding artifacts")
		if err := proc.artifacts.DeleteObjects(ctx, path.Join(job.Id, job.RunId.String())); err != nil {
			log.Error("error discarding superseded artifacts", "error", err)
		}
		return
	}

	if job.PriorRunId != uuid.Nil {
		// Superseded artifacts are removed only after the new record is
		// terminal, so readers always had a complete set to read.
		if err := proc.artifacts.DeleteObjects(ctx, path.Join(job.Id, job.PriorRunId.String())); err != nil {
			log.Error("error deleting superseded artifacts", "error", err)
		}
	}

	log.Info("render fulfilled")
}

func (proc *RenderProcessor) resolveTiles(ctx context.Context, extent catalog.Extent, srid string) ([]string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, proc.opts.StageTimeout)
	defer cancel()

	tiles, err := proc.catalog.ResolveTiles(stageCtx, extent, srid)
	if err != nil {
		return nil, err
	}

	if proc.fetcher == nil {
		return tiles, nil
	}

	local := make([]string, len(tiles))
	for i, tile := range tiles {
		p, err := proc.fetcher.EnsureLocal(stageCtx, tile)
		if err != nil {
			return nil, fmt.Errorf("localizing tile: %w", err)
		}
		local[i] = p
	}
	return local, nil
}

func (proc *RenderProcessor) runStage(ctx context.Context, stage func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, proc.opts.StageTimeout)
	defer cancel()

	return stage(stageCtx)
}

func margin(m *api.Margin) api.Margin {
	if m == nil {
		return api.Margin{}
	}
	return *m
}
