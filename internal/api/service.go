package api

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"relief-backend/internal/messaging"
	"relief-backend/internal/render"
	"relief-backend/internal/storage"
	"relief-backend/pkg/api"
)

type RenderService struct {
	jobs      render.JobStore
	artifacts storage.ObjectStore
	publisher messaging.Publisher

	// requireExtent is false when a default extent is configured; bare
	// requests are then framed by the default instead of being rejected.
	requireExtent bool
}

func NewRenderService(jobs render.JobStore, artifacts storage.ObjectStore, publisher messaging.Publisher, requireExtent bool) *RenderService {
	return &RenderService{
		jobs:          jobs,
		artifacts:     artifacts,
		publisher:     publisher,
		requireExtent: requireExtent,
	}
}

func (s *RenderService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/renders", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListRenders))
		r.Put("/{id}", NoContentHandler(s.CreateRender))
		r.Get("/{id}", RestHandler(s.GetRender))
		r.Get("/{id}/heightmap.tif", RasterHandler(s.GetHeightmap))
		r.Get("/{id}/shaded-relief.tif", RasterHandler(s.GetShadedRelief))
	})
}

// CreateRender admits a render job and returns before any work happens; the
// caller polls GetRender for the outcome. A resubmission while the same id is
// still processing coalesces into the in-flight run and is reported as
// accepted all the same.
func (s *RenderService) CreateRender(r *http.Request) error {
	id := chi.URLParam(r, "id")
	if err := validateJobId(id); err != nil {
		return err
	}

	req, err := ParseRequest[api.RenderRequest](r)
	if err != nil {
		return err
	}
	if err := ValidateRenderRequest(req, s.requireExtent); err != nil {
		return err
	}

	runId, ok := s.jobs.Create(id, req)
	if !ok {
		slog.Info("render already in flight, coalescing submission", "job_id", id)
		return nil
	}

	payload := messaging.RenderTaskPayload{Id: id, RunId: runId}
	if err := s.publisher.PublishRenderTask(r.Context(), payload); err != nil {
		slog.Error("error publishing render task", "job_id", id, "error", err)
		s.jobs.Fail(id, runId, "failed to queue render task")
		return CodedErrorf(http.StatusInternalServerError, "failed to queue render task")
	}

	slog.Info("submitted render job", "job_id", id, "run_id", runId)
	return nil
}

func (s *RenderService) GetRender(r *http.Request) (any, error) {
	id := chi.URLParam(r, "id")

	job, ok := s.jobs.Get(id)
	if !ok {
		return nil, CodedErrorf(http.StatusNotFound, "no render job with id '%s'", id)
	}

	return jobMetadata(job), nil
}

func (s *RenderService) ListRenders(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListJobsRequest](r)
	if err != nil {
		return nil, err
	}

	status := render.Status(params.Status)
	switch status {
	case "", render.StatusProcessing, render.StatusFulfilled, render.StatusFailed:
	default:
		return nil, CodedErrorf(http.StatusBadRequest, "invalid status filter '%s'", params.Status)
	}

	jobs := s.jobs.List(status)
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Id < jobs[j].Id })

	metadata := make([]api.JobMetadata, len(jobs))
	for i, job := range jobs {
		metadata[i] = jobMetadata(job)
	}
	return metadata, nil
}

func (s *RenderService) GetHeightmap(r *http.Request) ([]byte, error) {
	return s.getArtifact(r, func(job render.Job) string { return job.HeightmapKey })
}

func (s *RenderService) GetShadedRelief(r *http.Request) ([]byte, error) {
	return s.getArtifact(r, func(job render.Job) string { return job.ShadedReliefKey })
}

// getArtifact serves a fulfilled job's raster. Artifacts of processing or
// failed jobs are never served as if complete.
func (s *RenderService) getArtifact(r *http.Request, key func(render.Job) string) ([]byte, error) {
	id := chi.URLParam(r, "id")

	job, ok := s.jobs.Get(id)
	if !ok {
		return nil, CodedErrorf(http.StatusNotFound, "no render job with id '%s'", id)
	}
	if job.Status != render.StatusFulfilled {
		return nil, CodedErrorf(http.StatusNotFound, "render job '%s' has no artifacts: status is %s", id, job.Status)
	}

	data, err := s.artifacts.GetObject(r.Context(), key(job))
	if err != nil {
		slog.Error("error reading artifact", "job_id", id, "key", key(job), "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error reading artifact")
	}
	return data, nil
}

func jobMetadata(job render.Job) api.JobMetadata {
	return api.JobMetadata{
		Id:     job.Id,
		Status: string(job.Status),
		Error:  job.Error,
	}
}
