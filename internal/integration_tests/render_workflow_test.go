package integrationtests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relief-backend/pkg/api"
)

func TestRenderWorkflow(t *testing.T) {
	backend := setupBackend(t)

	req := api.RenderRequest{
		Extent: &api.Extent{Left: -105.8, Bottom: 37.2, Right: -105.2, Top: 38.4},
		Size:   &api.Size{Width: 256, Height: 256},
	}
	code := httpRequest(t, backend.router, http.MethodPut, "/renders/sawatch", req, nil)
	require.Equal(t, http.StatusNoContent, code)

	metadata := pollStatus(t, backend.router, "sawatch", 5*time.Second)
	require.Equal(t, "fulfilled", metadata.Status)
	assert.Empty(t, metadata.Error)

	code, body := rawRequest(t, backend.router, http.MethodGet, "/renders/sawatch/heightmap.tif")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "gdal_translate", string(body))

	code, body = rawRequest(t, backend.router, http.MethodGet, "/renders/sawatch/shaded-relief.tif")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "shaded", string(body))
}

func TestRenderWorkflowNoCoverage(t *testing.T) {
	backend := setupBackend(t)

	req := api.RenderRequest{
		Extent: &api.Extent{Left: 5, Bottom: 45, Right: 6, Top: 46},
		Size:   &api.Size{Width: 256, Height: 256},
	}
	code := httpRequest(t, backend.router, http.MethodPut, "/renders/alps", req, nil)
	require.Equal(t, http.StatusNoContent, code)

	metadata := pollStatus(t, backend.router, "alps", 5*time.Second)
	require.Equal(t, "failed", metadata.Status)
	assert.Contains(t, metadata.Error, "no tiles cover")

	code, _ = rawRequest(t, backend.router, http.MethodGet, "/renders/alps/heightmap.tif")
	assert.Equal(t, http.StatusNotFound, code, "failed jobs never serve artifacts")
}

func TestRenderWorkflowResubmission(t *testing.T) {
	backend := setupBackend(t)

	req := api.RenderRequest{
		Extent: &api.Extent{Left: -105.8, Bottom: 37.2, Right: -105.2, Top: 37.7},
		Size:   &api.Size{Width: 256, Height: 256},
	}
	code := httpRequest(t, backend.router, http.MethodPut, "/renders/sawatch", req, nil)
	require.Equal(t, http.StatusNoContent, code)
	first := pollStatus(t, backend.router, "sawatch", 5*time.Second)
	require.Equal(t, "fulfilled", first.Status)

	firstJob, ok := backend.store.Get("sawatch")
	require.True(t, ok)

	// A fresh submission for the same id starts a new run.
	code = httpRequest(t, backend.router, http.MethodPut, "/renders/sawatch", req, nil)
	require.Equal(t, http.StatusNoContent, code)
	second := pollStatus(t, backend.router, "sawatch", 5*time.Second)
	require.Equal(t, "fulfilled", second.Status)

	secondJob, _ := backend.store.Get("sawatch")
	assert.NotEqual(t, firstJob.RunId, secondJob.RunId)
	assert.NotEqual(t, firstJob.HeightmapKey, secondJob.HeightmapKey)

	code, body := rawRequest(t, backend.router, http.MethodGet, "/renders/sawatch/heightmap.tif")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body)
}

func TestRenderWorkflowValidationRejectsSynchronously(t *testing.T) {
	backend := setupBackend(t)

	req := api.RenderRequest{Extent: &api.Extent{Left: -105.8, Bottom: 37.2, Right: -105.2, Top: 37.7}}
	code := httpRequest(t, backend.router, http.MethodPut, "/renders/sawatch", req, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	status, _ := rawRequest(t, backend.router, http.MethodGet, "/renders/sawatch")
	assert.Equal(t, http.StatusNotFound, status, "rejected submissions create no job record")
}
