package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relief-backend/internal/messaging"
	"relief-backend/internal/render"
	"relief-backend/internal/storage"
	"relief-backend/pkg/api"
)

type recordingPublisher struct {
	published []messaging.RenderTaskPayload
	err       error
}

func (p *recordingPublisher) PublishRenderTask(ctx context.Context, payload messaging.RenderTaskPayload) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, payload)
	return nil
}

func (p *recordingPublisher) Close() {}

type serviceFixture struct {
	store     *render.InMemoryJobStore
	artifacts *storage.LocalObjectStore
	publisher *recordingPublisher
	server    *httptest.Server
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	artifacts, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	store := render.NewInMemoryJobStore()
	publisher := &recordingPublisher{}

	router := chi.NewRouter()
	NewRenderService(store, artifacts, publisher, true).AddRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &serviceFixture{store: store, artifacts: artifacts, publisher: publisher, server: server}
}

func (f *serviceFixture) put(t *testing.T, id string, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPut, f.server.URL+"/renders/"+id, bytes.NewReader([]byte(body)))
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func (f *serviceFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()

	res, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func errorMessage(t *testing.T, res *http.Response) string {
	t.Helper()

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body.Message
}

const validBody = `{
	"extent": {"left": -106, "bottom": 37, "right": -105, "top": 38},
	"size": {"width": 400, "height": 300}
}`

func TestCreateRenderAccepted(t *testing.T) {
	fixture := newServiceFixture(t)

	res := fixture.put(t, "boulder", validBody)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	job, ok := fixture.store.Get("boulder")
	require.True(t, ok)
	assert.Equal(t, render.StatusProcessing, job.Status)

	require.Len(t, fixture.publisher.published, 1)
	assert.Equal(t, "boulder", fixture.publisher.published[0].Id)
	assert.Equal(t, job.RunId, fixture.publisher.published[0].RunId)
}

func TestCreateRenderValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "size missing",
			body:    `{"extent": {"left": -106, "bottom": 37, "right": -105, "top": 38}}`,
			message: "size is missing",
		},
		{
			name:    "size malformed",
			body:    `{"extent": {"left": -106, "bottom": 37, "right": -105, "top": 38}, "size": {"width": 0, "height": 300}}`,
			message: "size is malformed",
		},
		{
			name:    "extent missing",
			body:    `{"size": {"width": 400, "height": 300}}`,
			message: "extent is missing",
		},
		{
			name:    "extent malformed",
			body:    `{"extent": {"left": -105, "bottom": 37, "right": -106, "top": 38}, "size": {"width": 400, "height": 300}}`,
			message: "extent is malformed",
		},
		{
			name:    "negative samples",
			body:    `{"extent": {"left": -106, "bottom": 37, "right": -105, "top": 38}, "size": {"width": 400, "height": 300}, "samples": -1}`,
			message: "samples is malformed",
		},
		{
			name:    "negative margin",
			body:    `{"extent": {"left": -106, "bottom": 37, "right": -105, "top": 38}, "size": {"width": 400, "height": 300}, "margin": {"horizontal": -5, "vertical": 0}}`,
			message: "margin is malformed",
		},
		{
			name:    "unparsable body",
			body:    `{"extent":`,
			message: "unable to parse request body",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fixture := newServiceFixture(t)

			res := fixture.put(t, "boulder", test.body)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, test.message, errorMessage(t, res))

			_, ok := fixture.store.Get("boulder")
			assert.False(t, ok, "rejected requests must not create job records")
			assert.Empty(t, fixture.publisher.published)
		})
	}
}

func TestCreateRenderCutlineSatisfiesExtent(t *testing.T) {
	fixture := newServiceFixture(t)

	res := fixture.put(t, "sangre", `{
		"cutline": {"type": "Polygon", "coordinates": [[[-106, 37], [-105, 37], [-105, 38], [-106, 37]]]},
		"size": {"width": 400, "height": 300}
	}`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestCreateRenderInvalidId(t *testing.T) {
	fixture := newServiceFixture(t)

	res := fixture.put(t, "not%2Fa%2Fsafe%2Fid", validBody)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Empty(t, fixture.publisher.published)
}

func TestCreateRenderCoalescesDuplicates(t *testing.T) {
	fixture := newServiceFixture(t)

	first := fixture.put(t, "boulder", validBody)
	require.Equal(t, http.StatusNoContent, first.StatusCode)

	second := fixture.put(t, "boulder", validBody)
	assert.Equal(t, http.StatusNoContent, second.StatusCode, "duplicate submissions report success")
	assert.Len(t, fixture.publisher.published, 1, "a coalesced submission must not start a second pipeline")
}

func TestCreateRenderPublishFailureFailsJob(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.publisher.err = fmt.Errorf("queue is gone")

	res := fixture.put(t, "boulder", validBody)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	job, ok := fixture.store.Get("boulder")
	require.True(t, ok)
	assert.Equal(t, render.StatusFailed, job.Status)
}

func TestGetRenderStatus(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.put(t, "boulder", validBody)

	res := fixture.get(t, "/renders/boulder")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var metadata api.JobMetadata
	require.NoError(t, json.NewDecoder(res.Body).Decode(&metadata))
	assert.Equal(t, api.JobMetadata{Id: "boulder", Status: "processing"}, metadata)
}

func TestGetRenderFailedIncludesDiagnostic(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.put(t, "boulder", validBody)

	job, _ := fixture.store.Get("boulder")
	require.True(t, fixture.store.Fail("boulder", job.RunId, "mosaic stage failed: exit status 1"))

	res := fixture.get(t, "/renders/boulder")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var metadata api.JobMetadata
	require.NoError(t, json.NewDecoder(res.Body).Decode(&metadata))
	assert.Equal(t, "failed", metadata.Status)
	assert.Equal(t, "mosaic stage failed: exit status 1", metadata.Error)
}

func TestGetRenderUnknownId(t *testing.T) {
	fixture := newServiceFixture(t)

	res := fixture.get(t, "/renders/nowhere")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGetArtifacts(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.put(t, "boulder", validBody)

	job, _ := fixture.store.Get("boulder")
	heightmapKey := fmt.Sprintf("boulder/%s/heightmap.tif", job.RunId)
	reliefKey := fmt.Sprintf("boulder/%s/shaded-relief.tif", job.RunId)

	dir := t.TempDir()
	heightmapFile := filepath.Join(dir, "heightmap.tif")
	reliefFile := filepath.Join(dir, "shaded-relief.tif")
	require.NoError(t, os.WriteFile(heightmapFile, []byte("heightmap-bytes"), 0644))
	require.NoError(t, os.WriteFile(reliefFile, []byte("relief-bytes"), 0644))
	require.NoError(t, fixture.artifacts.PutFile(context.Background(), heightmapKey, heightmapFile))
	require.NoError(t, fixture.artifacts.PutFile(context.Background(), reliefKey, reliefFile))
	require.True(t, fixture.store.Complete("boulder", job.RunId, heightmapKey, reliefKey))

	res := fixture.get(t, "/renders/boulder/heightmap.tif")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/tiff", res.Header.Get("Content-Type"))
	var buf bytes.Buffer
	_, err := buf.ReadFrom(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "heightmap-bytes", buf.String())

	res = fixture.get(t, "/renders/boulder/shaded-relief.tif")
	require.Equal(t, http.StatusOK, res.StatusCode)
	buf.Reset()
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "relief-bytes", buf.String())
}

func TestGetArtifactBeforeFulfilled(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.put(t, "boulder", validBody)

	res := fixture.get(t, "/renders/boulder/heightmap.tif")
	assert.Equal(t, http.StatusNotFound, res.StatusCode, "artifacts of a processing job are never served")

	res = fixture.get(t, "/renders/nowhere/shaded-relief.tif")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestListRenders(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.put(t, "alpha", validBody)
	fixture.put(t, "beta", validBody)

	job, _ := fixture.store.Get("alpha")
	require.True(t, fixture.store.Fail("alpha", job.RunId, "boom"))

	res := fixture.get(t, "/renders/")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var all []api.JobMetadata
	require.NoError(t, json.NewDecoder(res.Body).Decode(&all))
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Id)
	assert.Equal(t, "beta", all[1].Id)

	res = fixture.get(t, "/renders/?status=failed")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var failed []api.JobMetadata
	require.NoError(t, json.NewDecoder(res.Body).Decode(&failed))
	require.Len(t, failed, 1)
	assert.Equal(t, "alpha", failed[0].Id)

	res = fixture.get(t, "/renders/?status=bogus")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHealth(t *testing.T) {
	fixture := newServiceFixture(t)

	res := fixture.get(t, "/health")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
