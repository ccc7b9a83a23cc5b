package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	backend "relief-backend/internal/api"
	"relief-backend/internal/catalog"
	"relief-backend/internal/messaging"
	"relief-backend/internal/render"
	"relief-backend/internal/storage"
	"relief-backend/pkg/api"
)

// toolchainStub stands in for the gdal/blender executables: every tool
// writes the file the next stage expects to read, so the pipeline runs end
// to end without any external binaries installed.
type toolchainStub struct {
	mu    sync.Mutex
	calls []string
}

func (s *toolchainStub) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()

	switch name {
	case "gdalbuildvrt":
		return nil, nil, os.WriteFile(args[1], []byte("vrt"), 0644)

	case "gdalwarp", "gdal_translate":
		return nil, nil, os.WriteFile(args[len(args)-1], []byte(name), 0644)

	case "gdalinfo":
		// Report the dimensions the warp was asked for, plus band extrema.
		return []byte(`{"size": [256, 256], "bands": [{"minimum": 0, "maximum": 0, "computedMin": 1310, "computedMax": 4401}]}`), nil, nil

	case "blender":
		var heightmapPath string
		for i, arg := range args {
			if arg == "--" && i+1 < len(args) {
				heightmapPath = args[i+1]
			}
		}
		out := filepath.Join(filepath.Dir(heightmapPath), "shaded-relief-0.tif")
		return nil, nil, os.WriteFile(out, []byte("shaded"), 0644)

	default:
		return nil, nil, fmt.Errorf("unexpected tool %s", name)
	}
}

func (s *toolchainStub) RunInput(ctx context.Context, input string, name string, args ...string) ([]byte, []byte, error) {
	return nil, nil, fmt.Errorf("unexpected stdin tool %s", name)
}

type testBackend struct {
	router *chi.Mux
	store  *render.InMemoryJobStore
	queue  *messaging.InMemoryQueue
}

func setupBackend(t *testing.T) *testBackend {
	t.Helper()

	artifacts, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	cat := catalog.New("EPSG:4326", []catalog.Footprint{
		{Path: "/tiles/n38w106.tif", Extent: catalog.Extent{Left: -106, Bottom: 37, Right: -105, Top: 38}},
		{Path: "/tiles/n39w106.tif", Extent: catalog.Extent{Left: -106, Bottom: 38, Right: -105, Top: 39}},
	}, nil)

	store := render.NewInMemoryJobStore()
	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	processor := render.NewRenderProcessor(store, artifacts, cat, nil, queue, &toolchainStub{}, render.ProcessorOptions{
		ReliefScript: "render.py",
		WorkRoot:     t.TempDir(),
	})
	go processor.Start()

	router := chi.NewRouter()
	backend.NewRenderService(store, artifacts, queue, true).AddRoutes(router)

	return &testBackend{router: router, store: store, queue: queue}
}

func httpRequest(t *testing.T, router *chi.Mux, method, path string, body any, result any) int {
	t.Helper()

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if result != nil && rec.Code < http.StatusMultipleChoices && rec.Body.Len() > 0 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(result))
	}
	return rec.Code
}

func rawRequest(t *testing.T, router *chi.Mux, method, path string) (int, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

// pollStatus polls the job until it leaves processing or the deadline hits.
func pollStatus(t *testing.T, router *chi.Mux, id string, deadline time.Duration) api.JobMetadata {
	t.Helper()

	var metadata api.JobMetadata
	expire := time.Now().Add(deadline)
	for {
		code := httpRequest(t, router, http.MethodGet, "/renders/"+id, nil, &metadata)
		require.Equal(t, http.StatusOK, code)

		if metadata.Status != "processing" {
			return metadata
		}
		if time.Now().After(expire) {
			t.Fatalf("job %s still processing after %v", id, deadline)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
