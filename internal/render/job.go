package render

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"relief-backend/pkg/api"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusFulfilled  Status = "fulfilled"
	StatusFailed     Status = "failed"
)

type Job struct {
	Id      string
	Status  Status
	Request api.RenderRequest

	// RunId identifies the pipeline run that owns this record; terminal
	// transitions are only accepted from the owning run.
	RunId uuid.UUID

	// PriorRunId is the run whose artifacts this record superseded, kept so
	// the pipeline can clean the old artifact prefix once the new run lands.
	PriorRunId uuid.UUID

	HeightmapKey    string
	ShadedReliefKey string
	Error           string

	CreationTime   time.Time
	CompletionTime time.Time
}

// JobStore is the only mutable shared state in the service. Implementations
// must be safe for concurrent use and must never expose half-written records.
type JobStore interface {
	// Create installs a fresh processing record and returns its run id. It
	// returns false while a run for the same id is still processing, which
	// is how duplicate submissions are coalesced into the in-flight run.
	Create(id string, req api.RenderRequest) (uuid.UUID, bool)

	Get(id string) (Job, bool)

	List(status Status) []Job

	// Complete and Fail transition the record owned by runId to a terminal
	// state. They report false, without mutating anything, when the record
	// is gone, already terminal, or owned by a newer run.
	Complete(id string, runId uuid.UUID, heightmapKey, shadedReliefKey string) bool

	Fail(id string, runId uuid.UUID, errMsg string) bool
}

type InMemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]Job
}

var _ JobStore = (*InMemoryJobStore)(nil)

func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{jobs: make(map[string]Job)}
}

func (s *InMemoryJobStore) Create(id string, req api.RenderRequest) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, exists := s.jobs[id]
	if exists && prior.Status == StatusProcessing {
		return uuid.Nil, false
	}

	job := Job{
		Id:           id,
		Status:       StatusProcessing,
		Request:      req,
		RunId:        uuid.New(),
		CreationTime: time.Now(),
	}
	if exists {
		job.PriorRunId = prior.RunId
	}
	s.jobs[id] = job

	return job.RunId, true
}

func (s *InMemoryJobStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	return job, ok
}

func (s *InMemoryJobStore) List(status Status) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []Job
	for _, job := range s.jobs {
		if status == "" || job.Status == status {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func (s *InMemoryJobStore) Complete(id string, runId uuid.UUID, heightmapKey, shadedReliefKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != StatusProcessing || job.RunId != runId {
		return false
	}

	job.Status = StatusFulfilled
	job.HeightmapKey = heightmapKey
	job.ShadedReliefKey = shadedReliefKey
	job.CompletionTime = time.Now()
	s.jobs[id] = job

	return true
}

func (s *InMemoryJobStore) Fail(id string, runId uuid.UUID, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != StatusProcessing || job.RunId != runId {
		return false
	}

	job.Status = StatusFailed
	job.Error = errMsg
	job.CompletionTime = time.Now()
	s.jobs[id] = job

	return true
}
