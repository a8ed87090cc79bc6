// Package jobs tracks asynchronous crawl submissions for the HTTP API.
package jobs

import (
	"sync"
	"time"

	"github.com/equitylab/screener-crawler/internal/screener"
)

// Status is the lifecycle state of an async crawl job.
type Status string

// Job status values.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is the metadata tracked per async crawl submission.
type Job struct {
	ID        string                `json:"job_id"`
	Region    string                `json:"region"`
	Status    Status                `json:"status"`
	Submitted time.Time             `json:"submitted_at"`
	Started   *time.Time            `json:"started_at,omitempty"`
	Finished  *time.Time            `json:"finished_at,omitempty"`
	Result    *screener.CrawlResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// Registry is an in-memory, mutex-guarded job store. Jobs live for the
// process lifetime; the API surface is small enough that eviction has
// not been needed.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	clock screener.Clock
}

// NewRegistry creates an empty Registry.
func NewRegistry(clock screener.Clock) *Registry {
	return &Registry{
		jobs:  make(map[string]*Job),
		clock: clock,
	}
}

// Create registers a queued job.
func (r *Registry) Create(id, region string) Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := &Job{
		ID:        id,
		Region:    region,
		Status:    StatusQueued,
		Submitted: r.clock.Now(),
	}
	r.jobs[id] = job
	return *job
}

// MarkRunning transitions a job to running.
func (r *Registry) MarkRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	now := r.clock.Now()
	job.Status = StatusRunning
	job.Started = &now
}

// MarkCompleted stores the crawl result on a finished job.
func (r *Registry) MarkCompleted(id string, result screener.CrawlResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	now := r.clock.Now()
	job.Status = StatusCompleted
	job.Finished = &now
	job.Result = &result
	job.Error = ""
}

// MarkFailed records the failure text on a finished job.
func (r *Registry) MarkFailed(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	now := r.clock.Now()
	job.Status = StatusFailed
	job.Finished = &now
	job.Result = nil
	if err != nil {
		job.Error = err.Error()
	}
}

// Get returns a copy of the job so callers cannot mutate registry
// state.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}
