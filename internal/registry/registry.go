// Package registry keeps the in-memory table of download jobs.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
)

// Registry is safe for concurrent use. Every read returns a copy, so callers
// never observe a job mid-update.
type Registry struct {
	jobs  map[string]*domain.Job
	order []string
	mu    sync.RWMutex
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*domain.Job)}
}

// CreateJob stores a new pending job under a fresh identifier and returns a copy.
func (r *Registry) CreateJob(url string) *domain.Job {
	now := time.Now()
	job := &domain.Job{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    domain.JobStatusPending,
		Message:   constants.MsgQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	return job.Clone()
}

func (r *Registry) GetJob(id string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

// ListJobs returns every job in creation order.
func (r *Registry) ListJobs() []*domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*domain.Job, 0, len(r.order))
	for _, id := range r.order {
		jobs = append(jobs, r.jobs[id].Clone())
	}
	return jobs
}

// UpdateJob applies fn to the stored job under the write lock. If fn returns
// an error the job is left untouched.
func (r *Registry) UpdateJob(id string, fn func(job *domain.Job) error) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	draft := job.Clone()
	if err := fn(draft); err != nil {
		return job.Clone(), err
	}
	r.jobs[id] = draft
	return draft.Clone(), nil
}

// UpdateJobStatus is UpdateJob for the common single-transition case.
func (r *Registry) UpdateJobStatus(id string, status domain.JobStatus, progress float64, message string) (*domain.Job, error) {
	return r.UpdateJob(id, func(job *domain.Job) error {
		return job.Transition(status, progress, message)
	})
}

// Counts returns the number of jobs per status.
func (r *Registry) Counts() map[domain.JobStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.JobStatus]int)
	for _, job := range r.jobs {
		counts[job.Status]++
	}
	return counts
}
