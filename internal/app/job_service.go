package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erenuysaldev/Erotify/internal/catalog"
	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/gateway"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/metrics"
	"github.com/erenuysaldev/Erotify/internal/registry"
	"github.com/erenuysaldev/Erotify/internal/worker"
)

// Downloader runs the external tool for one job.
type Downloader interface {
	Run(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// Scanner finds the audio files a run produced.
type Scanner interface {
	Scan(dir string, window time.Duration) ([]domain.DownloadedFile, error)
}

// Forwarder hands one file to the music library.
type Forwarder interface {
	Forward(ctx context.Context, record catalog.Record) error
}

// CredentialsSource yields the provider credentials in effect.
type CredentialsSource interface {
	Get() domain.Credentials
}

// Deps are the collaborators a JobService drives.
type Deps struct {
	Registry    *registry.Registry
	Pool        *worker.Pool
	Downloader  Downloader
	Scanner     Scanner
	Forwarder   Forwarder
	Credentials CredentialsSource
	Logger      *logger.Logger
	OutputDir   string
	ScanWindow  time.Duration
}

// JobService owns the download job lifecycle: it creates jobs, runs them on
// the worker pool and cancels them.
type JobService struct {
	Registry   *registry.Registry
	Logger     *logger.Logger
	pool       *worker.Pool
	downloader Downloader
	scanner    Scanner
	forwarder  Forwarder
	creds      CredentialsSource
	tasks      map[string]*worker.Task
	outputDir  string
	scanWindow time.Duration
	mu         sync.Mutex
}

func NewJobService(deps Deps) *JobService {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	window := deps.ScanWindow
	if window <= 0 {
		window = constants.DefaultScanWindow
	}
	return &JobService{
		Registry:   deps.Registry,
		Logger:     log.WithComponent("jobs"),
		pool:       deps.Pool,
		downloader: deps.Downloader,
		scanner:    deps.Scanner,
		forwarder:  deps.Forwarder,
		creds:      deps.Credentials,
		tasks:      make(map[string]*worker.Task),
		outputDir:  deps.OutputDir,
		scanWindow: window,
	}
}

// Task is the handle of one running or queued download job.
type Task struct {
	svc  *JobService
	task *worker.Task
	ID   string
}

// Done is closed when the job's worker slot is released.
func (t *Task) Done() <-chan struct{} {
	return t.task.Done()
}

// Wait blocks until the job has left the pool and returns its final state.
func (t *Task) Wait(ctx context.Context) (*domain.Job, error) {
	select {
	case <-t.task.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return t.svc.Registry.GetJob(t.ID)
}

// Cancel is CancelJob for this task's job.
func (t *Task) Cancel() (*domain.Job, error) {
	return t.svc.CancelJob(t.ID)
}

// EnqueueDownload creates a pending job for url and queues it. It never waits
// for a free worker.
func (s *JobService) EnqueueDownload(url string) (*Task, error) {
	job := s.Registry.CreateJob(url)
	metrics.JobsCreated.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	wt, err := s.pool.Submit(job.ID, func(ctx context.Context) error {
		defer s.forget(job.ID)
		return s.runJob(ctx, job.ID, url)
	})
	if err != nil {
		_, _ = s.Registry.UpdateJobStatus(job.ID, domain.JobStatusCancelled, 0, constants.MsgCancelled)
		return nil, err
	}
	s.tasks[job.ID] = wt

	s.Logger.WithJob(job.ID, url).Info("Job enqueued")
	return &Task{svc: s, task: wt, ID: job.ID}, nil
}

func (s *JobService) GetJob(id string) (*domain.Job, error) {
	return s.Registry.GetJob(id)
}

func (s *JobService) ListJobs() []*domain.Job {
	return s.Registry.ListJobs()
}

// CancelJob moves a pending or downloading job to cancelled and stops its
// worker. Cancelling a finished job is a no-op that returns its current state.
func (s *JobService) CancelJob(id string) (*domain.Job, error) {
	job, err := s.Registry.UpdateJobStatus(id, domain.JobStatusCancelled, 0, constants.MsgCancelled)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return job, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled)).Inc()

	s.mu.Lock()
	wt := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()
	if wt != nil {
		wt.Cancel()
	}

	s.Logger.WithJob(id, job.URL).Info("Job cancelled")
	return job, nil
}

// Shutdown stops the pool, killing any running downloads.
func (s *JobService) Shutdown(ctx context.Context) error {
	return s.pool.Stop(ctx)
}

func (s *JobService) forget(id string) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}
