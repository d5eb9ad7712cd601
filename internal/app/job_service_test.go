package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/erenuysaldev/Erotify/internal/catalog"
	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/gateway"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/metrics"
	"github.com/erenuysaldev/Erotify/internal/reconciler"
	"github.com/erenuysaldev/Erotify/internal/registry"
	"github.com/erenuysaldev/Erotify/internal/worker"
)

type fakeDownloader struct {
	run   func(ctx context.Context, req gateway.Request) (*gateway.Result, error)
	calls atomic.Int32
}

func (f *fakeDownloader) Run(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	f.calls.Add(1)
	return f.run(ctx, req)
}

type staticCreds struct{ creds domain.Credentials }

func (s staticCreds) Get() domain.Credentials { return s.creds }

// writes files into the job's staging directory like spotdl would
func producing(names ...string) func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	return func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte(name), 0644); err != nil {
				return nil, err
			}
		}
		return &gateway.Result{Duration: time.Second}, nil
	}
}

type harness struct {
	svc       *JobService
	outputDir string
	catalog   *httptest.Server
	received  atomic.Int32
}

func newHarness(t *testing.T, dl *fakeDownloader, catalogStatus int) *harness {
	t.Helper()
	h := &harness{outputDir: t.TempDir()}
	h.catalog = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.received.Add(1)
		w.WriteHeader(catalogStatus)
	}))
	t.Cleanup(h.catalog.Close)

	log := logger.Discard()
	pool := worker.NewPool(2, log)
	pool.Start()

	h.svc = NewJobService(Deps{
		Registry:    registry.New(),
		Pool:        pool,
		Downloader:  dl,
		Scanner:     reconciler.New(log),
		Forwarder:   catalog.NewForwarder(h.catalog.URL, time.Second, log),
		Credentials: staticCreds{},
		Logger:      log,
		OutputDir:   h.outputDir,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.svc.Shutdown(ctx)
	})
	return h
}

func (h *harness) run(t *testing.T, url string) *domain.Job {
	t.Helper()
	task, err := h.svc.EnqueueDownload(url)
	if err != nil {
		t.Fatalf("EnqueueDownload failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := task.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	return job
}

func TestJobService_EnqueueReturnsPendingJob(t *testing.T) {
	block := make(chan struct{})
	dl := &fakeDownloader{run: func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		<-block
		return &gateway.Result{}, nil
	}}
	h := newHarness(t, dl, http.StatusOK)
	defer close(block)

	var tasks []*Task
	for i := 0; i < 3; i++ {
		task, err := h.svc.EnqueueDownload("https://open.spotify.com/track/x")
		if err != nil {
			t.Fatalf("EnqueueDownload failed: %v", err)
		}
		tasks = append(tasks, task)
	}

	// two workers busy, third waits in the backlog
	job, err := h.svc.GetJob(tasks[2].ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != domain.JobStatusPending || job.Message != constants.MsgQueued {
		t.Errorf("Expected queued job, got %s %q", job.Status, job.Message)
	}
	if got := len(h.svc.ListJobs()); got != 3 {
		t.Errorf("Expected 3 jobs, got %d", got)
	}
}

func TestJobService_Success(t *testing.T) {
	dl := &fakeDownloader{run: producing("Artist - Song Title.mp3", "cover.jpg")}
	h := newHarness(t, dl, http.StatusOK)

	job := h.run(t, "https://open.spotify.com/track/x")

	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", job.Status, job.Message)
	}
	if job.Progress != constants.ProgressDone {
		t.Errorf("Expected progress 100, got %f", job.Progress)
	}
	if job.Message != "Successfully downloaded and added 1 song(s) to library" {
		t.Errorf("Unexpected message %q", job.Message)
	}
	if job.SongInfo == nil || job.SongInfo.Artist != "Artist" || job.SongInfo.Title != "Song Title" {
		t.Errorf("Unexpected song info %+v", job.SongInfo)
	}
	if job.FilePath != filepath.Join(h.outputDir, "Artist - Song Title.mp3") {
		t.Errorf("Unexpected file path %q", job.FilePath)
	}
	if _, err := os.Stat(job.FilePath); err != nil {
		t.Errorf("Expected file promoted into output dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.outputDir, "cover.jpg")); !os.IsNotExist(err) {
		t.Errorf("Expected non-audio file to stay out of the library, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.outputDir, constants.StagingDir)); !os.IsNotExist(err) {
		t.Errorf("Expected staging to be cleaned up, got %v", err)
	}
	if h.received.Load() != 1 {
		t.Errorf("Expected 1 catalog forward, got %d", h.received.Load())
	}
}

func TestJobService_RedownloadIsNotForwardedAgain(t *testing.T) {
	dl := &fakeDownloader{run: producing("Artist - Song.mp3")}
	h := newHarness(t, dl, http.StatusOK)

	first := h.run(t, "u")
	second := h.run(t, "u")

	for _, job := range []*domain.Job{first, second} {
		if job.Status != domain.JobStatusCompleted {
			t.Fatalf("Expected completed, got %s (%s)", job.Status, job.Message)
		}
		if job.FilePath != filepath.Join(h.outputDir, "Artist - Song.mp3") {
			t.Errorf("Expected existing library path, got %q", job.FilePath)
		}
	}
	if second.Message != "Successfully downloaded and added 1 song(s) to library" {
		t.Errorf("Unexpected message %q", second.Message)
	}
	if h.received.Load() != 1 {
		t.Errorf("Expected 1 catalog forward, got %d", h.received.Load())
	}
	if _, err := os.Stat(filepath.Join(h.outputDir, "Artist - Song (1).mp3")); !os.IsNotExist(err) {
		t.Errorf("Expected no second copy in the library, got %v", err)
	}
}

func TestJobService_CatalogFailureStillCompletes(t *testing.T) {
	dl := &fakeDownloader{run: producing("Artist - Song.mp3")}
	h := newHarness(t, dl, http.StatusInternalServerError)

	job := h.run(t, "u")

	if job.Status != domain.JobStatusCompleted {
		t.Errorf("Expected completed despite catalog 500, got %s (%s)", job.Status, job.Message)
	}
	if h.received.Load() != 1 {
		t.Errorf("Expected catalog to be called once, got %d", h.received.Load())
	}
}

func TestJobService_NoFilesCompletesWithCheckMessage(t *testing.T) {
	dl := &fakeDownloader{run: producing()}
	h := newHarness(t, dl, http.StatusOK)

	job := h.run(t, "u")

	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s", job.Status)
	}
	if job.Message != constants.MsgCheckManually {
		t.Errorf("Expected %q, got %q", constants.MsgCheckManually, job.Message)
	}
	if job.SongInfo != nil {
		t.Errorf("Expected no song info, got %+v", job.SongInfo)
	}
}

func TestJobService_ToolError(t *testing.T) {
	dl := &fakeDownloader{run: func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		return nil, &gateway.ToolError{ExitCode: 1, Stderr: "No results found for song"}
	}}
	h := newHarness(t, dl, http.StatusOK)

	job := h.run(t, "u")

	if job.Status != domain.JobStatusFailed {
		t.Fatalf("Expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.Message, "No results found for song") {
		t.Errorf("Expected stderr in message, got %q", job.Message)
	}
	if h.received.Load() != 0 {
		t.Error("Expected no catalog forward for a failed job")
	}
}

func TestJobService_TimeoutIgnoresPartialFiles(t *testing.T) {
	dl := &fakeDownloader{run: func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		_ = os.WriteFile(filepath.Join(req.OutputDir, "Artist - Partial.mp3"), []byte("x"), 0644)
		return nil, domain.ErrToolTimeout
	}}
	h := newHarness(t, dl, http.StatusOK)

	job := h.run(t, "u")

	if job.Status != domain.JobStatusFailed {
		t.Fatalf("Expected failed, got %s", job.Status)
	}
	if job.Message != constants.MsgTimeout {
		t.Errorf("Expected %q, got %q", constants.MsgTimeout, job.Message)
	}
	if _, err := os.Stat(filepath.Join(h.outputDir, "Artist - Partial.mp3")); !os.IsNotExist(err) {
		t.Error("Expected partial file not to be promoted")
	}
}

func TestJobService_DownloaderFaultIsCounted(t *testing.T) {
	dl := &fakeDownloader{run: func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		return nil, errors.New("fork/exec spotdl: permission denied")
	}}
	h := newHarness(t, dl, http.StatusOK)
	fault := metrics.GatewayOutcomes.WithLabelValues(metrics.OutcomeFault)
	before := testutil.ToFloat64(fault)

	job := h.run(t, "u")

	if job.Status != domain.JobStatusFailed {
		t.Fatalf("Expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.Message, "permission denied") {
		t.Errorf("Expected fault text in message, got %q", job.Message)
	}
	if got := testutil.ToFloat64(fault); got != before+1 {
		t.Errorf("Expected fault outcome count %v, got %v", before+1, got)
	}
}

func TestJobService_UnexpectedFault(t *testing.T) {
	dl := &fakeDownloader{run: func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		panic("nil map write")
	}}
	h := newHarness(t, dl, http.StatusOK)

	job := h.run(t, "u")

	if job.Status != domain.JobStatusFailed {
		t.Fatalf("Expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.Message, "nil map write") {
		t.Errorf("Expected fault text in message, got %q", job.Message)
	}
}

func TestJobService_CancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	dl := &fakeDownloader{run: func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	h := newHarness(t, dl, http.StatusOK)

	task, err := h.svc.EnqueueDownload("u")
	if err != nil {
		t.Fatalf("EnqueueDownload failed: %v", err)
	}
	<-started

	job, err := task.Cancel()
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if job.Status != domain.JobStatusCancelled || job.Message != constants.MsgCancelled {
		t.Errorf("Expected cancelled job, got %s %q", job.Status, job.Message)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := task.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if final.Status != domain.JobStatusCancelled {
		t.Errorf("Expected job to stay cancelled after worker exit, got %s", final.Status)
	}
}

// cancels the job while its files are being reconciled
type cancellingScanner struct {
	svc  *JobService
	next Scanner
}

func (c cancellingScanner) Scan(dir string, window time.Duration) ([]domain.DownloadedFile, error) {
	if _, err := c.svc.CancelJob(filepath.Base(dir)); err != nil {
		return nil, err
	}
	return c.next.Scan(dir, window)
}

func TestJobService_CancelAfterDownloadLeavesLibraryUntouched(t *testing.T) {
	dl := &fakeDownloader{run: producing("Artist - Song.mp3")}
	h := newHarness(t, dl, http.StatusOK)
	h.svc.scanner = cancellingScanner{svc: h.svc, next: h.svc.scanner}

	job := h.run(t, "u")

	if job.Status != domain.JobStatusCancelled {
		t.Fatalf("Expected cancelled, got %s (%s)", job.Status, job.Message)
	}
	if _, err := os.Stat(filepath.Join(h.outputDir, "Artist - Song.mp3")); !os.IsNotExist(err) {
		t.Errorf("Expected file not to be promoted, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.outputDir, constants.StagingDir)); !os.IsNotExist(err) {
		t.Errorf("Expected staging to be cleaned up, got %v", err)
	}
	if h.received.Load() != 0 {
		t.Errorf("Expected no catalog forward, got %d", h.received.Load())
	}
}

func TestJobService_CancelQueuedJobIsSkipped(t *testing.T) {
	block := make(chan struct{})
	dl := &fakeDownloader{run: func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		<-block
		return &gateway.Result{}, nil
	}}
	h := newHarness(t, dl, http.StatusOK)

	// occupy both workers
	first, _ := h.svc.EnqueueDownload("a")
	second, _ := h.svc.EnqueueDownload("b")
	queued, _ := h.svc.EnqueueDownload("c")

	if _, err := h.svc.CancelJob(queued.ID); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, task := range []*Task{first, second} {
		if _, err := task.Wait(ctx); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	job, err := queued.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if job.Status != domain.JobStatusCancelled {
		t.Errorf("Expected cancelled, got %s", job.Status)
	}
	if dl.calls.Load() != 2 {
		t.Errorf("Expected the cancelled job never to reach the downloader, got %d runs", dl.calls.Load())
	}
}

func TestJobService_CancelFinishedJobIsNoop(t *testing.T) {
	dl := &fakeDownloader{run: producing()}
	h := newHarness(t, dl, http.StatusOK)

	done := h.run(t, "u")
	job, err := h.svc.CancelJob(done.ID)
	if err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("Expected completed job to stay completed, got %s", job.Status)
	}
}

func TestJobService_CancelUnknownJob(t *testing.T) {
	h := newHarness(t, &fakeDownloader{run: producing()}, http.StatusOK)

	if _, err := h.svc.CancelJob("missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
	if _, err := h.svc.GetJob("missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func TestJobService_ConcurrentJobsUseSeparateStaging(t *testing.T) {
	dl := &fakeDownloader{run: func(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
		name := req.URL + " - Track.mp3"
		if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte(req.URL), 0644); err != nil {
			return nil, err
		}
		return &gateway.Result{}, nil
	}}
	h := newHarness(t, dl, http.StatusOK)

	a, _ := h.svc.EnqueueDownload("A")
	b, _ := h.svc.EnqueueDownload("B")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	jobA, _ := a.Wait(ctx)
	jobB, _ := b.Wait(ctx)

	if len(jobA.Files) != 1 || jobA.Files[0] != "A - Track.mp3" {
		t.Errorf("Expected job A to see only its own file, got %v", jobA.Files)
	}
	if len(jobB.Files) != 1 || jobB.Files[0] != "B - Track.mp3" {
		t.Errorf("Expected job B to see only its own file, got %v", jobB.Files)
	}
}
