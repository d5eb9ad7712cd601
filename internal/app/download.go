package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/erenuysaldev/Erotify/internal/catalog"
	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/gateway"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/metrics"
	"github.com/erenuysaldev/Erotify/internal/reconciler"
	"github.com/erenuysaldev/Erotify/internal/storage"
)

// runJob drives one job from pending to a terminal status. Every failure is
// recorded on the job; the returned error only informs the pool.
func (s *JobService) runJob(ctx context.Context, id, url string) (err error) {
	log := s.Logger.WithJob(id, url)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in job", "panic", r)
			s.fail(log, id, fmt.Sprintf(constants.MsgFaultFmt, fmt.Sprint(r)))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if _, err := s.Registry.UpdateJobStatus(id, domain.JobStatusDownloading, constants.ProgressStarting, constants.MsgStarting); err != nil {
		// cancelled before a worker picked it up
		log.Info("Job no longer runnable", "error", err)
		return nil
	}

	staging := storage.StagingPath(s.outputDir, id)
	if err := storage.EnsureDir(staging); err != nil {
		s.fail(log, id, fmt.Sprintf(constants.MsgFaultFmt, err))
		return err
	}
	defer func() {
		if cErr := storage.CleanupStaging(staging); cErr != nil {
			log.Warn("Failed to remove staging directory", "dir", staging, "error", cErr)
		}
	}()

	if _, err := s.Registry.UpdateJobStatus(id, domain.JobStatusDownloading, constants.ProgressDownloading, constants.MsgDownloading); err != nil {
		return nil
	}

	res, runErr := s.downloader.Run(ctx, gateway.Request{
		JobID:       id,
		URL:         url,
		OutputDir:   staging,
		Credentials: s.creds.Get(),
	})
	if runErr != nil {
		return s.handleRunError(ctx, log, id, runErr)
	}
	metrics.GatewayOutcomes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.DownloadDuration.Observe(res.Duration.Seconds())

	if _, err := s.Registry.UpdateJobStatus(id, domain.JobStatusDownloading, constants.ProgressReconciling, constants.MsgAddingToLibrary); err != nil {
		return nil
	}

	records, err := s.scanner.Scan(staging, s.scanWindow)
	if err != nil {
		s.fail(log, id, fmt.Sprintf(constants.MsgFaultFmt, err))
		return err
	}
	metrics.FilesReconciled.Add(float64(len(records)))

	// last point where a cancel leaves the library untouched
	if ctx.Err() != nil {
		s.markCancelled(log, id)
		return ctx.Err()
	}

	promoted, err := storage.Promote(staging, s.outputDir, reconciler.IsAudioFile)
	if err != nil {
		s.fail(log, id, fmt.Sprintf(constants.MsgFaultFmt, err))
		return err
	}

	// promoted files belong in the catalog even if the job is cancelled now
	fctx := context.WithoutCancel(ctx)
	files := make([]string, 0, len(records))
	for i := range records {
		rec := &records[i]
		p, ok := promoted[rec.Filename]
		if ok {
			rec.Path = p.Path
		}
		name := filepath.Base(rec.Path)
		files = append(files, name)
		if p.Duplicate {
			log.WithFile(rec.Path).Info("Already in library, not forwarding")
			continue
		}
		s.forward(fctx, log, *rec, name)
	}

	s.complete(log, id, records, files)
	return nil
}

func (s *JobService) handleRunError(ctx context.Context, log *logger.Logger, id string, runErr error) error {
	var toolErr *gateway.ToolError
	switch {
	case ctx.Err() != nil:
		metrics.GatewayOutcomes.WithLabelValues(metrics.OutcomeCancelled).Inc()
		s.markCancelled(log, id)
		return ctx.Err()
	case errors.Is(runErr, domain.ErrToolTimeout):
		metrics.GatewayOutcomes.WithLabelValues(metrics.OutcomeTimeout).Inc()
		s.fail(log, id, constants.MsgTimeout)
	case errors.As(runErr, &toolErr):
		metrics.GatewayOutcomes.WithLabelValues(metrics.OutcomeToolError).Inc()
		s.fail(log, id, fmt.Sprintf(constants.MsgToolErrorFmt, toolErr.Stderr))
	default:
		metrics.GatewayOutcomes.WithLabelValues(metrics.OutcomeFault).Inc()
		s.fail(log, id, fmt.Sprintf(constants.MsgFaultFmt, runErr))
	}
	return runErr
}

// markCancelled records a cancellation noticed by the worker. CancelJob already
// flipped the status unless the pool itself is stopping.
func (s *JobService) markCancelled(log *logger.Logger, id string) {
	if _, err := s.Registry.UpdateJobStatus(id, domain.JobStatusCancelled, 0, constants.MsgCancelled); err == nil {
		metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled)).Inc()
	}
	log.Info("Download cancelled")
}

// forward is best effort: a rejected record never changes the job outcome.
func (s *JobService) forward(ctx context.Context, log *logger.Logger, rec domain.DownloadedFile, filename string) {
	if s.forwarder == nil {
		return
	}
	if err := s.forwarder.Forward(ctx, catalog.NewRecord(rec, filename)); err != nil {
		metrics.CatalogForwards.WithLabelValues("failed").Inc()
		log.WithFile(rec.Path).Warn("Catalog forward failed", "error", err)
		return
	}
	metrics.CatalogForwards.WithLabelValues("ok").Inc()
}

func (s *JobService) complete(log *logger.Logger, id string, records []domain.DownloadedFile, files []string) {
	message := constants.MsgCheckManually
	if len(records) > 0 {
		message = fmt.Sprintf(constants.MsgCompletedFmt, len(records))
	}

	_, err := s.Registry.UpdateJob(id, func(job *domain.Job) error {
		if err := job.Transition(domain.JobStatusCompleted, constants.ProgressDone, message); err != nil {
			return err
		}
		if len(records) > 0 {
			first := records[0]
			job.SongInfo = &domain.SongInfo{
				Title:    first.Title,
				Artist:   first.Artist,
				Album:    first.Album,
				Duration: first.Duration,
			}
			job.FilePath = first.Path
		}
		job.Files = files
		return nil
	})
	if err != nil {
		log.Info("Job not completed", "error", err)
		return
	}
	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCompleted)).Inc()
	log.Info("Job completed", "files", len(records))
}

func (s *JobService) fail(log *logger.Logger, id, message string) {
	if _, err := s.Registry.UpdateJobStatus(id, domain.JobStatusFailed, 0, message); err != nil {
		log.Info("Job not failed", "error", err)
		return
	}
	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusFailed)).Inc()
	log.Error("Job failed", "message", message)
}
