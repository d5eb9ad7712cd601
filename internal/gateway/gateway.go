// Package gateway drives the external spotdl downloader as a subprocess.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/logger"
)

var commandContext = exec.CommandContext

// waitDelay bounds how long Wait keeps reading output after the process was
// killed, in case a grandchild still holds the pipes.
const waitDelay = 2 * time.Second

// ToolError is a non-zero exit of the downloader. Stderr holds its diagnostics.
type ToolError struct {
	Stderr   string
	ExitCode int
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("spotdl exited with code %d: %s", e.ExitCode, e.Stderr)
}

func (e *ToolError) Unwrap() error {
	return domain.ErrToolFailed
}

// Request describes one download invocation.
type Request struct {
	Credentials domain.Credentials
	JobID       string
	URL         string
	OutputDir   string
}

// Result is returned on a zero exit.
type Result struct {
	Stdout   string
	Duration time.Duration
}

// Option configures the Runner.
type Option func(*Runner)

// WithBinary overrides the spotdl executable.
func WithBinary(binary string) Option {
	return func(r *Runner) {
		if binary != "" {
			r.binary = binary
		}
	}
}

// WithTimeout overrides the per-invocation time limit.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// Runner runs spotdl with a fixed output format.
type Runner struct {
	logger  *logger.Logger
	binary  string
	timeout time.Duration
}

func NewRunner(log *logger.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logger.Default()
	}
	r := &Runner{
		logger:  log.WithComponent("gateway"),
		binary:  constants.DefaultSpotDLPath,
		timeout: constants.DefaultDownloadTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary is the configured executable name or path.
func (r *Runner) Binary() string {
	return r.binary
}

// Available reports whether the executable can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Args builds the spotdl command line for req.
func Args(req Request) []string {
	args := []string{
		"download", req.URL,
		"--output", req.OutputDir,
		"--format", constants.OutputFormat,
		"--bitrate", constants.OutputBitrate,
		"--threads", constants.ToolThreads,
	}
	if req.Credentials.Configured() {
		args = append(args,
			"--client-id", req.Credentials.ClientID,
			"--client-secret", req.Credentials.ClientSecret,
		)
	}
	return args
}

// Run blocks until spotdl exits, the timeout elapses or ctx is cancelled. The
// process is killed in the latter two cases. Errors are a *ToolError,
// domain.ErrToolTimeout, or ctx.Err().
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.URL == "" {
		return nil, errors.New("url required")
	}
	if req.OutputDir == "" {
		return nil, errors.New("output directory required")
	}

	log := r.logger.WithJob(req.JobID, req.URL)
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := commandContext(runCtx, r.binary, Args(req)...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	log.Info("Starting spotdl", "output_dir", req.OutputDir, "with_credentials", req.Credentials.Configured())
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		log.Info("spotdl finished", "duration", elapsed)
		return &Result{Stdout: stdout.String(), Duration: elapsed}, nil
	}

	// The parent context wins over our own deadline: a cancelled job is not a timeout.
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Info("spotdl cancelled", "duration", elapsed)
		return nil, ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		log.Warn("spotdl timed out", "timeout", r.timeout)
		return nil, domain.ErrToolTimeout
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr := &ToolError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
		log.Error("spotdl failed", "exit_code", toolErr.ExitCode, "stderr", toolErr.Stderr)
		return nil, toolErr
	}

	// spawn failures, e.g. binary missing
	log.Error("spotdl could not start", "error", err)
	return nil, &ToolError{ExitCode: -1, Stderr: err.Error()}
}
