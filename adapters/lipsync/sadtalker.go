// Package lipsync drives the SadTalker command-line program.
package lipsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mhire/liveavatar/domain"
	"github.com/mhire/liveavatar/domain/repositories"
)

const (
	scriptName       = "inference.py"
	defaultWaitDelay = 5 * time.Second
	maxCapturedBytes = 64 << 10
)

// ErrTimeout is returned when a render exceeds its deadline.
var ErrTimeout = errors.New("render timed out")

type SadTalkerConfig struct {
	// Dir is the SadTalker checkout; the program runs with it as working directory.
	Dir         string
	Python      string
	Timeout     time.Duration
	Concurrency int64

	Enhancer        string
	PoseStyle       int
	BatchSize       int
	Size            int
	ExpressionScale float64
	Still           bool
	Preprocess      string
}

// SadTalker implements LipSyncRenderer. At most Concurrency renders run at
// once; extra callers wait for a slot or for their context to end.
type SadTalker struct {
	cfg      SadTalkerConfig
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	logger   *zap.Logger
}

var _ repositories.LipSyncRenderer = (*SadTalker)(nil)

func NewSadTalker(cfg SadTalkerConfig, logger *zap.Logger) *SadTalker {
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Enhancer == "" {
		cfg.Enhancer = "gfpgan"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.ExpressionScale == 0 {
		cfg.ExpressionScale = 1.0
	}
	if cfg.Preprocess == "" {
		cfg.Preprocess = "full"
	}

	return &SadTalker{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.Concurrency),
		logger: logger.With(zap.String("component", "sadtalker")),
	}
}

// CheckInstallation reports whether the SadTalker directory and script exist.
func (s *SadTalker) CheckInstallation() error {
	script := filepath.Join(s.cfg.Dir, scriptName)
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("sadtalker not found at %s: %w", script, err)
	}
	return nil
}

// InFlight is the number of renders currently holding a slot.
func (s *SadTalker) InFlight() int64 { return s.inFlight.Load() }

// Args builds the command-line arguments for job. Paths are made absolute
// because the program runs from its own directory.
func (s *SadTalker) Args(job repositories.RenderJob) ([]string, error) {
	script, err := filepath.Abs(filepath.Join(s.cfg.Dir, scriptName))
	if err != nil {
		return nil, err
	}
	audio, err := filepath.Abs(job.AudioPath)
	if err != nil {
		return nil, err
	}
	image, err := filepath.Abs(job.ImagePath)
	if err != nil {
		return nil, err
	}
	resultDir, err := filepath.Abs(job.ResultDir)
	if err != nil {
		return nil, err
	}

	args := []string{
		script,
		"--driven_audio", audio,
		"--source_image", image,
		"--result_dir", resultDir,
		"--enhancer", s.cfg.Enhancer,
		"--pose_style", strconv.Itoa(s.cfg.PoseStyle),
		"--batch_size", strconv.Itoa(s.cfg.BatchSize),
		"--size", strconv.Itoa(s.cfg.Size),
		"--expression_scale", strconv.FormatFloat(s.cfg.ExpressionScale, 'f', 1, 64),
	}
	if s.cfg.Still {
		args = append(args, "--still")
	}
	args = append(args,
		"--preprocess", s.cfg.Preprocess,
		"--output_video_name", job.OutputName,
	)
	return args, nil
}

// Render runs one SadTalker invocation and blocks until it exits, the
// timeout fires, or ctx is canceled. Cancellation kills the process.
func (s *SadTalker) Render(ctx context.Context, job repositories.RenderJob) (*repositories.RenderResult, error) {
	args, err := s.Args(job)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve render paths: %w", err)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for render slot: %w", err)
	}
	defer s.sem.Release(1)
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.cfg.Python, args...)
	cmd.Dir = s.cfg.Dir
	cmd.WaitDelay = defaultWaitDelay

	stdout := &limitedBuffer{limit: maxCapturedBytes}
	stderr := &limitedBuffer{limit: maxCapturedBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	s.logger.Info("Starting render",
		zap.String("requestID", job.RequestID),
		zap.String("output", job.OutputName))

	start := time.Now()
	err = cmd.Run()
	result := &repositories.RenderResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start).Milliseconds(),
	}

	if err != nil {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			s.logger.Warn("Render timed out",
				zap.String("requestID", job.RequestID),
				zap.Duration("timeout", s.cfg.Timeout))
			return result, fmt.Errorf("%w after %s: %w", ErrTimeout, s.cfg.Timeout, context.DeadlineExceeded)
		case ctx.Err() != nil:
			return result, ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.logger.Error("Render failed",
				zap.String("requestID", job.RequestID),
				zap.Int("exitCode", exitErr.ExitCode()),
				zap.String("stderr", result.Stderr))
			return result, &domain.ProcessError{
				Program:  "sadtalker",
				ExitCode: exitErr.ExitCode(),
				Stderr:   result.Stderr,
			}
		}
		return result, fmt.Errorf("failed to run sadtalker: %w", err)
	}

	s.logger.Info("Render finished",
		zap.String("requestID", job.RequestID),
		zap.Int64("durationMs", result.Duration))
	return result, nil
}

// limitedBuffer keeps the first limit bytes written and drops the rest.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }
