package slicer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"printbench/engine/internal/logging"
)

// Hard wall clock for one slicer invocation. The timeout is the only
// cancellation mechanism.
const DefaultTimeout = 120 * time.Second

var (
	ErrInputNotFound = errors.New("input file not found")
	// ErrTimeout carries guidance text for the agent.
	ErrTimeout = errors.New("slicer timed out; the model may be too complex or the system overloaded")
)

// Runner shells out to the slicer CLI and normalizes whatever it
// produced. No caching: every call re-invokes the external process.
type Runner struct {
	workspace   *Workspace
	timeout     time.Duration
	costPerGram float64
	logger      *slog.Logger

	// locate is swappable in tests.
	locate func() (string, error)
}

type RunnerOptions struct {
	Workspace   *Workspace
	Timeout     time.Duration
	CostPerGram float64
	Logger      *slog.Logger
	Locate      func() (string, error)
}

func NewRunner(opts RunnerOptions) *Runner {
	runner := &Runner{
		workspace:   opts.Workspace,
		timeout:     opts.Timeout,
		costPerGram: opts.CostPerGram,
		logger:      opts.Logger,
		locate:      opts.Locate,
	}
	if runner.timeout <= 0 {
		runner.timeout = DefaultTimeout
	}
	if runner.logger == nil {
		runner.logger = logging.Nop()
	}
	if runner.locate == nil {
		runner.locate = Locate
	}
	return runner
}

// SetCostPerGram adjusts cost derivation after a settings update.
func (r *Runner) SetCostPerGram(cost float64) {
	r.costPerGram = cost
}

// Slice runs the slicer on filePath, with presetPath as a settings
// override when non-empty, and returns normalized metrics. The scratch
// output directory is removed on every exit path, including timeout.
func (r *Runner) Slice(ctx context.Context, filePath, presetPath string) (*Metrics, error) {
	cliPath, err := r.locate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, filePath)
	}

	scratch, err := r.workspace.Acquire()
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	args := []string{"--slice", "0", "--export-slicedata", scratch.Dir}
	if presetPath != "" {
		args = append(args, "--load-settings", presetPath)
	}
	args = append(args, filePath)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, cliPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	r.logger.Info("slicer.invoke", "cli", cliPath, "file", filePath, "preset", presetPath)
	runErr := cmd.Run()
	elapsed := time.Since(started)

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Warn("slicer.timeout", "file", filePath, "elapsed", elapsed.String())
		return nil, fmt.Errorf("%w (limit %s)", ErrTimeout, r.timeout)
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, runErr
		}
	}
	r.logger.Debug("slicer.finished",
		"exit_code", exitCode,
		"elapsed", elapsed.String(),
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len())

	// A nonzero exit may still come with usable output, so normalization
	// always runs; only the absence of any parseable signal is fatal.
	metrics, err := Normalize(parseInput{
		outputDir: scratch.Dir,
		stdout:    stdout.String(),
		stderr:    stderr.String(),
	}, r.costPerGram, r.logger)
	if err != nil {
		if exitCode != 0 {
			return nil, fmt.Errorf("%w: slicer exited with code %d: %s", ErrNoMetrics, exitCode, firstLine(stderr.String(), stdout.String()))
		}
		return nil, err
	}
	return metrics, nil
}

func firstLine(candidates ...string) string {
	for _, text := range candidates {
		for _, line := range bytes.Split([]byte(text), []byte("\n")) {
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 {
				return string(trimmed)
			}
		}
	}
	return "no output"
}
