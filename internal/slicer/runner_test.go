package slicer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// fakeSlicer writes a shell script that mimics the CLI and returns its
// path. Output directory is the argument following --export-slicedata.
func fakeSlicer(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake slicer scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-slicer")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func newTestRunner(t *testing.T, cliPath string, timeout time.Duration) (*Runner, *Workspace) {
	t.Helper()
	ws, err := NewWorkspace(filepath.Join(t.TempDir(), "workspace"), nil)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	runner := NewRunner(RunnerOptions{
		Workspace:   ws,
		Timeout:     timeout,
		CostPerGram: 0.03,
		Locate:      func() (string, error) { return cliPath, nil },
	})
	return runner, ws
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.3mf")
	if err := os.WriteFile(path, []byte("stub"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func scratchCount(t *testing.T, ws *Workspace) int {
	t.Helper()
	entries, err := os.ReadDir(ws.Root())
	if err != nil {
		t.Fatalf("read workspace: %v", err)
	}
	return len(entries)
}

func TestSliceParsesTextOutput(t *testing.T) {
	cli := fakeSlicer(t, `echo "estimated time: 1h 15m"
echo "filament weight: 12.5g"
`)
	runner, ws := newTestRunner(t, cli, 0)

	metrics, err := runner.Slice(context.Background(), writeInput(t), "")
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if metrics.EstimatedTimeMinutes != 75 {
		t.Fatalf("expected 75 minutes, got %v", metrics.EstimatedTimeMinutes)
	}
	if metrics.FilamentWeightGrams == nil || *metrics.FilamentWeightGrams != 12.5 {
		t.Fatalf("expected weight 12.5, got %v", metrics.FilamentWeightGrams)
	}
	if got := scratchCount(t, ws); got != 0 {
		t.Fatalf("expected scratch cleaned up, %d entries left", got)
	}
}

func TestSlicePrefersResultArtifact(t *testing.T) {
	// $4 is the value after --export-slicedata in the fixed argv shape.
	cli := fakeSlicer(t, `out="$4"
echo '{"estimated_time_minutes": 90, "filament_weight_grams": 20}' > "$out/plate_1.json"
echo "estimated time: 5m"
`)
	runner, ws := newTestRunner(t, cli, 0)

	metrics, err := runner.Slice(context.Background(), writeInput(t), "")
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if metrics.EstimatedTimeMinutes != 90 {
		t.Fatalf("expected artifact to win with 90 minutes, got %v", metrics.EstimatedTimeMinutes)
	}
	if got := scratchCount(t, ws); got != 0 {
		t.Fatalf("expected scratch cleaned up, %d entries left", got)
	}
}

func TestSlicePassesPresetOverride(t *testing.T) {
	// With --load-settings the input file is the last argument; echo the
	// argv so the test can assert the flag made it through.
	cli := fakeSlicer(t, `echo "args: $@"
echo "estimated time: 30m"
`)
	runner, _ := newTestRunner(t, cli, 0)
	presetPath := filepath.Join(t.TempDir(), "fast.ini")
	if err := os.WriteFile(presetPath, []byte("layer_height = 0.28\n"), 0o600); err != nil {
		t.Fatalf("write preset: %v", err)
	}

	metrics, err := runner.Slice(context.Background(), writeInput(t), presetPath)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if metrics.EstimatedTimeMinutes != 30 {
		t.Fatalf("expected 30 minutes, got %v", metrics.EstimatedTimeMinutes)
	}
}

func TestSliceTimeout(t *testing.T) {
	cli := fakeSlicer(t, "sleep 30\n")
	runner, ws := newTestRunner(t, cli, 500*time.Millisecond)

	started := time.Now()
	_, err := runner.Slice(context.Background(), writeInput(t), "")
	elapsed := time.Since(started)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("expected prompt termination, took %s", elapsed)
	}
	if got := scratchCount(t, ws); got != 0 {
		t.Fatalf("expected scratch cleaned up after timeout, %d entries left", got)
	}
}

func TestSliceMissingExecutable(t *testing.T) {
	ws, err := NewWorkspace(filepath.Join(t.TempDir(), "workspace"), nil)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	runner := NewRunner(RunnerOptions{
		Workspace: ws,
		Locate:    func() (string, error) { return "", ErrNotInstalled },
	})

	_, err = runner.Slice(context.Background(), writeInput(t), "")
	if !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
}

func TestSliceMissingInputFile(t *testing.T) {
	cli := fakeSlicer(t, "echo nothing\n")
	runner, _ := newTestRunner(t, cli, 0)

	_, err := runner.Slice(context.Background(), filepath.Join(t.TempDir(), "gone.3mf"), "")
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("expected ErrInputNotFound, got %v", err)
	}
}

func TestSliceNonzeroExitStillParses(t *testing.T) {
	cli := fakeSlicer(t, `echo "estimated time: 45m"
exit 3
`)
	runner, _ := newTestRunner(t, cli, 0)

	metrics, err := runner.Slice(context.Background(), writeInput(t), "")
	if err != nil {
		t.Fatalf("expected partial output to parse, got %v", err)
	}
	if metrics.EstimatedTimeMinutes != 45 {
		t.Fatalf("expected 45 minutes, got %v", metrics.EstimatedTimeMinutes)
	}
}

func TestSliceNonzeroExitWithoutSignal(t *testing.T) {
	cli := fakeSlicer(t, `echo "boom" >&2
exit 1
`)
	runner, ws := newTestRunner(t, cli, 0)

	_, err := runner.Slice(context.Background(), writeInput(t), "")
	if !errors.Is(err, ErrNoMetrics) {
		t.Fatalf("expected ErrNoMetrics, got %v", err)
	}
	if got := scratchCount(t, ws); got != 0 {
		t.Fatalf("expected scratch cleaned up on failure, %d entries left", got)
	}
}
