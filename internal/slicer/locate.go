package slicer

import (
	"errors"
	"os"
	"os/exec"
	"strings"
)

// ErrNotInstalled means no slicer CLI could be discovered. Operations
// that shell out fail fast with this before any invocation is attempted.
var ErrNotInstalled = errors.New("slicer CLI not found")

// Known binary names for the OrcaSlicer CLI across platforms.
var cliCandidates = []string{"orca-slicer", "orcaslicer", "OrcaSlicer"}

// Locate resolves the slicer executable: explicit PRINTBENCH_SLICER_PATH
// override first, then a PATH search over the known names.
func Locate() (string, error) {
	if override := strings.TrimSpace(os.Getenv("PRINTBENCH_SLICER_PATH")); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", err
		}
		return override, nil
	}
	for _, name := range cliCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNotInstalled
}
