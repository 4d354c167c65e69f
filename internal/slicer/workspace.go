package slicer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"printbench/engine/internal/logging"
)

const scratchPrefix = "slice-"

// Workspace owns the directory tree used for slicer output. Every
// invocation gets its own uniquely named scratch subdirectory so calls
// can never collide, and releases it on every exit path.
type Workspace struct {
	root   string
	logger *slog.Logger
}

// Scratch is one acquired output directory. Release is idempotent.
type Scratch struct {
	Dir      string
	released bool
}

func NewWorkspace(root string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("workspace root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Workspace{root: root, logger: logger}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) Acquire() (*Scratch, error) {
	dir := filepath.Join(w.root, scratchPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w.logger.Debug("workspace.acquired", "dir", dir)
	return &Scratch{Dir: dir}, nil
}

func (s *Scratch) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	_ = os.RemoveAll(s.Dir)
}

// Sweep removes scratch directories left behind by a previous process
// that crashed mid-invocation. Called once at startup.
func (w *Workspace) Sweep() int {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), scratchPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.root, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		w.logger.Info("workspace.swept", "removed", removed)
	}
	return removed
}
