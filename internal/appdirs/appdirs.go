package appdirs

import (
	"os"
	"path/filepath"
)

const (
	appDirName = "printbench"
)

func DataDir() (string, error) {
	if override := os.Getenv("PRINTBENCH_DATA_DIR"); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

// WorkspaceDir holds per-invocation slicer scratch directories.
func WorkspaceDir(dataDir string) string {
	return filepath.Join(dataDir, "workspace")
}
