package preset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"printbench/engine/internal/envfile"
)

// ProfileCurrent is the pseudo-preset meaning "slice with the file's
// embedded settings, no override".
const ProfileCurrent = "current"

// Built-in preset names, in the fixed order used by comparisons.
var BuiltinNames = []string{"fast", "balanced", "strong"}

// Preset is one named bundle of slicing overrides, backed by the ini
// file handed to the slicer via --load-settings. Immutable after load.
type Preset struct {
	Name              string  `json:"name"`
	Path              string  `json:"-"`
	LayerHeight       float64 `json:"layer_height_mm"`
	InfillDensity     float64 `json:"sparse_infill_density_pct"`
	WallLoops         int     `json:"wall_loops"`
	TopShellLayers    int     `json:"top_shell_layers,omitempty"`
	BottomShellLayers int     `json:"bottom_shell_layers,omitempty"`
	InfillSpeed       float64 `json:"sparse_infill_speed,omitempty"`
}

// Catalog is the read-only preset table, built once at process start.
type Catalog struct {
	presets map[string]*Preset
}

// Load reads every built-in preset file from dir. Any preset missing or
// failing parse aborts startup: presets are a startup invariant, not a
// lazy runtime concern.
func Load(dir string) (*Catalog, error) {
	catalog := &Catalog{presets: make(map[string]*Preset, len(BuiltinNames))}
	for _, name := range BuiltinNames {
		path := filepath.Join(dir, name+".ini")
		preset, err := parseFile(name, path)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		catalog.presets[name] = preset
	}
	return catalog, nil
}

// ResolveDir locates the shipped preset files: explicit env override,
// then the working directory, then relative to the executable.
func ResolveDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("PRINTBENCH_PRESETS_DIR")); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", err
		}
		return override, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, "presets")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Clean(filepath.Join(filepath.Dir(exe), "..", "presets"))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("presets directory not found")
}

// Get returns a built-in preset. ProfileCurrent has no Preset: callers
// pass a nil override to the slicer for it.
func (c *Catalog) Get(name string) (*Preset, bool) {
	preset, ok := c.presets[name]
	return preset, ok
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(BuiltinNames)+1)
	names = append(names, ProfileCurrent)
	names = append(names, BuiltinNames...)
	return names
}

// IsValidProfile reports whether name is "current" or a built-in preset.
func (c *Catalog) IsValidProfile(name string) bool {
	if name == ProfileCurrent {
		return true
	}
	_, ok := c.presets[name]
	return ok
}

// Required keys per preset file. The remaining keys are passed through
// to the slicer untouched.
var requiredKeys = []string{"layer_height", "sparse_infill_density", "wall_loops"}

func parseFile(name, path string) (*Preset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := envfile.SplitLine(line)
		if !ok {
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, key := range requiredKeys {
		if _, ok := values[key]; !ok {
			return nil, fmt.Errorf("missing required key %q in %s", key, path)
		}
	}

	preset := &Preset{Name: name, Path: path}
	if preset.LayerHeight, err = parseFloat(values, "layer_height"); err != nil {
		return nil, err
	}
	if preset.InfillDensity, err = parseFloat(values, "sparse_infill_density"); err != nil {
		return nil, err
	}
	if preset.WallLoops, err = parseInt(values, "wall_loops"); err != nil {
		return nil, err
	}
	preset.TopShellLayers, _ = parseInt(values, "top_shell_layers")
	preset.BottomShellLayers, _ = parseInt(values, "bottom_shell_layers")
	preset.InfillSpeed, _ = parseFloat(values, "sparse_infill_speed")
	return preset, nil
}

func parseFloat(values map[string]string, key string) (float64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing key %q", key)
	}
	parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %q: %q", key, raw)
	}
	return parsed, nil
}

func parseInt(values map[string]string, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing key %q", key)
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid value for %q: %q", key, raw)
	}
	return parsed, nil
}
