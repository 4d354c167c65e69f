package project

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Fixed internal entries of a packaged project file. The primary entry
// carries the embedded print settings; the secondary one only exists on
// files that were sliced before and is never required.
const (
	printConfigEntry = "Metadata/Orca_print.config"
	sliceInfoEntry   = "Metadata/slice_info.config"
)

var (
	ErrNotFound       = errors.New("project file not found")
	ErrInvalidProject = errors.New("not a recognized project file")
)

// Metadata is the settings record extracted from a project file. Pointer
// fields are nil when the source configuration does not define the key.
// The record is produced fresh per call and never mutated afterward.
type Metadata struct {
	FilamentType     *string `json:"filament_type"`
	NozzleDiameter   *string `json:"nozzle_diameter"`
	LayerHeight      *string `json:"layer_height"`
	InfillDensity    *string `json:"infill_density"`
	WallLoops        *int    `json:"wall_loops"`
	SupportEnabled   *bool   `json:"support_enabled"`
	PreviouslySliced bool    `json:"previously_sliced"`
	LastEstimate     *string `json:"last_estimate"`
}

type configDocument struct {
	XMLName xml.Name       `xml:"config"`
	Options []configOption `xml:"option"`
}

type configOption struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// Extract reads the embedded print settings out of a packaged project
// file. Pure parsing: no process or network calls.
func Extract(filePath string) (*Metadata, error) {
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, filePath, err)
	}
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid archive", ErrInvalidProject, filePath)
	}
	defer archive.Close()

	meta := &Metadata{}

	configRaw, err := readEntry(&archive.Reader, printConfigEntry)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidProject, printConfigEntry)
	}
	var doc configDocument
	if err := xml.Unmarshal(configRaw, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed %s: %v", ErrInvalidProject, printConfigEntry, err)
	}
	for _, option := range doc.Options {
		applyOption(meta, option.Key, strings.TrimSpace(option.Value))
	}

	// The slice-info entry is opportunistic: absent or unparsable means
	// previously_sliced=false, never an error.
	if infoRaw, err := readEntry(&archive.Reader, sliceInfoEntry); err == nil {
		meta.PreviouslySliced = true
		meta.LastEstimate = extractTimeEstimate(string(infoRaw))
	}

	return meta, nil
}

func applyOption(meta *Metadata, key, value string) {
	if value == "" {
		return
	}
	switch key {
	case "filament_type":
		meta.FilamentType = &value
	case "nozzle_diameter":
		suffixed := value + "mm"
		meta.NozzleDiameter = &suffixed
	case "layer_height":
		suffixed := value + "mm"
		meta.LayerHeight = &suffixed
	case "sparse_infill_density":
		if density, err := strconv.ParseFloat(value, 64); err == nil {
			formatted := strconv.FormatFloat(density, 'f', -1, 64) + "%"
			meta.InfillDensity = &formatted
		}
	case "wall_loops":
		if loops, err := strconv.Atoi(value); err == nil {
			meta.WallLoops = &loops
		}
	case "support_enable":
		enabled := isTruthy(value)
		meta.SupportEnabled = &enabled
	}
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func readEntry(archive *zip.Reader, name string) ([]byte, error) {
	file, err := archive.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

var timeEstimatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*h(?:ours?)?\s*(\d+)\s*m(?:in(?:utes?)?)?`),
	regexp.MustCompile(`(?i)(\d+)\s*h(?:ours?)?`),
	regexp.MustCompile(`(?i)(\d+)\s*m(?:in(?:utes?)?)?`),
}

// extractTimeEstimate pulls a rough "1h 15m" style estimate out of the
// slice-info text when one is present.
func extractTimeEstimate(text string) *string {
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(strings.ToLower(line), "time") {
			continue
		}
		if match := timeEstimatePatterns[0].FindStringSubmatch(line); match != nil {
			estimate := match[1] + "h " + match[2] + "m"
			return &estimate
		}
		if match := timeEstimatePatterns[1].FindStringSubmatch(line); match != nil {
			estimate := match[1] + "h"
			return &estimate
		}
		if match := timeEstimatePatterns[2].FindStringSubmatch(line); match != nil {
			estimate := match[1] + "m"
			return &estimate
		}
	}
	return nil
}
