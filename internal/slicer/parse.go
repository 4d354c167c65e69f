package slicer

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"printbench/engine/internal/logging"
)

// ErrNoMetrics means neither parsing strategy produced a time estimate.
// A metrics record without a time value is unusable.
var ErrNoMetrics = errors.New("no usable metrics in slicer output")

const maxWarnings = 5

// parseInput is everything a strategy may look at: the scratch output
// directory plus the raw text streams.
type parseInput struct {
	outputDir string
	stdout    string
	stderr    string
}

// strategy is one ordered parsing attempt. ok=false means "this source
// had nothing usable, try the next one"; it is not an error.
type strategy struct {
	name  string
	parse func(in parseInput) (*Metrics, bool)
}

// The structured result file is authoritative when present; free-text
// extraction is the fallback.
var strategies = []strategy{
	{name: "result_file", parse: parseResultFile},
	{name: "text_output", parse: parseTextOutput},
}

// Normalize turns raw invocation output into a canonical Metrics record
// by running the parsing strategies in order.
func Normalize(in parseInput, costPerGram float64, logger *slog.Logger) (*Metrics, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	for _, s := range strategies {
		metrics, ok := s.parse(in)
		if !ok {
			continue
		}
		logger.Debug("normalize.parsed", "strategy", s.name)
		finishMetrics(metrics, in, costPerGram)
		return metrics, nil
	}
	return nil, ErrNoMetrics
}

func finishMetrics(m *Metrics, in parseInput, costPerGram float64) {
	m.EstimatedTimeFormatted = FormatMinutes(m.EstimatedTimeMinutes)
	if m.EstimatedCost == nil && m.FilamentWeightGrams != nil && costPerGram > 0 {
		cost := roundCents(*m.FilamentWeightGrams * costPerGram)
		m.EstimatedCost = &cost
	}
	if len(m.Warnings) == 0 {
		m.Warnings = harvestWarnings(in.stdout + "\n" + in.stderr)
	}
	if m.Warnings == nil {
		m.Warnings = []string{}
	}
}

// resultFilePayload accepts both known structured schemas: the canonical
// key set, and the slicedata shape (prediction in seconds, weight in
// grams, length in millimeters).
type resultFilePayload struct {
	EstimatedTimeMinutes *float64 `json:"estimated_time_minutes"`
	TimeMinutes          *float64 `json:"time_minutes"`
	FilamentWeightGrams  *float64 `json:"filament_weight_grams"`
	WeightGrams          *float64 `json:"weight_grams"`
	FilamentLengthMeters *float64 `json:"filament_length_meters"`
	LengthMeters         *float64 `json:"length_meters"`
	Cost                 *float64 `json:"cost"`
	Warnings             []string `json:"warnings"`

	PredictionSeconds *float64 `json:"prediction"`
	Weight            *float64 `json:"weight"`
	LengthMillimeters *float64 `json:"filament_length_mm"`
}

func parseResultFile(in parseInput) (*Metrics, bool) {
	paths, err := filepath.Glob(filepath.Join(in.outputDir, "*.json"))
	if err != nil || len(paths) == 0 {
		return nil, false
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var payload resultFilePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			continue
		}
		metrics, ok := metricsFromPayload(payload)
		if ok {
			return metrics, true
		}
	}
	return nil, false
}

func metricsFromPayload(payload resultFilePayload) (*Metrics, bool) {
	m := &Metrics{Warnings: payload.Warnings}

	switch {
	case payload.EstimatedTimeMinutes != nil:
		m.EstimatedTimeMinutes = *payload.EstimatedTimeMinutes
	case payload.TimeMinutes != nil:
		m.EstimatedTimeMinutes = *payload.TimeMinutes
	case payload.PredictionSeconds != nil:
		m.EstimatedTimeMinutes = *payload.PredictionSeconds / secondsPerMinute
	default:
		return nil, false
	}

	switch {
	case payload.FilamentWeightGrams != nil:
		m.FilamentWeightGrams = payload.FilamentWeightGrams
	case payload.WeightGrams != nil:
		m.FilamentWeightGrams = payload.WeightGrams
	case payload.Weight != nil:
		m.FilamentWeightGrams = payload.Weight
	}

	switch {
	case payload.FilamentLengthMeters != nil:
		m.FilamentLengthMeters = payload.FilamentLengthMeters
	case payload.LengthMeters != nil:
		m.FilamentLengthMeters = payload.LengthMeters
	case payload.LengthMillimeters != nil:
		meters := *payload.LengthMillimeters / millimetersPerMeter
		m.FilamentLengthMeters = &meters
	}

	if payload.Cost != nil {
		m.EstimatedCost = payload.Cost
	}
	return m, true
}

// One clock pattern covers both known textual formats: the terse
// "estimated time: 1h 15m" style and the verbose
// "Estimated printing time (normal mode): 2h 30m 10s" style.
var timePattern = regexp.MustCompile(
	`(?im)^.*?\btime\b[^:\n]*:\s*` +
		`(?:(\d+)\s*h(?:ours?)?)?\s*` +
		`(?:(\d+)\s*m(?:in(?:utes?)?)?\b)?\s*` +
		`(?:(\d+)\s*s(?:ec(?:onds?)?)?\b)?`)

var weightPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:total\s+)?filament\s+(?:weight|used)\s*\[g\]\s*[:=]\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)(?:total\s+)?filament\s+weight\s*[:=]\s*(\d+(?:\.\d+)?)\s*g(?:rams?)?\b`),
	regexp.MustCompile(`(?i)\bweight\s*[:=]\s*(\d+(?:\.\d+)?)\s*g(?:rams?)?\b`),
}

var lengthPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)filament\s+(?:used|length)\s*\[mm\]\s*[:=]\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)filament\s+length\s*[:=]\s*(\d+(?:\.\d+)?)\s*m(?:eters?)?\b`),
	regexp.MustCompile(`(?i)\blength\s*[:=]\s*(\d+(?:\.\d+)?)\s*m(?:eters?)?\b`),
}

var costPattern = regexp.MustCompile(`(?i)\bcost\s*[:=]\s*\$?(\d+(?:\.\d+)?)`)

func parseTextOutput(in parseInput) (*Metrics, bool) {
	combined := in.stdout + "\n" + in.stderr

	minutes, ok := extractClock(combined)
	if !ok {
		return nil, false
	}
	m := &Metrics{EstimatedTimeMinutes: minutes}

	if value, ok := firstFloat(weightPatterns, combined); ok {
		m.FilamentWeightGrams = &value
	}

	// The "[mm]" labelled format comes first so millimeter values are
	// converted rather than misread as meters.
	if value, ok := firstFloat(lengthPatterns[:1], combined); ok {
		meters := value / millimetersPerMeter
		m.FilamentLengthMeters = &meters
	} else if value, ok := firstFloat(lengthPatterns[1:], combined); ok {
		m.FilamentLengthMeters = &value
	}

	if match := costPattern.FindStringSubmatch(combined); match != nil {
		if value, ok := parseMatchFloat(match[1]); ok {
			m.EstimatedCost = &value
		}
	}
	return m, true
}

func extractClock(text string) (float64, bool) {
	for _, match := range timePattern.FindAllStringSubmatch(text, -1) {
		hours, hasHours := parseMatchFloat(match[1])
		mins, hasMins := parseMatchFloat(match[2])
		secs, hasSecs := parseMatchFloat(match[3])
		if !hasHours && !hasMins && !hasSecs {
			continue
		}
		return hours*minutesPerHour + mins + secs/secondsPerMinute, true
	}
	return 0, false
}

func firstFloat(patterns []*regexp.Regexp, text string) (float64, bool) {
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			if value, ok := parseMatchFloat(match[1]); ok {
				return value, true
			}
		}
	}
	return 0, false
}

func parseMatchFloat(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func harvestWarnings(text string) []string {
	var warnings []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "warning") || strings.Contains(lower, "error") {
			warnings = append(warnings, trimmed)
			if len(warnings) >= maxWarnings {
				break
			}
		}
	}
	return warnings
}

func roundCents(value float64) float64 {
	return math.Round(value*100) / 100
}
