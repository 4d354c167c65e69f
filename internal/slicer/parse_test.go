package slicer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePrefersResultFile(t *testing.T) {
	dir := t.TempDir()
	artifact := `{
  "estimated_time_minutes": 75,
  "filament_weight_grams": 12.5,
  "filament_length_meters": 4.2,
  "warnings": ["thin wall detected"]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plate_1.json"), []byte(artifact), 0o600))

	// Text output disagrees on purpose; the result file is authoritative.
	in := parseInput{outputDir: dir, stdout: "estimated time: 10m\n"}
	metrics, err := Normalize(in, 0.03, nil)
	require.NoError(t, err)
	require.Equal(t, 75.0, metrics.EstimatedTimeMinutes)
	require.Equal(t, "1h 15m", metrics.EstimatedTimeFormatted)
	require.NotNil(t, metrics.FilamentWeightGrams)
	require.Equal(t, 12.5, *metrics.FilamentWeightGrams)
	require.NotNil(t, metrics.FilamentLengthMeters)
	require.Equal(t, 4.2, *metrics.FilamentLengthMeters)
	require.NotNil(t, metrics.EstimatedCost)
	require.InDelta(t, 0.38, *metrics.EstimatedCost, 1e-9)
	require.Equal(t, []string{"thin wall detected"}, metrics.Warnings)
}

func TestNormalizeAcceptsSlicedataSchema(t *testing.T) {
	dir := t.TempDir()
	artifact := `{"prediction": 4500, "weight": 12.5, "filament_length_mm": 4200}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slicedata.json"), []byte(artifact), 0o600))

	metrics, err := Normalize(parseInput{outputDir: dir}, 0.03, nil)
	require.NoError(t, err)
	require.Equal(t, 75.0, metrics.EstimatedTimeMinutes)
	require.Equal(t, 12.5, *metrics.FilamentWeightGrams)
	require.Equal(t, 4.2, *metrics.FilamentLengthMeters)
}

func TestNormalizeFallsBackToTextOnBadResultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o600))

	in := parseInput{outputDir: dir, stdout: "estimated time: 1h 15m\nfilament weight: 12.5g\n"}
	metrics, err := Normalize(in, 0.03, nil)
	require.NoError(t, err)
	require.Equal(t, 75.0, metrics.EstimatedTimeMinutes)
	require.Equal(t, 12.5, *metrics.FilamentWeightGrams)
}

func TestNormalizeTextFormats(t *testing.T) {
	cases := []struct {
		name        string
		output      string
		wantMinutes float64
	}{
		{
			name:        "terse format",
			output:      "slicing...\nestimated time: 1h 15m\nfilament weight: 12.5g\nfilament length: 4.2m\n",
			wantMinutes: 75,
		},
		{
			name:        "verbose format with seconds",
			output:      "Estimated printing time (normal mode): 2h 30m 30s\ntotal filament used [g] : 40.1\nfilament used [mm] : 13300.5\n",
			wantMinutes: 150.5,
		},
		{
			name:        "minutes only",
			output:      "print time: 45m\n",
			wantMinutes: 45,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metrics, err := Normalize(parseInput{outputDir: t.TempDir(), stdout: tc.output}, 0.03, nil)
			require.NoError(t, err)
			require.InDelta(t, tc.wantMinutes, metrics.EstimatedTimeMinutes, 1e-9)
		})
	}
}

func TestNormalizeTextEquivalentToResultFile(t *testing.T) {
	// Same underlying values through both strategies must agree.
	dir := t.TempDir()
	artifact := `{"estimated_time_minutes": 75, "filament_weight_grams": 12.5}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.json"), []byte(artifact), 0o600))
	fromFile, err := Normalize(parseInput{outputDir: dir}, 0.03, nil)
	require.NoError(t, err)

	fromText, err := Normalize(parseInput{
		outputDir: t.TempDir(),
		stdout:    "estimated time: 1h 15m\nfilament weight: 12.5g\n",
	}, 0.03, nil)
	require.NoError(t, err)

	require.Equal(t, fromFile.EstimatedTimeMinutes, fromText.EstimatedTimeMinutes)
	require.Equal(t, *fromFile.FilamentWeightGrams, *fromText.FilamentWeightGrams)
	require.Equal(t, *fromFile.EstimatedCost, *fromText.EstimatedCost)
}

func TestNormalizeFailsWithoutTime(t *testing.T) {
	in := parseInput{outputDir: t.TempDir(), stdout: "filament weight: 12.5g\n"}
	_, err := Normalize(in, 0.03, nil)
	require.ErrorIs(t, err, ErrNoMetrics)
}

func TestNormalizeHarvestsWarnings(t *testing.T) {
	output := "estimated time: 30m\nWARNING: thin wall\nerror: unsupported overhang\nall good\n"
	metrics, err := Normalize(parseInput{outputDir: t.TempDir(), stdout: output}, 0, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"WARNING: thin wall", "error: unsupported overhang"}, metrics.Warnings)
}

func TestNormalizeDefaultsWarningsToEmptyList(t *testing.T) {
	metrics, err := Normalize(parseInput{outputDir: t.TempDir(), stdout: "estimated time: 30m\n"}, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, metrics.Warnings)
	require.Empty(t, metrics.Warnings)
}

func TestFormatMinutes(t *testing.T) {
	cases := map[float64]string{
		75:  "1h 15m",
		60:  "1h",
		45:  "45m",
		0:   "0m",
		125: "2h 5m",
	}
	for minutes, want := range cases {
		require.Equal(t, want, FormatMinutes(minutes))
	}
}
