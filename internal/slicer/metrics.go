package slicer

import "fmt"

// Metrics is the canonical per-slice estimate record. Output units are
// fixed regardless of what the slicer emitted: minutes for time, grams
// for weight, meters for length, base currency units for cost.
type Metrics struct {
	EstimatedTimeMinutes   float64  `json:"estimated_time_minutes"`
	EstimatedTimeFormatted string   `json:"estimated_time_formatted"`
	FilamentWeightGrams    *float64 `json:"filament_weight_grams"`
	FilamentLengthMeters   *float64 `json:"filament_length_meters"`
	EstimatedCost          *float64 `json:"estimated_cost"`
	Warnings               []string `json:"warnings"`
}

// Unit conversion constants for normalizing slicer output.
const (
	secondsPerMinute    = 60.0
	minutesPerHour      = 60.0
	millimetersPerMeter = 1000.0
)

// FormatMinutes renders a minute count as "1h 15m" style text.
func FormatMinutes(minutes float64) string {
	hours := int(minutes) / 60
	mins := int(minutes) % 60
	switch {
	case hours > 0 && mins > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
