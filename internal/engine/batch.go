package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"printbench/engine/internal/errinfo"
	"printbench/engine/internal/preset"
	"printbench/engine/internal/slicer"
)

const (
	hoursPerDay    = 24.0
	minutesPerHour = 60.0
	gramsPerKilo   = 1000.0
)

type batchParams struct {
	FilePath string   `json:"file_path"`
	Quantity *float64 `json:"quantity"`
	Profile  string   `json:"profile"`
}

type batchResult struct {
	Quantity            int      `json:"quantity"`
	Profile             string   `json:"profile"`
	TotalTimeMinutes    float64  `json:"total_time_minutes"`
	TotalTimeHours      float64  `json:"total_time_hours"`
	TotalTimeFormatted  string   `json:"total_time_formatted"`
	PerUnitTime         string   `json:"per_unit_time"`
	TotalFilamentKg     *float64 `json:"total_filament_kg"`
	TotalCost           *float64 `json:"total_cost"`
	Currency            string   `json:"currency"`
	ComparisonVsCurrent string   `json:"comparison_vs_current"`
	TimeDeltaVsCurrent  *float64 `json:"time_delta_vs_current_minutes,omitempty"`
}

// PrintBatchMetrics scales one profile's per-unit metrics to a batch of
// quantity units and reports the signed time delta versus slicing the
// same batch with current settings.
func (e *Engine) PrintBatchMetrics(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req batchParams
	if errInfo := decodeParams(params, &req); errInfo != nil {
		errInfo.Phase = errinfo.PhaseBatch
		return nil, errInfo
	}
	if req.Quantity == nil {
		return nil, errinfo.InvalidInput(errinfo.PhaseBatch, "quantity is required")
	}
	if *req.Quantity <= 0 || *req.Quantity != math.Trunc(*req.Quantity) {
		return nil, errinfo.InvalidInput(errinfo.PhaseBatch,
			fmt.Sprintf("quantity must be a positive integer, got %v", *req.Quantity))
	}
	quantity := int(*req.Quantity)
	if req.Profile == "" {
		req.Profile = preset.ProfileCurrent
	}
	if !e.catalog.IsValidProfile(req.Profile) {
		return nil, errinfo.InvalidInput(errinfo.PhaseBatch,
			fmt.Sprintf("unknown profile %q; valid profiles: %v", req.Profile, e.catalog.Names()))
	}

	// The baseline always runs once; for "current" it doubles as the
	// requested profile so the file is sliced a single time.
	baseline, errInfo := e.sliceProfile(ctx, errinfo.PhaseBatch, req.FilePath, preset.ProfileCurrent)
	if errInfo != nil {
		return nil, errInfo
	}
	unit := baseline
	if req.Profile != preset.ProfileCurrent {
		unit, errInfo = e.sliceProfile(ctx, errinfo.PhaseBatch, req.FilePath, req.Profile)
		if errInfo != nil {
			return nil, errInfo
		}
	}

	qty := float64(quantity)
	totalMinutes := unit.EstimatedTimeMinutes * qty
	result := batchResult{
		Quantity:           quantity,
		Profile:            req.Profile,
		TotalTimeMinutes:   totalMinutes,
		TotalTimeHours:     roundTenth(totalMinutes / minutesPerHour),
		TotalTimeFormatted: formatBatchDuration(totalMinutes),
		PerUnitTime:        slicer.FormatMinutes(unit.EstimatedTimeMinutes),
		Currency:           e.settings.Currency,
	}
	if unit.FilamentWeightGrams != nil {
		kg := roundCents(*unit.FilamentWeightGrams * qty / gramsPerKilo)
		result.TotalFilamentKg = &kg
	}
	if unit.EstimatedCost != nil {
		cost := roundCents(*unit.EstimatedCost * qty)
		result.TotalCost = &cost
	}

	if req.Profile == preset.ProfileCurrent {
		result.ComparisonVsCurrent = "baseline"
	} else {
		delta := (unit.EstimatedTimeMinutes - baseline.EstimatedTimeMinutes) * qty
		result.TimeDeltaVsCurrent = &delta
		result.ComparisonVsCurrent = fmt.Sprintf("%s vs. current settings", formatSignedMinutes(delta))
	}

	e.logger.Info("batch.done",
		"file", req.FilePath,
		"quantity", quantity,
		"profile", req.Profile,
		"total_minutes", totalMinutes)
	return result, nil
}

// formatBatchDuration renders a batch total: days and hours once the
// run crosses a day, fractional hours below that.
func formatBatchDuration(totalMinutes float64) string {
	totalHours := totalMinutes / minutesPerHour
	if totalHours >= hoursPerDay {
		days := int(totalHours / hoursPerDay)
		hours := int(totalHours) % int(hoursPerDay)
		dayWord := "days"
		if days == 1 {
			dayWord = "day"
		}
		return fmt.Sprintf("%d %s, %d hours", days, dayWord, hours)
	}
	return fmt.Sprintf("%.1f hours", totalHours)
}

func formatSignedMinutes(minutes float64) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return sign + slicer.FormatMinutes(minutes)
}

func roundTenth(value float64) float64 {
	return math.Round(value*10) / 10
}

func roundCents(value float64) float64 {
	return math.Round(value*100) / 100
}
