package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"printbench/engine/internal/errinfo"
	"printbench/engine/internal/preset"
	"printbench/engine/internal/slicer"
)

// ProfileOutcome is one row of a comparison: either metrics or a
// structured error, never both.
type ProfileOutcome struct {
	Profile string             `json:"profile"`
	Metrics *slicer.Metrics    `json:"metrics,omitempty"`
	Error   *errinfo.ErrorInfo `json:"error,omitempty"`
}

type compareResult struct {
	Profiles       []ProfileOutcome `json:"profiles"`
	Recommendation string           `json:"recommendation"`
	Currency       string           `json:"currency"`
}

// PrintCompareProfiles slices the file once per profile in the fixed
// order current, fast, balanced, strong. One profile failing does not
// abort the comparison; its row carries the error instead of metrics.
func (e *Engine) PrintCompareProfiles(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req fileParams
	if errInfo := decodeParams(params, &req); errInfo != nil {
		errInfo.Phase = errinfo.PhaseCompare
		return nil, errInfo
	}

	profiles := append([]string{preset.ProfileCurrent}, preset.BuiltinNames...)
	outcomes := make([]ProfileOutcome, 0, len(profiles))
	for _, profile := range profiles {
		e.notify("CompareProgress", map[string]any{"profile": profile})
		metrics, errInfo := e.sliceProfile(ctx, errinfo.PhaseCompare, req.FilePath, profile)
		if errInfo != nil {
			e.logger.Warn("compare.profile_failed", "profile", profile, "code", errInfo.ErrorCode)
			outcomes = append(outcomes, ProfileOutcome{Profile: profile, Error: errInfo.WithProfile(profile)})
			continue
		}
		e.logger.Info("compare.profile_done", "profile", profile, "minutes", metrics.EstimatedTimeMinutes)
		outcomes = append(outcomes, ProfileOutcome{Profile: profile, Metrics: metrics})
	}

	result := compareResult{
		Profiles:       outcomes,
		Recommendation: recommend(outcomes),
		Currency:       e.settings.Currency,
	}
	return result, nil
}

// recommend picks the lowest-time successful preset (excluding the
// baseline) and words its delta against current as a saving or a cost.
func recommend(outcomes []ProfileOutcome) string {
	var baseline *slicer.Metrics
	var bestName string
	var best *slicer.Metrics
	for _, outcome := range outcomes {
		if outcome.Metrics == nil {
			continue
		}
		if outcome.Profile == preset.ProfileCurrent {
			baseline = outcome.Metrics
			continue
		}
		if best == nil || outcome.Metrics.EstimatedTimeMinutes < best.EstimatedTimeMinutes {
			best = outcome.Metrics
			bestName = outcome.Profile
		}
	}

	if best == nil {
		return "No comparison is available: none of the presets produced usable metrics."
	}
	if baseline == nil {
		return fmt.Sprintf(
			"Current settings could not be sliced; among the presets, %s is fastest at %s per unit.",
			bestName, slicer.FormatMinutes(best.EstimatedTimeMinutes))
	}

	delta := baseline.EstimatedTimeMinutes - best.EstimatedTimeMinutes
	switch {
	case delta > 0:
		return fmt.Sprintf(
			"Use the %s preset: it saves %s per unit versus current settings.",
			bestName, slicer.FormatMinutes(delta))
	case delta < 0:
		return fmt.Sprintf(
			"Keep current settings: the fastest preset (%s) adds %s per unit.",
			bestName, slicer.FormatMinutes(-delta))
	default:
		return fmt.Sprintf(
			"Current settings and the %s preset take the same time per unit; choose by quality needs.",
			bestName)
	}
}
