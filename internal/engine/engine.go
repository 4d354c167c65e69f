package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"printbench/engine/internal/errinfo"
	"printbench/engine/internal/logging"
	"printbench/engine/internal/preset"
	"printbench/engine/internal/project"
	"printbench/engine/internal/settings"
	"printbench/engine/internal/slicer"
)

const (
	EngineVersion = "0.1.0"
	APIVersion    = "1"
)

// SliceRunner is the slicing pipeline the calculators drive. The real
// implementation shells out to the external CLI; tests substitute stubs.
type SliceRunner interface {
	Slice(ctx context.Context, filePath, presetPath string) (*slicer.Metrics, error)
}

// Engine wires the preset catalog, settings store and slicer pipeline
// behind the RPC operations. Every record it returns is built fresh per
// request; the catalog is the only state shared across calls and it is
// read-only.
type Engine struct {
	logger   *slog.Logger
	catalog  *preset.Catalog
	store    *settings.Store
	runner   SliceRunner
	locate   func() (string, error)
	settings *settings.Settings
	notifier func(method string, params any)
}

type Config struct {
	Catalog *preset.Catalog
	Store   *settings.Store
	Runner  SliceRunner
	Logger  *slog.Logger
	// Locate is swappable in tests; defaults to slicer.Locate.
	Locate func() (string, error)
}

func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("engine requires a preset catalog")
	}
	if cfg.Runner == nil {
		return nil, errors.New("engine requires a slice runner")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	locate := cfg.Locate
	if locate == nil {
		locate = slicer.Locate
	}
	eng := &Engine{
		logger:  logger,
		catalog: cfg.Catalog,
		store:   cfg.Store,
		runner:  cfg.Runner,
		locate:  locate,
	}
	if cfg.Store != nil {
		loaded, err := cfg.Store.Load()
		if err != nil {
			return nil, err
		}
		eng.settings = loaded
	} else {
		eng.settings = &settings.Settings{}
	}
	return eng, nil
}

func (e *Engine) SetNotifier(fn func(method string, params any)) {
	e.notifier = fn
}

func (e *Engine) notify(method string, params any) {
	if e.notifier != nil {
		e.notifier(method, params)
	}
}

type fileParams struct {
	FilePath string `json:"file_path"`
}

func decodeParams(params json.RawMessage, target any) *errinfo.ErrorInfo {
	if len(params) == 0 {
		return errinfo.InvalidInput("", "missing params")
	}
	if err := json.Unmarshal(params, target); err != nil {
		return errinfo.InvalidInput("", "invalid params: "+err.Error())
	}
	return nil
}

type engineInfo struct {
	EngineVersion string   `json:"engine_version"`
	APIVersion    string   `json:"api_version"`
	SlicerFound   bool     `json:"slicer_found"`
	SlicerPath    string   `json:"slicer_path,omitempty"`
	Profiles      []string `json:"profiles"`
	Currency      string   `json:"currency"`
}

func (e *Engine) EngineGetInfo(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	_ = ctx
	_ = params
	info := engineInfo{
		EngineVersion: EngineVersion,
		APIVersion:    APIVersion,
		Profiles:      e.catalog.Names(),
		Currency:      e.settings.Currency,
	}
	if path, err := e.locate(); err == nil {
		info.SlicerFound = true
		info.SlicerPath = path
	}
	return info, nil
}

type slicerStatus struct {
	Found  bool   `json:"found"`
	Path   string `json:"path,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (e *Engine) SlicerGetStatus(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	_ = ctx
	_ = params
	path, err := e.locate()
	if err != nil {
		return slicerStatus{Found: false, Detail: err.Error()}, nil
	}
	return slicerStatus{Found: true, Path: path}, nil
}

// ProjectGetMetadata reads embedded settings from a project file. It
// never invokes the slicer, so it works with no CLI installed.
func (e *Engine) ProjectGetMetadata(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	_ = ctx
	var req fileParams
	if errInfo := decodeParams(params, &req); errInfo != nil {
		errInfo.Phase = errinfo.PhaseMetadata
		return nil, errInfo
	}
	meta, err := project.Extract(req.FilePath)
	if err != nil {
		return nil, mapProjectError(errinfo.PhaseMetadata, err)
	}
	e.logger.Info("metadata.extracted", "file", req.FilePath, "previously_sliced", meta.PreviouslySliced)
	return meta, nil
}

type analyzeResult struct {
	Profile  string          `json:"profile"`
	Metrics  *slicer.Metrics `json:"metrics"`
	Currency string          `json:"currency"`
}

// PrintAnalyze slices the file as-is and returns baseline metrics.
func (e *Engine) PrintAnalyze(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req fileParams
	if errInfo := decodeParams(params, &req); errInfo != nil {
		errInfo.Phase = errinfo.PhaseSlice
		return nil, errInfo
	}
	metrics, errInfo := e.sliceProfile(ctx, errinfo.PhaseSlice, req.FilePath, preset.ProfileCurrent)
	if errInfo != nil {
		return nil, errInfo
	}
	e.logger.Info("analyze.done", "file", req.FilePath, "minutes", metrics.EstimatedTimeMinutes)
	return analyzeResult{Profile: preset.ProfileCurrent, Metrics: metrics, Currency: e.settings.Currency}, nil
}

// sliceProfile runs the pipeline once for a named profile, mapping the
// profile to its override file ("current" has none).
func (e *Engine) sliceProfile(ctx context.Context, phase, filePath, profile string) (*slicer.Metrics, *errinfo.ErrorInfo) {
	presetPath := ""
	if profile != preset.ProfileCurrent {
		p, ok := e.catalog.Get(profile)
		if !ok {
			return nil, errinfo.PresetUnavailable(phase, profile, "no preset loaded for profile "+profile)
		}
		presetPath = p.Path
	}
	metrics, err := e.runner.Slice(ctx, filePath, presetPath)
	if err != nil {
		return nil, mapSliceError(phase, err)
	}
	return metrics, nil
}

func mapProjectError(phase string, err error) *errinfo.ErrorInfo {
	switch {
	case errors.Is(err, project.ErrNotFound):
		return errinfo.FileNotFound(phase, err.Error())
	case errors.Is(err, project.ErrInvalidProject):
		return errinfo.InvalidInput(phase, err.Error())
	default:
		return errinfo.InvalidInput(phase, err.Error())
	}
}

func mapSliceError(phase string, err error) *errinfo.ErrorInfo {
	switch {
	case errors.Is(err, slicer.ErrNotInstalled):
		return errinfo.SlicerNotFound(phase)
	case errors.Is(err, slicer.ErrInputNotFound):
		return errinfo.FileNotFound(phase, err.Error())
	case errors.Is(err, slicer.ErrTimeout):
		return errinfo.SlicerTimeout(phase, err.Error())
	case errors.Is(err, slicer.ErrNoMetrics):
		return errinfo.OutputParseFailed(phase, err.Error())
	default:
		return errinfo.OutputParseFailed(phase, err.Error())
	}
}

type settingsResult struct {
	FilamentCostPerGram float64 `json:"filament_cost_per_gram"`
	Currency            string  `json:"currency"`
}

func (e *Engine) SettingsGet(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	_ = ctx
	_ = params
	return settingsResult{
		FilamentCostPerGram: e.settings.FilamentCostPerGram,
		Currency:            e.settings.Currency,
	}, nil
}

type settingsUpdateParams struct {
	FilamentCostPerGram *float64 `json:"filament_cost_per_gram"`
	Currency            *string  `json:"currency"`
}

func (e *Engine) SettingsUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	_ = ctx
	var req settingsUpdateParams
	if errInfo := decodeParams(params, &req); errInfo != nil {
		errInfo.Phase = errinfo.PhaseSettings
		return nil, errInfo
	}
	if req.FilamentCostPerGram != nil && *req.FilamentCostPerGram <= 0 {
		return nil, errinfo.InvalidInput(errinfo.PhaseSettings, "filament_cost_per_gram must be positive")
	}
	if e.store == nil {
		return nil, errinfo.SettingsFailed("no settings store configured")
	}
	updated, err := e.store.Update(func(s *settings.Settings) {
		if req.FilamentCostPerGram != nil {
			s.FilamentCostPerGram = *req.FilamentCostPerGram
		}
		if req.Currency != nil {
			s.Currency = strings.TrimSpace(*req.Currency)
		}
	})
	if err != nil {
		return nil, errinfo.SettingsFailed(err.Error())
	}
	e.settings = updated
	if adjustable, ok := e.runner.(interface{ SetCostPerGram(float64) }); ok {
		adjustable.SetCostPerGram(updated.FilamentCostPerGram)
	}
	e.logger.Info("settings.updated", "cost_per_gram", updated.FilamentCostPerGram, "currency", updated.Currency)
	return settingsResult{
		FilamentCostPerGram: updated.FilamentCostPerGram,
		Currency:            updated.Currency,
	}, nil
}
