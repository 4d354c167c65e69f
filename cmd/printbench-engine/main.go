package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"printbench/engine/internal/appdirs"
	"printbench/engine/internal/engine"
	"printbench/engine/internal/envfile"
	"printbench/engine/internal/envutil"
	"printbench/engine/internal/errinfo"
	"printbench/engine/internal/logging"
	"printbench/engine/internal/preset"
	"printbench/engine/internal/rpc"
	"printbench/engine/internal/settings"
	"printbench/engine/internal/slicer"
)

func main() {
	envResult := envfile.Load()
	debug := envutil.Bool("PRINTBENCH_DEBUG")
	dataDir, err := appdirs.DataDir()
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}
	logSetup, logErr := logging.NewFileLogger(dataDir, debug)
	logger := logSetup.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("component", "engine")
	if logSetup.Enabled {
		logger.Info("engine.logging_enabled", "path", logSetup.Path)
	}
	if envResult.Loaded {
		logger.Debug("engine.env_loaded", "path", envResult.Path, "keys", envResult.Keys)
	}
	if envResult.Err != nil {
		logger.Warn("engine.env_load_failed", "path", envResult.Path, "error", envResult.Err.Error())
	}
	if logErr != nil {
		logger.Warn("engine.log_setup_failed", "error", logErr.Error())
	}
	if logSetup.Close != nil {
		defer logSetup.Close()
	}

	presetDir, err := preset.ResolveDir()
	if err != nil {
		logger.Error("presets.resolve_failed", "error", err.Error())
		log.Fatalf("preset directory not found: %v", err)
	}
	catalog, err := preset.Load(presetDir)
	if err != nil {
		logger.Error("presets.load_failed", "dir", presetDir, "error", err.Error())
		log.Fatalf("preset load failed: %v", err)
	}

	workspace, err := slicer.NewWorkspace(appdirs.WorkspaceDir(dataDir), logger)
	if err != nil {
		logger.Error("workspace.init_failed", "error", err.Error())
		log.Fatalf("workspace init failed: %v", err)
	}
	if swept := workspace.Sweep(); swept > 0 {
		logger.Info("workspace.swept", "removed", swept)
	}

	store := settings.NewStore(filepath.Join(dataDir, "settings.json"))
	loaded, err := store.Load()
	if err != nil {
		logger.Error("settings.load_failed", "error", err.Error())
		log.Fatalf("settings load failed: %v", err)
	}
	runner := slicer.NewRunner(slicer.RunnerOptions{
		Workspace:   workspace,
		CostPerGram: loaded.FilamentCostPerGram,
		Logger:      logger,
	})

	eng, err := engine.New(engine.Config{
		Catalog: catalog,
		Store:   store,
		Runner:  runner,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("engine.init_failed", "error", err.Error())
		log.Fatalf("engine init failed: %v", err)
	}
	server := rpc.NewServer(engine.APIVersion, os.Stdin, os.Stdout, logger)
	eng.SetNotifier(server.Notify)

	register := func(method string, fn func(context.Context, json.RawMessage) (any, *errinfo.ErrorInfo)) {
		server.Register(method, func(ctx context.Context, params json.RawMessage) (any, *rpc.Error) {
			result, errInfo := fn(ctx, params)
			if errInfo != nil {
				msg := errInfo.ErrorCode
				if errInfo.Detail != "" {
					msg = errInfo.Detail
				}
				return nil, &rpc.Error{Message: msg, Data: errInfo}
			}
			return result, nil
		})
	}

	register("EngineGetInfo", eng.EngineGetInfo)
	register("SlicerGetStatus", eng.SlicerGetStatus)
	register("ProjectGetMetadata", eng.ProjectGetMetadata)
	register("PrintAnalyze", eng.PrintAnalyze)
	register("PrintCompareProfiles", eng.PrintCompareProfiles)
	register("PrintBatchMetrics", eng.PrintBatchMetrics)
	register("SettingsGet", eng.SettingsGet)
	register("SettingsUpdate", eng.SettingsUpdate)

	if err := server.Serve(context.Background()); err != nil {
		logger.Error("rpc.server_error", "error", err.Error())
		log.Fatalf("rpc server error: %v", err)
	}
}
