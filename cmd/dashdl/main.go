package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/engine"
	"github.com/datallboy/dashdl/internal/fetch"
	"github.com/datallboy/dashdl/internal/infra/config"
	"github.com/datallboy/dashdl/internal/infra/logger"
	"github.com/datallboy/dashdl/internal/pacing"
	"github.com/datallboy/dashdl/internal/store"
)

const version = "0.1.0"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "dashdl",
		Short:         "Adaptive chunked downloader for split video/audio streams",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default config.yaml)")

	root.AddCommand(newDownloadCmd(), newMuxCmd(), newServeCmd(), newHistoryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads config and builds the shared app context. The returned
// func releases the store and flushes the log.
func bootstrap() (*app.Context, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		log.Close()
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	appCtx := app.NewContext(cfg, log)
	appCtx.Store = st
	appCtx.Fetcher = fetch.NewRangeFetcher(fetch.Options{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
		Referer:   cfg.HTTP.Referer,
		RateLimit: cfg.Download.RateLimit,
	})

	cleanup := func() {
		_ = st.Close()
		_ = log.Close()
	}
	return appCtx, cleanup, nil
}

// newManager wires one pacing controller into the orchestrator; every
// session of this process shares it.
func newManager(appCtx *app.Context, loadExisting bool) *engine.SessionManager {
	cfg := appCtx.Config
	pacer := pacing.New(engine.PacingParams(cfg.Pacing))
	orch := engine.NewOrchestrator(appCtx, pacer, engine.RetryPolicy(cfg.Download))
	return engine.NewSessionManager(appCtx, orch, loadExisting)
}
