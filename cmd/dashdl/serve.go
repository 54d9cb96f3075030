package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/datallboy/dashdl/internal/api"
	"github.com/datallboy/dashdl/internal/api/controllers"
	"github.com/datallboy/dashdl/internal/engine"
	"github.com/datallboy/dashdl/internal/platform"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session queue behind the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for _, msg := range platform.ValidateDependencies(appCtx.Config.Mux.Binary) {
				appCtx.Logger.Warn("%s", msg)
			}

			var muxer controllers.MuxRunner
			if runner, err := newRunner(appCtx); err != nil {
				appCtx.Logger.Warn("Mux endpoint disabled: %v", err)
			} else {
				muxer = runner
			}

			manager := newManager(appCtx, true)
			// Registered after cleanup so the queue is idle before the store closes
			defer startQueue(ctx, manager)()

			e := echo.New()
			api.RegisterRoutes(e, appCtx, manager, muxer)

			srv := &http.Server{
				Addr:              ":" + appCtx.Config.Port,
				Handler:           e,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				appCtx.Logger.Info("API listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			appCtx.Logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// startQueue runs the session loop in the background. The returned func
// cancels it and waits until the in-flight session has been finalized.
func startQueue(ctx context.Context, manager *engine.SessionManager) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		manager.Start(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
