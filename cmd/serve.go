package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bequiet-tracker/internal/api"
	"github.com/JakeFAU/bequiet-tracker/internal/app"
	"github.com/JakeFAU/bequiet-tracker/internal/scheduler"
	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs passes on a schedule and serves the HTTP API",
		Long: `Keeps the tracker running: the hourly schedule and the daily summary
schedule trigger auto-mode passes, and the HTTP API exposes health checks,
Prometheus metrics, the roster and manual dispatch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	logger := rt.logger

	sched := scheduler.New(time.UTC, logger.Named("scheduler"))
	for name, spec := range map[string]string{
		"hourly": rt.cfg.Scheduler.Schedule,
		"daily":  rt.cfg.Scheduler.DailySchedule,
	} {
		if spec == "" {
			continue
		}
		if err := sched.Add(scheduler.Job{Name: name, Spec: spec, Run: scheduledPass(rt)}); err != nil {
			return fmt.Errorf("schedule %s pass: %w", name, err)
		}
	}

	apiServer := api.NewServer(rt.app, api.Options{
		APIKey:         rt.cfg.Server.APIKey,
		RequestTimeout: rt.cfg.RequestTimeout(),
	}, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sched.Start()
	if next, ok := sched.Next("hourly"); ok {
		logger.Info("Scheduler started", zap.Time("next_hourly", next))
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server started", zap.Int("port", rt.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("Scheduled pass did not finish in time", zap.Error(err))
	}
	logger.Info("Shutdown complete")

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

func scheduledPass(rt *runtime) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := rt.app.RunOnce(ctx, tracker.ModeAuto)
		if errors.Is(err, app.ErrRunInProgress) {
			return nil
		}
		return err
	}
}
