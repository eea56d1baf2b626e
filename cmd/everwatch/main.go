package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/everwatch/internal/alert"
	"github.com/hazz-dev/everwatch/internal/config"
	"github.com/hazz-dev/everwatch/internal/logging"
	"github.com/hazz-dev/everwatch/internal/metrics"
	"github.com/hazz-dev/everwatch/internal/scheduler"
	"github.com/hazz-dev/everwatch/internal/server"
	"github.com/hazz-dev/everwatch/internal/storage"
	"github.com/hazz-dev/everwatch/internal/version"
)

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "everwatch",
		Short:             "Endpoint availability monitor",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "everwatch.yml", "config file path")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file with EVERWATCH_* overrides (default .env if present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(periodsCmd())
	root.AddCommand(endpointCmd())

	return root
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitor and its HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 1. Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Info("config loaded",
		"endpoints", len(cfg.Endpoints),
		"interval", cfg.Interval(),
		"storage", cfg.Storage.Driver,
	)

	// 2. Open storage and restore the registry
	st, err := openState(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()
	if err := st.seed(cfg.Endpoints); err != nil {
		return err
	}

	// 3. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 4. Notifiers, scheduler and API
	a := newApp(ctx, cfg, st, logger)
	if a.trigger != nil {
		a.trigger.Rearm()
		logger.Info("background checks armed", "delay", cfg.BackgroundDelay)
	}

	// 5. Persist seeded endpoints before the first cycle
	if err := a.writer.Persist(ctx); err != nil {
		logger.Warn("initial persist", "error", err)
	}

	a.sched.Start(ctx)
	logger.Info("scheduler started", "endpoints", st.reg.Len())

	// 6. HTTP API
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           a.api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 7. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		stop()
		a.sched.Wait()
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 8. Graceful shutdown
	if a.trigger != nil {
		a.trigger.Stop()
	}
	a.sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
	if a.webhook != nil {
		a.webhook.Wait()
	}
	if err := a.writer.Persist(shutdownCtx); err != nil {
		logger.Error("final persist", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// app is the wired monitoring pipeline behind serve.
type app struct {
	writer  *storage.Writer
	sched   *scheduler.Scheduler
	trigger *scheduler.TimerTrigger
	webhook *alert.WebhookNotifier
	api     *server.Server
}

// newApp wires the pipeline over st. The background trigger is created but
// not armed, and wake requests are refused unless background checks are on.
func newApp(ctx context.Context, cfg *config.Config, st *state, logger *slog.Logger) *app {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{}
	m := metrics.New()
	a.writer = storage.NewWriter(st.gw, st.reg, m, logger)

	notifiers := alert.Multi{alert.NewLogNotifier(logger)}
	if cfg.Alerts.Webhook.URL != "" {
		a.webhook = alert.NewWebhookNotifier(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Cooldown.Duration, logger)
		notifiers = append(notifiers, a.webhook)
	}
	decider := alert.NewDecider(st.reg, notifiers, alert.Options{
		NotifyOnDown: cfg.NotifyOnDown,
		NotifyOnUp:   cfg.NotifyOnUp,
	}, m, logger)

	a.sched = scheduler.New(st.reg, decider, a.writer, scheduler.Options{
		Interval:      cfg.Interval(),
		ProbeTimeout:  cfg.ProbeTimeout,
		MaxConcurrent: cfg.MaxConcurrentProbes,
	}, m, logger)

	var waker server.Waker
	if cfg.BackgroundChecks {
		sched := a.sched
		a.trigger = scheduler.NewTimerTrigger(cfg.BackgroundDelay, func() {
			if err := sched.Wake(ctx); err != nil && ctx.Err() == nil {
				logger.Error("background wake", "error", err)
			}
		})
		sched.SetTrigger(a.trigger)
		waker = sched
	}

	a.api = server.New(st.reg, a.writer, waker, m, logger)
	return a
}
