package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/learnengine/internal/api"
	"github.com/example/learnengine/internal/notify"
	"github.com/example/learnengine/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return serve(ctx, app)
			})
		},
	}
}

func serve(ctx context.Context, app *App) error {
	cfg := app.Config
	logger := app.Logger

	if cfg.Scheduler.Enabled {
		notifier, err := notify.NewTelegramNotifier(cfg.Scheduler.TelegramToken, cfg.Scheduler.ChatIDs, logger.Named("telegram"))
		if err != nil {
			return err
		}
		sched := scheduler.New(app.Engine, notifier, scheduler.Config{
			Interval:  time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute,
			StartHour: cfg.Scheduler.StartHour,
			EndHour:   cfg.Scheduler.EndHour,
			DueLimit:  cfg.Scheduler.DueLimit,
			Location:  time.UTC,
		}, logger.Named("scheduler"))
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandlers(app.Engine, logger.Named("api")), app.Registry)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
