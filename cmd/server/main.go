package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"liaptui/internal/app"
	"liaptui/internal/config"
	"liaptui/internal/log"
	"liaptui/internal/metrics"
	"liaptui/internal/transport/rest"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "liaptui-server",
	Short: "Liap Tui room and connection server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		log.InitLog("liaptui", cfg.Log.Level)
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("server exited: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configFile != "" {
		err := config.Watch(configFile, func(next *config.Config) {
			log.SetLevel(next.Log.Level)
			log.Info("config reloaded, log level %s", next.Log.Level)
		}, func(err error) {
			log.Warn("%v", err)
		})
		if err != nil {
			log.Warn("config watch disabled: %v", err)
		}
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.Sweeper.Run(sweepCtx)

	if cfg.Metrics.Port > 0 {
		metricsSrv, err := metrics.NewServer(fmt.Sprintf("0.0.0.0:%d", cfg.Metrics.Port))
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		go func() {
			log.Info("metrics on http://localhost:%d/debug/statsviz/", cfg.Metrics.Port)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server: %v", err)
			}
		}()
		defer metricsSrv.Close()
	}

	router := rest.NewRouter(&rest.Container{
		AuthService:         a.Auth,
		RoomService:         a.Rooms,
		MessageQueueService: a.Queues,
		ReconnectionService: a.Reconnection,
		Registry:            a.Registry,
		AllowedOrigins:      cfg.HTTP.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting on :%d (storage=%s)", cfg.HTTP.Port, cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Registry.Shutdown(shutdownCtx); err != nil {
		log.Warn("registry shutdown: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
