package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ovationhq/ovation/internal/app"
	"github.com/ovationhq/ovation/internal/app/maintenance"
	"github.com/ovationhq/ovation/internal/database"
	"github.com/ovationhq/ovation/internal/monitoring"
	"github.com/ovationhq/ovation/internal/queue"
	"github.com/ovationhq/ovation/internal/reactions"
	"github.com/ovationhq/ovation/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ovation-worker", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.Named("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	aggregator, err := reactions.NewAggregator(db, cfg.Reactions.AggregatedCategories)
	if err != nil {
		return fmt.Errorf("initialise aggregator: %w", err)
	}

	sender, err := reactions.NewSender(db, aggregator)
	if err != nil {
		return fmt.Errorf("initialise sender: %w", err)
	}

	consumer, err := reactions.NewConsumer(db, sender)
	if err != nil {
		return fmt.Errorf("initialise consumer: %w", err)
	}

	dispatcher, err := queue.NewDispatcher(queue.Config{
		Workers:      cfg.Queue.Workers,
		Buffer:       cfg.Queue.Buffer,
		MaxRetries:   cfg.Queue.MaxRetries,
		RetryBackoff: cfg.Queue.RetryBackoff,
	}, func(ctx context.Context, payload map[string]any) error {
		err := consumer.Consume(ctx, payload)
		var dataErr *reactions.DataError
		if errors.As(err, &dataErr) {
			// Retrying malformed input is pointless; log loudly and ack.
			log.Error("discarding malformed reaction event", zap.Error(dataErr))
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("initialise dispatcher: %w", err)
	}

	dispatcher.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dispatcher.Stop(stopCtx); err != nil {
			log.Warn("dispatcher drain interrupted", zap.Error(err))
		}
	}()

	if cfg.Maintenance.Enabled {
		sweeper := maintenance.NewSweeper(db, consumer,
			maintenance.WithSchedule(cfg.Maintenance.Schedule),
			maintenance.WithBatchSize(cfg.Maintenance.BatchSize))
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer sweeper.Stop()
	}

	router := monitoring.NewRouter(db, monitoring.Options{
		HealthEnabled:  cfg.Monitoring.Health.Enabled,
		MetricsEnabled: cfg.Monitoring.Prometheus.Enabled,
		MetricsPath:    cfg.Monitoring.Prometheus.Endpoint,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("monitoring server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("monitoring server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("monitoring server error: %w", err)
	}

	log.Info("worker stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(database.Config{
		Driver:   strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:     strings.TrimSpace(cfg.Database.Path),
		DSN:      strings.TrimSpace(cfg.Database.DSN),
		Host:     strings.TrimSpace(cfg.Database.Host),
		Port:     cfg.Database.Port,
		User:     strings.TrimSpace(cfg.Database.User),
		Password: cfg.Database.Password,
		Name:     strings.TrimSpace(cfg.Database.Name),
		Options:  cfg.Database.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.Named("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(cfg.Database.Driver))))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
