package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtbook/internal/api"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/export"
	"courtbook/internal/logging"
	"courtbook/internal/metrics"
	"courtbook/internal/repository"
	"courtbook/internal/scheduler"
	"courtbook/internal/service"
	"courtbook/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, database.Options{
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
		MaxOpenConns:  cfg.Database.MaxOpenConns,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if err := seedCatalog(ctx, cfg, db, logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	locker := initLocker(cfg, redisClient, logger)

	eventBus := events.NewEventBus()
	subscribeNotifications(eventBus, logging.Component(logger, "notifications"))

	booking := service.NewBookingService(db, locker, eventBus, worker.RetryPolicy{
		MaxRetries:   cfg.Booking.AdmissionRetries,
		InitialDelay: cfg.Booking.RetryDelay,
		MaxDelay:     cfg.Booking.RetryMaxDelay,
	}, logging.Component(logger, "booking"))
	exporter := export.NewScheduleExporter(booking, logging.Component(logger, "export"))

	jobs, err := initScheduler(cfg, booking, database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup")), logger)
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() { _ = jobs.Stop() }()

	metrics.Register()
	httpServer := api.NewHTTPServer(cfg.API, booking, exporter, db, logging.Component(logger, "http"))

	return serve(ctx, cfg, httpServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

// seedCatalog upserts venues and courts from the catalog file, if one exists.
func seedCatalog(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = cfg.Catalog.Path
	}
	if catalogPath == "" {
		logger.Info().Msg("no catalog configured, using stored venues")
		return nil
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("catalog_path", catalogPath).Msg("catalog file not found, using stored venues")
			return nil
		}
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return err
	}

	var file service.CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return err
	}

	catalog := service.NewCatalogService(db, cfg.BookingDefaults, logging.Component(logger, "catalog"))
	stats, err := catalog.Seed(ctx, &file)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info().
		Int("venues", stats.Venues).
		Int("courts", stats.Courts).
		Int("special_hours", stats.SpecialHours).
		Int("restrictions", stats.Restrictions).
		Msg("catalog seeded")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		// The failover locker keeps retrying Redis, so the client stays.
		logger.Warn().Err(err).Msg("redis unavailable at startup, admissions fall back to in-process locks")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

// initLocker picks the admission lock. Without Redis only one process may
// serve writes against the database.
func initLocker(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.Locker {
	memory := repository.NewMemoryLocker(cfg.Locking.WaitTimeout)
	if client == nil {
		logger.Info().Msg("using in-process admission locks")
		return memory
	}
	lockLogger := logging.Component(logger, "locker")
	return repository.NewFailoverLocker(repository.NewRedisLocker(client, cfg.Locking, lockLogger), memory, lockLogger)
}

// subscribeNotifications logs every domain event. The notification
// collaborator consumes the same stream.
func subscribeNotifications(bus *events.EventBus, logger *zerolog.Logger) {
	for _, eventType := range []string{
		events.EventReservationCreated,
		events.EventReservationConfirmed,
		events.EventReservationCancelled,
		events.EventReservationRescheduled,
		events.EventReservationsCompleted,
	} {
		bus.Subscribe(eventType, func(e *events.Event) error {
			logger.Info().Str("event", e.Type).RawJSON("payload", e.Payload).Msg("domain event")
			return nil
		})
	}
}

func initScheduler(cfg *config.Config, sweeper scheduler.Sweeper, backups *database.BackupService, logger *zerolog.Logger) (*scheduler.Service, error) {
	jobs, err := scheduler.New(logging.Component(logger, "scheduler"))
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	if err := scheduler.RegisterSweepJob(jobs, sweeper, cfg.Booking.SweepSchedule); err != nil {
		return nil, fmt.Errorf("register sweep job: %w", err)
	}
	if err := scheduler.RegisterBackupJob(jobs, backups, backups.Enabled(), cfg.Backup.Schedule); err != nil {
		return nil, fmt.Errorf("register backup job: %w", err)
	}
	return jobs, nil
}

func serve(ctx context.Context, cfg *config.Config, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	if cfg.API.HTTP.Enabled {
		g.Go(httpServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	} else {
		logger.Warn().Msg("HTTP API is disabled in config")
	}

	if cfg.Monitoring.PrometheusEnabled {
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info().Str("http_addr", httpServer.Addr()).Msg("courtbook started")
	<-gctx.Done()
	logger.Info().Msg("shutdown signal received")

	err := g.Wait()
	logger.Info().Msg("courtbook stopped")
	return err
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
