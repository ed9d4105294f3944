// Package main provides the growth engine entry point: the scheduler, the
// engine it drives and the HTTP control surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/growth-engine/internal/api"
	"github.com/growth-engine/internal/blockdetect"
	"github.com/growth-engine/internal/config"
	"github.com/growth-engine/internal/engagement"
	"github.com/growth-engine/internal/engine"
	"github.com/growth-engine/internal/harvest"
	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/ratelimit"
	"github.com/growth-engine/internal/remote"
	"github.com/growth-engine/internal/retry"
	"github.com/growth-engine/internal/scheduler"
	"github.com/growth-engine/internal/storage"
	"github.com/growth-engine/internal/timing"
)

func main() {
	var (
		migrationsPath = flag.String("migrations", "migrations/postgres", "Postgres migrations directory; empty skips migrating")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":   cfg.Logging.Level,
		"format":  cfg.Logging.Format,
		"backend": cfg.Storage.Backend,
	}).Info("Growth engine starting")

	ctx := logging.WithLogger(context.Background(), logger)

	if err := run(ctx, cfg, *migrationsPath); err != nil {
		logger.WithError(err).Fatal("Growth engine stopped with error")
	}
	logger.Info("Growth engine exited")
}

func run(ctx context.Context, cfg *config.Config, migrationsPath string) error {
	logger := logging.FromContext(ctx)

	redisClient, err := storage.NewRedisClient(&cfg.Database.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()

	state, err := storage.NewRedisStateStore(redisClient.Client())
	if err != nil {
		return err
	}
	counters, err := ratelimit.NewRedisDailyCounterStore(&ratelimit.RedisDailyCounterStoreConfig{
		Redis: redisClient.Client(),
	})
	if err != nil {
		return err
	}

	var (
		prospects storage.ProspectStore
		actions   storage.ActionLogStore
	)
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Warn("Using in-memory prospect store; the queue does not survive restarts")
		prospects = storage.NewMemoryProspectStore()
		actions = storage.NewMemoryActionLog()
	default:
		if migrationsPath != "" {
			if err := storage.RunMigrations(storage.PostgresURL(&cfg.Database.Postgres), migrationsPath); err != nil {
				return err
			}
		}
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		defer postgres.Close()
		prospects = storage.NewProspectRepository(postgres)
		actions = storage.NewActionLogRepository(postgres)
	}

	var analytics api.AnalyticsReader
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer clickhouse.Close()
		repo := storage.NewActionAnalyticsRepository(clickhouse)
		actions = storage.NewMirroredActionLog(actions, repo, logger)
		analytics = repo
	}

	bridge := remote.NewBridgeClient(cfg.Remote.BridgeURL, cfg.Remote.Timeout)
	remoteAPI := remote.NewPaced(remote.NewBounded(bridge, cfg.Remote.Timeout), cfg.Remote.RequestsPerSecond, cfg.Remote.Burst)

	now := time.Now
	retrier := retry.NewExecutor(retry.DefaultRetryConfig())
	delays := timing.NewGenerator(now().UnixNano(), now)
	detector := blockdetect.NewDetector(now)

	limiter, err := ratelimit.NewLimiter(&ratelimit.Config{Store: counters, Now: now, Pauses: delays})
	if err != nil {
		return err
	}

	queue := engagement.NewQueue(prospects, now)
	executor, err := engagement.NewExecutor(&engagement.ExecutorConfig{
		API:              remoteAPI,
		Actions:          actions,
		Retry:            retrier,
		Failures:         detector,
		LikesPerProspect: cfg.Engine.LikesPerProspect,
		Delays:           delays,
		Now:              now,
	})
	if err != nil {
		return err
	}

	pipeline, err := harvest.NewPipeline(&harvest.PipelineConfig{
		API:          remoteAPI,
		State:        state,
		Prospects:    prospects,
		Counters:     counters,
		Actions:      actions,
		Retry:        retrier,
		Sources:      cfg.Engine.SourceAccounts,
		PageCap:      cfg.Engine.HarvestPageCap,
		PerSourceCap: cfg.Engine.PerSourceProspectCap,
		PageSize:     cfg.Engine.FollowerPageSize,
		StallTimeout: cfg.Engine.HarvestStallTimeout,
		Delays:       delays,
		Now:          now,
	})
	if err != nil {
		return err
	}

	sched := scheduler.New(&scheduler.Config{Now: now})

	eng, err := engine.New(&engine.Config{
		Engine:    cfg.Engine,
		State:     state,
		Counters:  counters,
		Actions:   actions,
		API:       remoteAPI,
		Queue:     queue,
		Executor:  executor,
		Pipeline:  pipeline,
		Limiter:   limiter,
		Detector:  detector,
		Retry:     retrier,
		Scheduler: sched,
		Delays:    delays,
		Now:       now,
	})
	if err != nil {
		return err
	}

	resumed, err := eng.Resume(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume engine: %w", err)
	}
	logger.WithField("state", string(resumed.Status)).Info("Engine state restored")

	if err := sched.Start(ctx); err != nil {
		return err
	}

	server, err := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
	}, api.Dependencies{
		Engine:    eng,
		Alarms:    sched,
		Actions:   actions,
		Analytics: analytics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case runErr = <-serverErr:
		logger.WithError(runErr).Error("API server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API server forced to shut down")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Scheduler did not stop cleanly")
	}

	return runErr
}
