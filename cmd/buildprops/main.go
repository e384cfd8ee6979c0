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
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"

	app "github.com/kode4food/buildprops"
	"github.com/kode4food/buildprops/internal/archive"
	"github.com/kode4food/buildprops/internal/config"
	"github.com/kode4food/buildprops/internal/notify"
	"github.com/kode4food/buildprops/internal/runs"
	"github.com/kode4food/buildprops/internal/scheduler"
	"github.com/kode4food/buildprops/internal/server"
	"github.com/kode4food/buildprops/internal/steps"
	"github.com/kode4food/buildprops/internal/tables"
	"github.com/kode4food/buildprops/internal/wait"
	"github.com/kode4food/buildprops/pkg/log"
)

type buildprops struct {
	cfg        *config.Config
	persister  *runs.RedisPersister
	archiver   *archive.BlobArchiver
	notifier   *notify.Registry
	runs       *runs.Registry
	scheduler  *scheduler.Scheduler
	waits      *wait.Manager
	feed       *server.Feed
	apiServer  *server.Server
	httpServer *http.Server
	stopSched  context.CancelFunc
	quit       chan os.Signal
}

var (
	ErrConnectRedis = errors.New("failed to connect to redis")
	ErrOpenArchive  = errors.New("failed to open archive bucket")
	ErrLoadRuns     = errors.New("failed to load runs")
	ErrResumeWaits  = errors.New("failed to resume waits")
)

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &buildprops{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *buildprops) run() error {
	ctx := context.Background()
	if err := s.initializeStores(ctx); err != nil {
		return err
	}

	if err := s.initializeWaits(ctx); err != nil {
		s.closeStores()
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *buildprops) setupLogging() {
	level := log.ParseLevel(s.cfg.LogLevel)

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Build properties service starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("redis_addr", s.cfg.Redis.Addr),
		slog.Int("redis_db", s.cfg.Redis.DB),
		slog.String("redis_prefix", s.cfg.Redis.Prefix),
		slog.Bool("archive_enabled", s.cfg.ArchiveEnabled()),
		slog.Duration("wait_poll_interval", s.cfg.WaitPollInterval),
		slog.Duration("wait_retention", s.cfg.WaitRetention),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *buildprops) initializeStores(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
	})
	s.persister = runs.NewRedisPersister(rdb, s.cfg.Redis.Prefix,
		runs.WithWaitRetention(s.cfg.WaitRetention),
	)
	if err := s.persister.Ping(ctx); err != nil {
		_ = s.persister.Close()
		return fmt.Errorf("%w: %w", ErrConnectRedis, err)
	}

	var archiver runs.Archiver
	if s.cfg.ArchiveEnabled() {
		a, err := archive.Open(
			ctx, s.cfg.ArchiveBucketURL, s.cfg.ArchivePrefix,
		)
		if err != nil {
			_ = s.persister.Close()
			return fmt.Errorf("%w: %w", ErrOpenArchive, err)
		}
		s.archiver = a
		archiver = a
	}

	s.notifier = notify.NewRegistry()
	s.runs = runs.NewRegistry(s.notifier, s.persister, archiver)
	if err := s.runs.Load(ctx); err != nil {
		s.closeStores()
		return fmt.Errorf("%w: %w", ErrLoadRuns, err)
	}
	return nil
}

func (s *buildprops) initializeWaits(ctx context.Context) error {
	s.scheduler = scheduler.NewSystem()
	schedCtx, cancel := context.WithCancel(context.Background())
	s.stopSched = cancel
	go s.scheduler.Run(schedCtx)

	s.waits = wait.NewManager(wait.Dependencies{
		Lookup:       wait.LookupOf(s.runs.Store),
		Listeners:    s.notifier,
		Scheduler:    s.scheduler,
		PollInterval: s.cfg.WaitPollInterval,
		Retention:    s.cfg.WaitRetention,
	}, s.persister)

	if err := s.waits.Resume(ctx); err != nil {
		s.waits.Close()
		cancel()
		return fmt.Errorf("%w: %w", ErrResumeWaits, err)
	}
	return nil
}

func (s *buildprops) startServer() {
	s.feed = server.NewFeed(s.notifier)

	deps := server.Dependencies{
		Steps:    steps.New(s.runs, s.waits, tables.New()),
		Runs:     s.runs,
		Waits:    s.waits,
		Feed:     s.feed,
		Health:   s.persister,
		WSBuffer: s.cfg.WSBuffer,
	}
	if s.archiver != nil {
		deps.Archive = s.archiver
	}
	s.apiServer = server.NewServer(deps)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: s.apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *buildprops) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	s.feed.Close()
	s.waits.Close()
	s.stopSched()
	s.closeStores()

	slog.Info("Server exited")
}

func (s *buildprops) closeStores() {
	if s.archiver != nil {
		if err := s.archiver.Close(); err != nil {
			slog.Error("Archive close failed", log.Error(err))
		}
	}
	if err := s.persister.Close(); err != nil {
		slog.Error("Redis close failed", log.Error(err))
	}
}
