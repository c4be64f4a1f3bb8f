package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"plate-order-backend/config"
	"plate-order-backend/internal/api"
	"plate-order-backend/internal/archive"
	"plate-order-backend/internal/board"
	"plate-order-backend/internal/capture"
	"plate-order-backend/internal/db"
	"plate-order-backend/internal/events"
	"plate-order-backend/internal/feed"
	"plate-order-backend/internal/metrics"
	"plate-order-backend/internal/mw"
	"plate-order-backend/internal/notification"
	"plate-order-backend/internal/pending"
	"plate-order-backend/internal/reconcile"
	"plate-order-backend/internal/store"
	"plate-order-backend/internal/transcription"
)

const serviceName = "plated"

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default $CONFIG_PATH or ./config/config.yaml)")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", path, err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	logger.Info("service starting",
		slog.String("service", serviceName),
		slog.String("config_path", path),
		slog.Int("port", cfg.Server.Port),
		slog.String("order_sink", cfg.Orders.Sink),
		slog.String("feed_transport", cfg.Feed.Transport),
		slog.String("transcription_provider", cfg.Transcription.Provider),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server gracefully stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	gormDB, err := db.Init(&cfg.Database, logger.With(slog.String("component", "db")))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	appStore := store.NewGormStore(gormDB)

	hub := events.NewHub()
	publisher, err := events.FromConfig(ctx, cfg.Events, hub, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	pend := pending.New(cfg.Orders.PendingPath, logger)
	sink, err := reconcile.NewSink(cfg.Orders, appStore, pend)
	if err != nil {
		return err
	}
	orders, err := reconcile.NewOrderRepository(cfg.Orders, appStore, pend)
	if err != nil {
		return err
	}
	mode, err := reconcile.ParseMode(cfg.Orders.Mode)
	if err != nil {
		return err
	}
	reconciler := &reconcile.Reconciler{
		Mode:        mode,
		Validator:   reconcile.Validator{RequireTable: cfg.Orders.RequireTable, Seats: appStore},
		Sink:        sink,
		Publisher:   publisher,
		DefaultType: cfg.Orders.DefaultType,
		Metrics:     appMetrics,
		Logger:      logger.With(slog.String("component", "reconcile")),
	}

	transcriber, err := transcription.New(cfg.Transcription)
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	pipeline := &reconcile.Pipeline{
		Transcriber:   transcriber,
		Reconciler:    reconciler,
		ArchivePrefix: cfg.Archive.Prefix,
		SampleRate:    cfg.Recording.SampleRate,
		Channels:      cfg.Recording.ChannelCount,
		Logger:        logger.With(slog.String("component", "pipeline")),
	}
	if cfg.Archive.Enabled {
		arch, err := archive.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to create recording archive: %w", err)
		}
		pipeline.Archive = arch
		logger.Info("archiving recordings", slog.String("bucket", cfg.Archive.Bucket))
	}

	sessions := capture.NewManager(logger, capture.NewUploadSource(), capture.ManagerConfig{
		SessionTimeout:  cfg.Recording.SessionTimeout(),
		CleanupInterval: cfg.Recording.CleanupInterval(),
		Session: capture.Options{
			MaxDuration: cfg.Recording.MaxDuration(),
			MinDuration: cfg.Recording.MinDuration(),
			MaxBytes:    cfg.Recording.MaxBytes,
			Constraints: capture.ConstraintsFromConfig(cfg.Recording),
			OnComplete:  pipeline.OnComplete,
			Observer:    appMetrics,
		},
	})
	pipeline.Sessions = sessions

	boardSvc := &board.Service{
		Store:           appStore,
		Orders:          orders,
		Publisher:       publisher,
		Metrics:         appMetrics,
		DeliveredWindow: cfg.Board.ExpoDeliveredWindow(),
		ListLimit:       cfg.Board.ListLimit,
		Logger:          logger.With(slog.String("component", "board")),
	}

	webpushOptions := notification.Options(cfg.Push)
	if cfg.Push.Enabled() {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger)
		pool.Start(ctx)
		boardSvc.Notifier = pool
	} else {
		logger.Warn("VAPID keys are not configured, order-ready pushes are disabled")
		webpushOptions = nil
	}

	orderFeed, closeFeed, err := feed.New(ctx, cfg.Feed, feed.Deps{
		Store:           appStore,
		Orders:          orders,
		Pending:         pend,
		Hub:             hub,
		Events:          cfg.Events,
		ListLimit:       cfg.Board.ListLimit,
		DeliveredWindow: cfg.Board.ExpoDeliveredWindow(),
		Logger:          logger,
		Metrics:         appMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create order feed: %w", err)
	}
	defer closeFeed()
	broadcaster := feed.NewBroadcaster(orderFeed, logger)
	go func() {
		if err := broadcaster.Run(ctx); err != nil {
			logger.Error("order feed stopped", slog.Any("error", err))
		}
	}()

	limiter := mw.NewClientRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go sweepLimiter(ctx, limiter, logger)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(api.Deps{
		Store:          appStore,
		Orders:         orders,
		Sessions:       sessions,
		Pipeline:       pipeline,
		Transcriber:    transcriber,
		Reconciler:     reconciler,
		Board:          boardSvc,
		Feed:           broadcaster,
		Visualizer:     cfg.Visualizer,
		Webpush:        webpushOptions,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		Server:   cfg.Server,
		Gatherer: reg,
		Recorder: appMetrics,
		Limiter:  limiter,
		Logger:   logger,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received, stopping services", slog.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", slog.Any("error", err))
	}

	sessions.Close()
	pipeline.Wait()
	cancel()

	if c, ok := transcriber.(*transcription.Client); ok {
		st := c.Stats()
		logger.Info("transcription stats", slog.Any("stats", st))
	}
	return nil
}

// sweepLimiter drops rate limit state for clients idle for ten minutes.
func sweepLimiter(ctx context.Context, l *mw.ClientRateLimiter, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(10 * time.Minute); n > 0 {
				logger.Debug("rate limiter swept", slog.Int("clients", n))
			}
		}
	}
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	return slog.New(handler).With(slog.String("service", serviceName))
}
