package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fareboard/internal/amqp"
	"fareboard/internal/cli"
	apphttp "fareboard/internal/http"
	"fareboard/internal/log"
	"fareboard/internal/metrics"
	"fareboard/internal/middleware/auth"
	"fareboard/internal/report"
	"fareboard/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap()
	ctx := context.Background()

	types, err := cfg.ExpenseTypeSet()
	if err != nil {
		logger.Error("Failed to load expense types", log.FieldError, err)
		os.Exit(1)
	}

	store := cli.OpenStore(ctx, logger, cfg)
	m := metrics.New()

	opts := []services.Option{
		services.WithTripCapacity(cfg.TripCapacity),
		services.WithLogger(logger),
		services.WithPublishFailureHook(m.RecordPublishFailure),
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without record events", log.FieldError, err)
		} else {
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Publishing record events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	recordService := services.NewRecordService(store.Store, types, opts...)
	if err := recordService.Initialize(ctx, cfg.Owner()); err != nil {
		logger.Warn("Failed to initialize default owner tables", log.FieldOwner, cfg.Owner(), log.FieldError, err)
	}

	authn := auth.New(cfg.AuthJWTSecret, cfg.Owner(), apphttp.PublicPaths, logger)
	if !authn.Enabled() {
		logger.Info("Bearer authentication disabled, all requests use the default owner", log.FieldOwner, cfg.Owner())
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records:            recordService,
		Reports:            report.NewService(store.Store, logger),
		Auth:               authn,
		Logger:             logger,
		Metrics:            m,
		Ready:              store.Ready,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReportCacheTTL:     cfg.ReportCacheTTL,
	})
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := recordService.Close(); err != nil {
			logger.Warn("Failed to close event publisher", log.FieldError, err)
		}
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close record store", log.FieldError, err)
		}
	})

	logger.Info("Starting fareboard server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stop()
		<-done
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}
