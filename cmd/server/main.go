package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/config"
	"taskhub/internal/database"
	"taskhub/internal/events"
	"taskhub/internal/metrics"
	"taskhub/internal/router"
	"taskhub/internal/service"
	"taskhub/internal/worker"
	"taskhub/pkg/cloudinary"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Server.Env == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	var cloud cloudinary.Client
	if cfg.Cloudinary.Enabled() {
		cloud, err = cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("cloudinary")
		}
	} else {
		logger.Info().Msg("chat uploads disabled: cloudinary credentials not set")
	}

	m := metrics.New()
	app := router.Setup(ctx, router.Deps{
		Config:  cfg,
		DB:      db,
		Cloud:   cloud,
		FCM:     service.NewFCMService(ctx, cfg.Firebase.ServiceAccountPath, logger),
		Metrics: m,
		Log:     logger,
	})

	if cfg.NATS.Enabled() {
		nc, err := events.ConnectJetStream(ctx, cfg.NATS, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats")
		}
		defer nc.Close()
		consumer := events.NewConsumer(app.Notifications, app.Projects, app.Tasks, m, logger)
		if _, err := nc.Subscribe(ctx, cfg.NATS, consumer); err != nil {
			logger.Fatal().Err(err).Msg("subscribe domain events")
		}
	} else {
		logger.Info().Msg("domain event intake disabled: set TASKHUB_NATS_URL to enable")
	}

	if cfg.Reminder.Enabled {
		go worker.NewDeadlineWorker(app.Reminders, cfg.Reminder.Interval, logger).Run(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Msg("server stopped")
}
