package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "go.uber.org/automaxprocs"

	"github.com/hirewire/notifyhub/internal/auth"
	"github.com/hirewire/notifyhub/internal/config"
	"github.com/hirewire/notifyhub/internal/events"
	"github.com/hirewire/notifyhub/internal/hub"
	"github.com/hirewire/notifyhub/internal/limits"
	"github.com/hirewire/notifyhub/internal/logging"
	"github.com/hirewire/notifyhub/internal/metrics"
	"github.com/hirewire/notifyhub/internal/server"
)

func main() {
	var (
		debug = flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	)
	flag.Parse()

	bootLogger := logging.New(logging.Config{Level: "info", Format: "pretty"})

	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.LogConfig(logger)

	instanceID := uuid.NewString()
	logger = logger.With().Str("instance_id", instanceID).Logger()

	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("HUB_JWT_SECRET is required")
	}
	verifier := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	h := hub.New(hub.Options{
		Logger:         logger,
		Verifier:       verifier,
		InstanceID:     instanceID,
		SendBufferSize: cfg.SendBufferSize,
		AuthTimeout:    cfg.AuthTimeout,
		ReapInterval:   cfg.ReapInterval,
		IdleThreshold:  cfg.IdleThreshold,
		Limiter:        limits.NewMessageLimiter(cfg.MessagesPerSecond, cfg.MessageBurst),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.RunReaper(ctx)
	go metrics.NewSampler(cfg.MetricsInterval, logger).Run(ctx)

	// The broadcast engine handle is bound exactly once, here, and handed
	// to collaborators explicitly.
	var broadcast hub.BroadcastFunc = h.BroadcastToChannel

	var bridge *events.Bridge
	if cfg.NATSURL != "" {
		bridge, err = events.NewBridge(events.Config{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.SubjectPrefix,
			InstanceID:    instanceID,
			Broadcast:     broadcast,
			Logger:        logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		if err := bridge.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to subscribe to domain events")
		}
	} else {
		logger.Warn().Msg("NATS_URL not set, domain event bridge disabled")
	}

	srv := server.New(cfg, h, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down")

	if bridge != nil {
		bridge.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}
