package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crashgame/internal/config"
	"crashgame/internal/game"
	"crashgame/internal/logging"
	"crashgame/internal/pubsub"
	"crashgame/internal/server"
)

func main() {
	cfg := config.Load()

	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	seed := cfg.RNGSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var source game.RandomSource = rng
	if cfg.RNGMode == config.RNGModeFair {
		source = game.NewFairSource("")
	}

	var opponents *game.OpponentSimulator
	if cfg.OpponentsMax > 0 {
		opponents = game.NewOpponentSimulator(rng, cfg.OpponentsMax)
	}

	engine := game.NewEngine(game.EngineConfig{
		CountdownSeconds: cfg.CountdownSeconds,
		StartingBalance:  cfg.StartingBalance,
		PlayerName:       cfg.PlayerName,
		Growth:           game.PowerGrowth(cfg.GrowthSpeed),
		CrashPoints:      game.NewCrashPointGenerator(source, cfg.HouseEdge),
		Opponents:        opponents,
		Logger:           logging.WithComponent(logger, "engine"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := game.NewHub(logging.WithComponent(logger, "hub"))
	go hub.Run(ctx)

	sinks := []game.EventSink{hub}

	var events pubsub.Service
	if cfg.RedisEnabled {
		svc, err := pubsub.New(pubsub.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		}, logging.WithComponent(logger, "pubsub"))
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, continuing without event fan-out")
		} else {
			events = svc
			sinks = append(sinks, svc)
		}
	}

	runner := game.NewRunner(engine, cfg.TickInterval,
		logging.WithComponent(logger, "runner"),
		game.WithSinks(sinks...),
	)
	runner.Start()

	srv := server.New(server.Options{
		Runner:    runner,
		Hub:       hub,
		Events:    events,
		HouseEdge: cfg.HouseEdge,
		Logger:    logging.WithComponent(logger, "http"),
	})
	srv.RegisterFiberRoutes()

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("rng_mode", cfg.RNGMode).
			Int64("seed", seed).
			Msg("server starting")
		if err := srv.Listen(":" + cfg.Port); err != nil {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	waitForShutdown(logger)

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}
	runner.Stop()
	cancel()
	if events != nil {
		if err := events.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}

	logger.Info().Msg("server exited")
}

func waitForShutdown(logger zerolog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
}
