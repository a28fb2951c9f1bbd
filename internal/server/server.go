package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crashgame/internal/game"
	"crashgame/internal/pubsub"
)

// FiberServer is the presentation adapter: it reads engine snapshots and
// relays player intents. It never mutates game state itself.
type FiberServer struct {
	*fiber.App

	runner    *game.Runner
	hub       *game.Hub
	events    pubsub.Service
	houseEdge float64
	logger    zerolog.Logger
}

type Options struct {
	Runner    *game.Runner
	Hub       *game.Hub
	Events    pubsub.Service // nil when Redis fan-out is disabled
	HouseEdge float64
	Logger    zerolog.Logger
	RateLimit int
}

func New(opts Options) *FiberServer {
	decimal.MarshalJSONWithoutQuotes = true

	if opts.RateLimit <= 0 {
		opts.RateLimit = 100
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "crashgame",
			AppName:               "crashgame",
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
			IdleTimeout:           120 * time.Second,
			DisableStartupMessage: true,
		}),

		runner:    opts.Runner,
		hub:       opts.Hub,
		events:    opts.Events,
		houseEdge: opts.HouseEdge,
		logger:    opts.Logger,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        opts.RateLimit,
		Expiration: 1 * time.Minute,
	}))

	return server
}

// Shutdown stops accepting requests. The runner, hub and publisher are owned
// by the caller.
func (s *FiberServer) Shutdown() error {
	s.logger.Info().Msg("shutting down http server")
	return s.App.Shutdown()
}
