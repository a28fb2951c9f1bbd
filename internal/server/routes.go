package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	gameAPI := api.Group("/game")
	gameAPI.Get("/state", s.getGameStateHandler)
	gameAPI.Get("/history", s.getHistoryHandler)
	gameAPI.Get("/stats", s.getStatsHandler)
	gameAPI.Post("/bet", s.placeBetHandler)
	gameAPI.Post("/bet/cancel", s.cancelBetHandler)
	gameAPI.Post("/cashout", s.cashoutHandler)
	gameAPI.Post("/verify", s.verifyHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}
