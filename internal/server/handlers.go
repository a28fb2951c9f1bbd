package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"crashgame/internal/game"
)

const intentTimeout = 2 * time.Second

// httpStatus maps an intent rejection code onto an HTTP status.
func httpStatus(code string) int {
	switch code {
	case game.CodeInvalidAmount, game.CodeInvalidAutoCashout, game.CodeInsufficientBalance:
		return fiber.StatusBadRequest
	case game.CodeRoundInProgress, game.CodeBetAlreadyPending,
		game.CodeAlreadyCashedOut, game.CodeRoundNotActive:
		return fiber.StatusConflict
	case game.CodeNoPendingBet, game.CodeNoActiveBet:
		return fiber.StatusNotFound
	default:
		return fiber.StatusServiceUnavailable
	}
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	snap := s.runner.Snapshot()

	events := map[string]string{"status": "disabled"}
	if s.events != nil {
		events = s.events.Health()
	}

	return c.JSON(fiber.Map{
		"game": fiber.Map{
			"status":            "running",
			"phase":             snap.Phase,
			"round_id":          snap.RoundID,
			"connected_clients": s.hub.GetClientCount(),
		},
		"events": events,
	})
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.runner.Snapshot().Redacted())
}

func (s *FiberServer) getHistoryHandler(c *fiber.Ctx) error {
	board := s.runner.Board()
	return c.JSON(fiber.Map{
		"rounds": board.Rounds,
		"bets":   board.Bets,
	})
}

func (s *FiberServer) getStatsHandler(c *fiber.Ctx) error {
	return c.JSON(s.runner.Board().Stats)
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), intentTimeout)
	defer cancel()

	resp := s.runner.PlaceBet(ctx, req)
	if !resp.Success {
		return c.Status(httpStatus(resp.Code)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) cancelBetHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), intentTimeout)
	defer cancel()

	resp := s.runner.CancelBet(ctx)
	if !resp.Success {
		return c.Status(httpStatus(resp.Code)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), intentTimeout)
	defer cancel()

	resp := s.runner.Cashout(ctx)
	if !resp.Success {
		return c.Status(httpStatus(resp.Code)).JSON(resp)
	}
	return c.JSON(resp)
}

type verifyRequest struct {
	game.FairnessProof
	CrashPoint float64 `json:"crash_point"`
}

func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ServerSeed == "" || req.ClientSeed == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "server_seed and client_seed are required",
		})
	}

	expected := game.CrashPointFromDraw(
		game.DrawFloat(req.ServerSeed, req.ClientSeed, req.Nonce), s.houseEdge)

	return c.JSON(fiber.Map{
		"valid":       game.VerifyRound(req.FairnessProof, s.houseEdge, req.CrashPoint),
		"crash_point": expected,
	})
}

type clientMessage struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	AutoCashout float64 `json:"auto_cashout"`
}

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	client := s.hub.RegisterClient(conn)
	defer s.hub.UnregisterClient(client)

	s.reply(client, game.Event{
		Type:    "initial_state",
		RoundID: s.runner.Snapshot().RoundID,
		Data: fiber.Map{
			"state":   s.runner.Snapshot().Redacted(),
			"history": s.runner.Board(),
		},
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug().Err(err).Msg("websocket read")
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		switch msg.Type {
		case "place_bet":
			s.reply(client, s.runner.PlaceBet(ctx, game.BetRequest{
				Amount:      msg.Amount,
				AutoCashout: msg.AutoCashout,
			}))
		case "cancel_bet":
			s.reply(client, s.runner.CancelBet(ctx))
		case "cashout":
			s.reply(client, s.runner.Cashout(ctx))
		case "state":
			s.reply(client, s.runner.Snapshot().Redacted())
		case "ping":
			s.reply(client, map[string]string{"type": "pong"})
		}
		cancel()
	}
}

func (s *FiberServer) reply(client *game.Client, v interface{}) {
	if err := client.Send(v); err != nil {
		s.logger.Debug().Err(err).Msg("websocket send")
	}
}
