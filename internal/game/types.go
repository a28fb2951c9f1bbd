package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type Phase string

const (
	PhaseCountdown Phase = "COUNTDOWN"
	PhaseActive    Phase = "ACTIVE"
	PhaseCrashed   Phase = "CRASHED"
)

const (
	MIN_MULTIPLIER           = 1.00
	DEFAULT_HOUSE_EDGE       = 0.05
	DEFAULT_COUNTDOWN        = 5
	DEFAULT_STARTING_BALANCE = 1000.0
	DEFAULT_GROWTH_SPEED     = 0.1
	DEFAULT_PLAYER_NAME      = "You"
	TICK_INTERVAL            = 50 * time.Millisecond
	ROUND_HISTORY_CAP        = 50
	BET_HISTORY_CAP          = 100
)

// GameState is the single mutable aggregate of the round lifecycle. Only the
// Engine, its Ledger and the AutoCashoutEvaluator write to it.
type GameState struct {
	Phase              Phase
	IsGameActive       bool
	Multiplier         float64
	CrashPoint         float64
	NextRoundCountdown int
	RoundID            int64
	RoundStartedAt     time.Time

	Balance      decimal.Decimal
	Bet          *PlayerBet
	IsBetPending bool
	IsCashedOut  bool
	UserProfit   *decimal.Decimal
}

// PlayerBet is the player's bet for the pending or live round.
// AutoCashout and CashedOutAt are zero when unset.
type PlayerBet struct {
	ID          string
	Amount      decimal.Decimal
	AutoCashout float64
	CashedOutAt float64
	PlacedAt    time.Time
}

// Round is the settled record of one round. FinalMultiplier always equals
// CrashPoint.
type Round struct {
	ID              int64          `json:"id"`
	CrashPoint      float64        `json:"crash_point"`
	FinalMultiplier float64        `json:"final_multiplier"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	Proof           *FairnessProof `json:"proof,omitempty"`
}

// Bet is a finalized bet as remembered in the betting history.
type Bet struct {
	ID          string          `json:"id"`
	RoundID     int64           `json:"round_id"`
	Username    string          `json:"username"`
	BetAmount   decimal.Decimal `json:"bet_amount"`
	AutoCashout *float64        `json:"auto_cashout"`
	CashedOutAt *float64        `json:"cashed_out_at"`
	Profit      decimal.Decimal `json:"profit"`
}

type Stats struct {
	TotalBets         decimal.Decimal `json:"total_bets"`
	TotalPlayers      int             `json:"total_players"`
	HighestMultiplier float64         `json:"highest_multiplier"`
}

// Board is the derived, display-only view of the history.
type Board struct {
	Rounds []Round `json:"rounds"`
	Bets   []Bet   `json:"bets"`
	Stats  Stats   `json:"stats"`
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	Phase              Phase    `json:"phase"`
	IsGameActive       bool     `json:"is_game_active"`
	Multiplier         float64  `json:"multiplier"`
	CrashPoint         float64  `json:"crash_point"`
	NextRoundCountdown int      `json:"next_round_countdown"`
	RoundID            int64    `json:"round_id"`
	Balance            float64  `json:"balance"`
	ActiveBet          *float64 `json:"active_bet"`
	ActiveBetAuto      *float64 `json:"active_bet_auto_cashout"`
	IsBetPending       bool     `json:"is_bet_pending"`
	IsCashedOut        bool     `json:"is_cashed_out"`
	UserProfit         *float64 `json:"user_profit"`
}

// Redacted hides the crash point while the round is still climbing.
func (s Snapshot) Redacted() Snapshot {
	if s.IsGameActive {
		s.CrashPoint = 0
	}
	return s
}

type EventType string

const (
	EventCountdown    EventType = "countdown"
	EventRoundStart   EventType = "round_start"
	EventUpdate       EventType = "update"
	EventCashout      EventType = "cashout"
	EventCrash        EventType = "crash"
	EventRoundSettled EventType = "round_settled"
	EventBetPlaced    EventType = "bet_placed"
	EventBetCancelled EventType = "bet_cancelled"
)

type Event struct {
	Type    EventType   `json:"type"`
	RoundID int64       `json:"round_id"`
	Data    interface{} `json:"data,omitempty"`
}

type RoundStartMessage struct {
	Commitment string `json:"commitment,omitempty"`
	ClientSeed string `json:"client_seed,omitempty"`
	Nonce      int    `json:"nonce,omitempty"`
}

type UpdateMessage struct {
	Multiplier float64 `json:"multiplier"`
}

type CountdownMessage struct {
	Seconds int `json:"seconds"`
}

type CrashMessage struct {
	CrashPoint float64 `json:"crash_point"`
	ServerSeed string  `json:"server_seed,omitempty"`
}

type SettledMessage struct {
	Round Round `json:"round"`
	Bets  []Bet `json:"bets"`
	Stats Stats `json:"stats"`
}

type BetPlacedMessage struct {
	Username    string          `json:"username"`
	Amount      decimal.Decimal `json:"amount"`
	AutoCashout float64         `json:"auto_cashout,omitempty"`
}

type CashoutMessage struct {
	Username   string          `json:"username"`
	Multiplier float64         `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
	Profit     decimal.Decimal `json:"profit"`
}

type BetRequest struct {
	Amount       float64          `json:"amount"`
	AutoCashout  float64          `json:"auto_cashout,omitempty"`
	ResponseChan chan BetResponse `json:"-"`
}

type BetResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Code    string  `json:"code,omitempty"`
	BetID   string  `json:"bet_id,omitempty"`
	Balance float64 `json:"balance"`
}

type CancelRequest struct {
	ResponseChan chan CancelResponse `json:"-"`
}

type CancelResponse struct {
	Success  bool    `json:"success"`
	Message  string  `json:"message"`
	Code     string  `json:"code,omitempty"`
	Refunded float64 `json:"refunded,omitempty"`
	Balance  float64 `json:"balance"`
}

type CashoutRequest struct {
	ResponseChan chan CashoutResponse `json:"-"`
}

type CashoutResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Code       string  `json:"code,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Payout     float64 `json:"payout,omitempty"`
	Profit     float64 `json:"profit,omitempty"`
	Balance    float64 `json:"balance"`
}
