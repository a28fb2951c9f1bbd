package game

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// GrowthFunc maps time since round start to the multiplier. It must be
// monotonically non-decreasing.
type GrowthFunc func(elapsed time.Duration) float64

// PowerGrowth is 1 + speed * t^1.5 with t in seconds, rounded to cents.
func PowerGrowth(speed float64) GrowthFunc {
	return func(elapsed time.Duration) float64 {
		t := elapsed.Seconds()
		if t < 0 {
			t = 0
		}
		return roundMultiplier(1 + math.Pow(t, 1.5)*speed)
	}
}

func roundMultiplier(m float64) float64 {
	return math.Round(m*100) / 100
}

type EngineConfig struct {
	CountdownSeconds int
	StartingBalance  float64
	PlayerName       string
	Growth           GrowthFunc
	CrashPoints      CrashPointGenerator
	Opponents        *OpponentSimulator
	Logger           zerolog.Logger
}

// Engine is the round lifecycle state machine:
// COUNTDOWN -> ACTIVE -> CRASHED -> (settlement) -> COUNTDOWN.
//
// It never reads the wall clock and never spawns goroutines; time only moves
// through Step. Callers must serialize Step and the intent methods.
type Engine struct {
	state       GameState
	ledger      *Ledger
	autoCashout *AutoCashoutEvaluator
	history     *HistoryRecorder
	crashPoints CrashPointGenerator
	opponents   *OpponentSimulator
	growth      GrowthFunc
	listener    func(Event)
	logger      zerolog.Logger

	countdownSeconds int
	playerName       string
	roundSeq         int64
	proof            *FairnessProof
	nextCountdownAt  time.Time
	lastStep         time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = DEFAULT_COUNTDOWN
	}
	if cfg.PlayerName == "" {
		cfg.PlayerName = DEFAULT_PLAYER_NAME
	}
	if cfg.Growth == nil {
		cfg.Growth = PowerGrowth(DEFAULT_GROWTH_SPEED)
	}

	e := &Engine{
		state: GameState{
			Phase:              PhaseCountdown,
			Multiplier:         MIN_MULTIPLIER,
			CrashPoint:         MIN_MULTIPLIER,
			NextRoundCountdown: cfg.CountdownSeconds,
			Balance:            decimal.NewFromFloat(cfg.StartingBalance),
		},
		history:          NewHistoryRecorder(),
		crashPoints:      cfg.CrashPoints,
		opponents:        cfg.Opponents,
		growth:           cfg.Growth,
		logger:           cfg.Logger,
		countdownSeconds: cfg.CountdownSeconds,
		playerName:       cfg.PlayerName,
	}
	e.ledger = NewLedger(&e.state)
	e.autoCashout = NewAutoCashoutEvaluator(e.ledger)
	return e
}

// SetListener installs the callback receiving every engine event. It runs
// synchronously on the caller of Step or the intent method.
func (e *Engine) SetListener(fn func(Event)) {
	e.listener = fn
}

func (e *Engine) emit(t EventType, data interface{}) {
	if e.listener == nil {
		return
	}
	e.listener(Event{Type: t, RoundID: e.state.RoundID, Data: data})
}

// Step advances the state machine to now.
func (e *Engine) Step(now time.Time) {
	e.lastStep = now

	switch e.state.Phase {
	case PhaseCountdown:
		e.stepCountdown(now)
	case PhaseActive:
		e.stepActive(now)
	}
}

func (e *Engine) stepCountdown(now time.Time) {
	if e.nextCountdownAt.IsZero() {
		e.nextCountdownAt = now.Add(time.Second)
		return
	}

	for !now.Before(e.nextCountdownAt) {
		e.state.NextRoundCountdown--
		if e.state.NextRoundCountdown <= 0 {
			e.state.NextRoundCountdown = 0
			e.startRound(now)
			return
		}
		e.emit(EventCountdown, CountdownMessage{Seconds: e.state.NextRoundCountdown})
		e.nextCountdownAt = e.nextCountdownAt.Add(time.Second)
	}
}

func (e *Engine) startRound(now time.Time) {
	e.roundSeq++
	crashPoint := e.crashPoints.Generate()
	if crashPoint < MIN_MULTIPLIER {
		crashPoint = MIN_MULTIPLIER
	}

	e.proof = nil
	if p, ok := e.crashPoints.(Prover); ok {
		e.proof = p.Proof()
	}

	s := &e.state
	s.Phase = PhaseActive
	s.RoundID = e.roundSeq
	s.CrashPoint = crashPoint
	s.Multiplier = MIN_MULTIPLIER
	s.IsGameActive = true
	s.IsCashedOut = false
	s.UserProfit = nil
	s.RoundStartedAt = now
	e.ledger.commit()

	start := RoundStartMessage{}
	if e.proof != nil {
		start.Commitment = e.proof.Commitment
		start.ClientSeed = e.proof.ClientSeed
		start.Nonce = e.proof.Nonce
	}
	e.emit(EventRoundStart, start)

	if e.opponents != nil {
		for _, b := range e.opponents.Deal(s.RoundID) {
			msg := BetPlacedMessage{Username: b.Username, Amount: b.BetAmount}
			if b.AutoCashout != nil {
				msg.AutoCashout = *b.AutoCashout
			}
			e.emit(EventBetPlaced, msg)
		}
	}

	e.logger.Info().
		Int64("round_id", s.RoundID).
		Bool("player_in", s.Bet != nil).
		Msg("round started")

	// A 1.00x crash point is already reached at start; no intent may run
	// against the live round.
	if s.Multiplier >= s.CrashPoint {
		e.crash(now)
	}
}

func (e *Engine) stepActive(now time.Time) {
	s := &e.state

	m := roundMultiplier(e.growth(now.Sub(s.RoundStartedAt)))
	if m < s.Multiplier {
		m = s.Multiplier
	}

	if m >= s.CrashPoint {
		e.crash(now)
		return
	}

	s.Multiplier = m
	e.emit(EventUpdate, UpdateMessage{Multiplier: m})

	if result, ok := e.autoCashout.Evaluate(m); ok {
		e.emit(EventCashout, CashoutMessage{
			Username:   e.playerName,
			Multiplier: result.Multiplier,
			Payout:     result.Payout,
			Profit:     result.Profit,
		})
		e.logger.Info().
			Int64("round_id", s.RoundID).
			Float64("multiplier", result.Multiplier).
			Str("profit", result.Profit.StringFixed(2)).
			Msg("auto cashout")
	}

	if e.opponents != nil {
		for _, b := range e.opponents.Advance(m) {
			e.emit(EventCashout, CashoutMessage{
				Username:   b.Username,
				Multiplier: m,
				Payout:     b.BetAmount.Add(b.Profit),
				Profit:     b.Profit,
			})
		}
	}
}

// crash cuts the round off at exactly the crash point and settles it.
func (e *Engine) crash(now time.Time) {
	s := &e.state
	s.Multiplier = s.CrashPoint
	s.Phase = PhaseCrashed

	msg := CrashMessage{CrashPoint: s.CrashPoint}
	if e.proof != nil {
		msg.ServerSeed = e.proof.ServerSeed
	}
	e.emit(EventCrash, msg)

	e.settle(now)
}

func (e *Engine) settle(now time.Time) {
	s := &e.state

	round := Round{
		ID:              s.RoundID,
		CrashPoint:      s.CrashPoint,
		FinalMultiplier: s.CrashPoint,
		StartedAt:       s.RoundStartedAt,
		EndedAt:         now,
		Proof:           e.proof,
	}

	bets := make([]Bet, 0, 4)
	if b, ok := e.ledger.settle(round.ID, e.playerName); ok {
		bets = append(bets, b)
	}
	if e.opponents != nil {
		bets = append(bets, e.opponents.Settle()...)
	}
	e.history.Record(round, bets)

	s.IsGameActive = false
	s.Phase = PhaseCountdown
	s.NextRoundCountdown = e.countdownSeconds
	e.nextCountdownAt = now.Add(time.Second)

	e.emit(EventRoundSettled, SettledMessage{
		Round: round,
		Bets:  bets,
		Stats: e.history.Stats(),
	})

	e.logger.Info().
		Int64("round_id", round.ID).
		Float64("crash_point", round.CrashPoint).
		Int("bets", len(bets)).
		Str("balance", s.Balance.StringFixed(2)).
		Msg("round settled")
}

func (e *Engine) PlaceBet(amount, autoCashout float64) (PlayerBet, error) {
	bet, err := e.ledger.PlaceBet(amount, autoCashout, e.lastStep)
	if err != nil {
		e.logger.Debug().Err(err).Float64("amount", amount).Msg("bet rejected")
		return PlayerBet{}, err
	}
	e.emit(EventBetPlaced, BetPlacedMessage{
		Username:    e.playerName,
		Amount:      bet.Amount,
		AutoCashout: bet.AutoCashout,
	})
	e.logger.Info().
		Str("bet_id", bet.ID).
		Str("amount", bet.Amount.StringFixed(2)).
		Float64("auto_cashout", bet.AutoCashout).
		Msg("bet pending")
	return bet, nil
}

func (e *Engine) CancelBet() (decimal.Decimal, error) {
	refund, err := e.ledger.CancelBet()
	if err != nil {
		e.logger.Debug().Err(err).Msg("cancel ignored")
		return decimal.Zero, err
	}
	e.emit(EventBetCancelled, nil)
	e.logger.Info().Str("refund", refund.StringFixed(2)).Msg("bet cancelled")
	return refund, nil
}

// Cashout cashes the live bet out at the current tick's multiplier.
func (e *Engine) Cashout() (CashoutResult, error) {
	result, err := e.ledger.Cashout(e.state.Multiplier)
	if err != nil {
		e.logger.Debug().Err(err).Msg("cashout ignored")
		return CashoutResult{}, err
	}
	e.emit(EventCashout, CashoutMessage{
		Username:   e.playerName,
		Multiplier: result.Multiplier,
		Payout:     result.Payout,
		Profit:     result.Profit,
	})
	e.logger.Info().
		Int64("round_id", e.state.RoundID).
		Float64("multiplier", result.Multiplier).
		Str("profit", result.Profit.StringFixed(2)).
		Msg("cashout")
	return result, nil
}

func (e *Engine) Balance() decimal.Decimal {
	return e.state.Balance
}

func (e *Engine) Snapshot() Snapshot {
	s := e.state
	snap := Snapshot{
		Phase:              s.Phase,
		IsGameActive:       s.IsGameActive,
		Multiplier:         s.Multiplier,
		CrashPoint:         s.CrashPoint,
		NextRoundCountdown: s.NextRoundCountdown,
		RoundID:            s.RoundID,
		Balance:            s.Balance.InexactFloat64(),
		IsBetPending:       s.IsBetPending,
		IsCashedOut:        s.IsCashedOut,
	}
	if s.Bet != nil {
		amount := s.Bet.Amount.InexactFloat64()
		snap.ActiveBet = &amount
		if s.Bet.AutoCashout > 0 {
			auto := s.Bet.AutoCashout
			snap.ActiveBetAuto = &auto
		}
	}
	if s.UserProfit != nil {
		profit := s.UserProfit.InexactFloat64()
		snap.UserProfit = &profit
	}
	return snap
}

func (e *Engine) Board() Board {
	return e.history.Board()
}
