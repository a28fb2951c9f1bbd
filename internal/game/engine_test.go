package game

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// linearGrowth climbs one whole multiplier per second so tick times map
// directly onto multipliers.
func linearGrowth(elapsed time.Duration) float64 {
	return 1 + elapsed.Seconds()
}

func scriptedCrashes(points ...float64) CrashPointGenerator {
	i := 0
	return CrashPointFunc(func() float64 {
		p := points[i%len(points)]
		i++
		return p
	})
}

type eventLog struct {
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func (l *eventLog) count(t EventType) int {
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func newTestEngine(crashes ...float64) (*Engine, *eventLog) {
	e := NewEngine(EngineConfig{
		CountdownSeconds: 5,
		StartingBalance:  1000,
		Growth:           linearGrowth,
		CrashPoints:      scriptedCrashes(crashes...),
		Logger:           zerolog.Nop(),
	})
	log := &eventLog{}
	e.SetListener(log.record)
	return e, log
}

// runCountdown steps once per second from t until the round starts and
// returns the start time.
func runCountdown(t *testing.T, e *Engine, from time.Time) time.Time {
	t.Helper()
	round := e.state.RoundID
	now := from
	e.Step(now)
	for i := 0; i < 10; i++ {
		if e.state.RoundID > round {
			return now
		}
		now = now.Add(time.Second)
		e.Step(now)
	}
	if e.state.RoundID == round {
		t.Fatalf("round did not start, phase = %s", e.state.Phase)
	}
	return now
}

func TestEngine_InitialState(t *testing.T) {
	e, _ := newTestEngine(2)
	snap := e.Snapshot()

	if snap.Phase != PhaseCountdown {
		t.Errorf("phase = %s, want COUNTDOWN", snap.Phase)
	}
	if snap.IsGameActive {
		t.Error("game should not be active")
	}
	if snap.Multiplier != 1.0 {
		t.Errorf("multiplier = %v, want 1.0", snap.Multiplier)
	}
	if snap.NextRoundCountdown != 5 {
		t.Errorf("countdown = %d, want 5", snap.NextRoundCountdown)
	}
	if snap.Balance != 1000 {
		t.Errorf("balance = %v, want 1000", snap.Balance)
	}
	if snap.ActiveBet != nil || snap.IsBetPending || snap.IsCashedOut {
		t.Error("no bet should be present")
	}
}

func TestEngine_Countdown(t *testing.T) {
	e, log := newTestEngine(2)

	e.Step(epoch)
	if e.state.NextRoundCountdown != 5 {
		t.Fatalf("countdown = %d after anchoring step, want 5", e.state.NextRoundCountdown)
	}

	e.Step(epoch.Add(500 * time.Millisecond))
	if e.state.NextRoundCountdown != 5 {
		t.Errorf("countdown = %d before a full second, want 5", e.state.NextRoundCountdown)
	}

	for i := 1; i <= 4; i++ {
		e.Step(epoch.Add(time.Duration(i) * time.Second))
		if got := e.state.NextRoundCountdown; got != 5-i {
			t.Errorf("after %ds countdown = %d, want %d", i, got, 5-i)
		}
	}
	if e.state.Phase != PhaseCountdown {
		t.Fatalf("phase = %s before countdown expired", e.state.Phase)
	}

	e.Step(epoch.Add(5 * time.Second))
	if e.state.Phase != PhaseActive {
		t.Fatalf("phase = %s, want ACTIVE", e.state.Phase)
	}
	if e.state.RoundID != 1 {
		t.Errorf("round id = %d, want 1", e.state.RoundID)
	}
	if n := log.count(EventCountdown); n != 4 {
		t.Errorf("countdown events = %d, want 4", n)
	}
	if n := log.count(EventRoundStart); n != 1 {
		t.Errorf("round_start events = %d, want 1", n)
	}
}

func TestEngine_CountdownCatchesUp(t *testing.T) {
	e, _ := newTestEngine(2)
	e.Step(epoch)

	// A stalled tick source covers several seconds at once.
	e.Step(epoch.Add(3 * time.Second))
	if got := e.state.NextRoundCountdown; got != 2 {
		t.Errorf("countdown = %d, want 2", got)
	}
}

func TestEngine_LostBet(t *testing.T) {
	e, log := newTestEngine(1.45)
	e.Step(epoch)

	if _, err := e.PlaceBet(100, 0); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	start := runCountdown(t, e, epoch.Add(time.Second))

	e.Step(start.Add(200 * time.Millisecond))
	if e.state.Multiplier != 1.2 {
		t.Errorf("multiplier = %v, want 1.2", e.state.Multiplier)
	}

	e.Step(start.Add(450 * time.Millisecond))

	if e.state.Phase != PhaseCountdown {
		t.Errorf("phase = %s, want COUNTDOWN after settlement", e.state.Phase)
	}
	if e.state.Multiplier != 1.45 {
		t.Errorf("multiplier = %v, want 1.45", e.state.Multiplier)
	}
	if !e.Balance().Equal(decimal.NewFromInt(900)) {
		t.Errorf("balance = %s, want 900", e.Balance())
	}

	board := e.Board()
	if len(board.Rounds) != 1 {
		t.Fatalf("rounds = %d, want 1", len(board.Rounds))
	}
	if r := board.Rounds[0]; r.CrashPoint != 1.45 || r.FinalMultiplier != 1.45 {
		t.Errorf("round = %+v, want crash and final 1.45", r)
	}
	if len(board.Bets) != 1 || !board.Bets[0].Profit.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("bets = %+v, want one bet with profit -100", board.Bets)
	}

	types := log.types()
	crashAt, settledAt := -1, -1
	for i, tp := range types {
		switch tp {
		case EventCrash:
			crashAt = i
		case EventRoundSettled:
			settledAt = i
		}
	}
	if crashAt < 0 || settledAt != crashAt+1 {
		t.Errorf("events = %v, want crash immediately followed by round_settled", types)
	}
}

func TestEngine_AutoCashout(t *testing.T) {
	e, log := newTestEngine(5.0)
	e.Step(epoch)

	if _, err := e.PlaceBet(100, 3.0); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	start := runCountdown(t, e, epoch.Add(time.Second))

	e.Step(start.Add(1 * time.Second))
	e.Step(start.Add(2010 * time.Millisecond))

	if !e.state.IsCashedOut {
		t.Fatal("auto cashout should have fired at 3.01")
	}
	if !e.Balance().Equal(decimal.NewFromInt(1201)) {
		t.Errorf("balance = %s, want 1201", e.Balance())
	}
	if n := log.count(EventCashout); n != 1 {
		t.Errorf("cashout events = %d, want 1", n)
	}

	e.Step(start.Add(3 * time.Second))
	e.Step(start.Add(4 * time.Second))

	if e.state.IsGameActive {
		t.Fatal("round should have crashed at 5.0")
	}
	if !e.Balance().Equal(decimal.NewFromInt(1201)) {
		t.Errorf("balance after crash = %s, want 1201", e.Balance())
	}
	if n := log.count(EventCashout); n != 1 {
		t.Errorf("cashout events = %d after crash, want 1", n)
	}

	bets := e.Board().Bets
	if len(bets) != 1 {
		t.Fatalf("bets = %d, want 1", len(bets))
	}
	if bets[0].CashedOutAt == nil || *bets[0].CashedOutAt != 3.01 {
		t.Errorf("cashed out at = %v, want 3.01", bets[0].CashedOutAt)
	}
	if !bets[0].Profit.Equal(decimal.NewFromInt(201)) {
		t.Errorf("profit = %s, want 201", bets[0].Profit)
	}
}

func TestEngine_NoAutoCashoutPastCrash(t *testing.T) {
	e, _ := newTestEngine(2.0)
	e.Step(epoch)
	e.PlaceBet(100, 2.5)
	start := runCountdown(t, e, epoch.Add(time.Second))

	// Jumps straight past both the crash point and the threshold.
	e.Step(start.Add(3 * time.Second))

	if e.state.IsCashedOut {
		t.Error("auto cashout must not fire on the crash tick")
	}
	if !e.Balance().Equal(decimal.NewFromInt(900)) {
		t.Errorf("balance = %s, want 900", e.Balance())
	}
}

func TestEngine_ManualCashout(t *testing.T) {
	e, _ := newTestEngine(4.0)
	e.Step(epoch)
	e.PlaceBet(50, 0)
	start := runCountdown(t, e, epoch.Add(time.Second))

	e.Step(start.Add(500 * time.Millisecond))

	result, err := e.Cashout()
	if err != nil {
		t.Fatalf("Cashout() error = %v", err)
	}
	if result.Multiplier != 1.5 {
		t.Errorf("multiplier = %v, want 1.5", result.Multiplier)
	}
	if !e.Balance().Equal(decimal.NewFromInt(1025)) {
		t.Errorf("balance = %s, want 1025", e.Balance())
	}

	if _, err := e.Cashout(); !errors.Is(err, ErrAlreadyCashedOut) {
		t.Errorf("second Cashout() error = %v, want ErrAlreadyCashedOut", err)
	}

	snap := e.Snapshot()
	if snap.UserProfit == nil || *snap.UserProfit != 25 {
		t.Errorf("user profit = %v, want 25", snap.UserProfit)
	}
}

func TestEngine_InstantCrash(t *testing.T) {
	e, log := newTestEngine(1.0)
	e.Step(epoch)
	e.PlaceBet(100, 1.01)
	start := runCountdown(t, e, epoch.Add(time.Second))

	e.Step(start.Add(time.Millisecond))

	if e.state.IsGameActive {
		t.Fatal("round should crash on its first active tick")
	}
	if n := log.count(EventUpdate); n != 0 {
		t.Errorf("update events = %d, want 0", n)
	}
	if !e.Balance().Equal(decimal.NewFromInt(900)) {
		t.Errorf("balance = %s, want 900", e.Balance())
	}
	if r := e.Board().Rounds[0]; r.CrashPoint != 1.0 || r.FinalMultiplier != 1.0 {
		t.Errorf("round = %+v, want 1.0 crash", r)
	}
}

func TestEngine_InstantCrashSettlesAtStart(t *testing.T) {
	e, log := newTestEngine(1.0)
	e.Step(epoch)
	e.PlaceBet(100, 0)
	runCountdown(t, e, epoch.Add(time.Second))

	if e.state.IsGameActive || e.state.Phase != PhaseCountdown {
		t.Fatalf("phase = %s active = %v, want settled on the start step", e.state.Phase, e.state.IsGameActive)
	}

	if _, err := e.Cashout(); !errors.Is(err, ErrNoActiveBet) {
		t.Errorf("Cashout() error = %v, want ErrNoActiveBet", err)
	}
	if !e.Balance().Equal(decimal.NewFromInt(900)) {
		t.Errorf("balance = %s, want 900", e.Balance())
	}

	bets := e.Board().Bets
	if len(bets) != 1 || !bets[0].Profit.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("bets = %+v, want one bet with profit -100", bets)
	}

	types := log.types()
	if len(types) < 3 || types[len(types)-3] != EventRoundStart ||
		types[len(types)-2] != EventCrash || types[len(types)-1] != EventRoundSettled {
		t.Errorf("events = %v, want round_start, crash, round_settled", types)
	}
}

func TestEngine_RejectsBetDuringRound(t *testing.T) {
	e, _ := newTestEngine(10)
	e.Step(epoch)
	start := runCountdown(t, e, epoch.Add(time.Second))
	e.Step(start.Add(100 * time.Millisecond))

	if _, err := e.PlaceBet(100, 0); !errors.Is(err, ErrRoundInProgress) {
		t.Errorf("PlaceBet() error = %v, want ErrRoundInProgress", err)
	}
	if _, err := e.CancelBet(); !errors.Is(err, ErrNoPendingBet) {
		t.Errorf("CancelBet() error = %v, want ErrNoPendingBet", err)
	}
	if !e.Balance().Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance = %s, want 1000", e.Balance())
	}
}

func TestEngine_CancelBet(t *testing.T) {
	e, log := newTestEngine(2)
	e.Step(epoch)

	e.PlaceBet(250, 0)
	refund, err := e.CancelBet()
	if err != nil {
		t.Fatalf("CancelBet() error = %v", err)
	}
	if !refund.Equal(decimal.NewFromInt(250)) {
		t.Errorf("refund = %s, want 250", refund)
	}
	if !e.Balance().Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance = %s, want 1000", e.Balance())
	}
	if log.count(EventBetPlaced) != 1 || log.count(EventBetCancelled) != 1 {
		t.Errorf("events = %v, want one bet_placed and one bet_cancelled", log.types())
	}
}

func TestEngine_MultiplierNeverDecreases(t *testing.T) {
	e := NewEngine(EngineConfig{
		Growth: func(elapsed time.Duration) float64 {
			if elapsed > time.Second {
				return 1.1
			}
			return 1.5
		},
		CrashPoints: scriptedCrashes(10),
		Logger:      zerolog.Nop(),
	})
	e.Step(epoch)
	start := runCountdown(t, e, epoch.Add(time.Second))

	e.Step(start.Add(500 * time.Millisecond))
	e.Step(start.Add(2 * time.Second))

	if e.state.Multiplier != 1.5 {
		t.Errorf("multiplier = %v, want 1.5", e.state.Multiplier)
	}
}

func TestEngine_ConsecutiveRounds(t *testing.T) {
	e, _ := newTestEngine(1.5, 2.5, 1.0)
	now := epoch

	for want := int64(1); want <= 3; want++ {
		start := runCountdown(t, e, now)
		if e.state.RoundID != want {
			t.Fatalf("round id = %d, want %d", e.state.RoundID, want)
		}
		now = start
		if e.state.Phase == PhaseActive {
			now = start.Add(5 * time.Second)
			e.Step(now)
		}
		if e.state.Phase != PhaseCountdown || e.state.NextRoundCountdown != 5 {
			t.Fatalf("after round %d phase = %s countdown = %d", want, e.state.Phase, e.state.NextRoundCountdown)
		}
		now = now.Add(time.Second)
	}

	rounds := e.Board().Rounds
	if len(rounds) != 3 {
		t.Fatalf("rounds = %d, want 3", len(rounds))
	}
	if rounds[0].ID != 3 || rounds[0].CrashPoint != 1.0 {
		t.Errorf("newest round = %+v, want round 3 crashing at 1.0", rounds[0])
	}
	if got := e.Board().Stats.HighestMultiplier; got != 2.5 {
		t.Errorf("highest multiplier = %v, want 2.5", got)
	}
}

func TestEngine_FairRoundVerifies(t *testing.T) {
	e := NewEngine(EngineConfig{
		Growth: func(elapsed time.Duration) float64 {
			return 1 + elapsed.Seconds()*1e9
		},
		CrashPoints: NewCrashPointGenerator(NewFairSource("client"), DEFAULT_HOUSE_EDGE),
		Logger:      zerolog.Nop(),
	})
	log := &eventLog{}
	e.SetListener(log.record)

	e.Step(epoch)
	start := runCountdown(t, e, epoch.Add(time.Second))
	e.Step(start.Add(time.Second))

	var commitment, revealed string
	for _, ev := range log.events {
		switch msg := ev.Data.(type) {
		case RoundStartMessage:
			commitment = msg.Commitment
		case CrashMessage:
			revealed = msg.ServerSeed
		}
	}
	if commitment == "" || revealed == "" {
		t.Fatalf("commitment = %q, revealed = %q, want both set", commitment, revealed)
	}
	if HashCommitment(revealed) != commitment {
		t.Error("revealed seed does not match the published commitment")
	}

	round := e.Board().Rounds[0]
	if round.Proof == nil {
		t.Fatal("settled round should carry its proof")
	}
	if !VerifyRound(*round.Proof, DEFAULT_HOUSE_EDGE, round.CrashPoint) {
		t.Errorf("round crashing at %.2f did not verify", round.CrashPoint)
	}
}

func TestEngine_Opponents(t *testing.T) {
	e, log := newTestEngine(3.0)
	e.opponents = &OpponentSimulator{max: 0}
	low := 1.5
	e.Step(epoch)
	start := runCountdown(t, e, epoch.Add(time.Second))

	e.opponents.bets = []*opponentBet{
		{bet: Bet{ID: "o1", RoundID: 1, Username: "AcePilot1", BetAmount: decimal.NewFromInt(10), AutoCashout: &low}, target: low},
		{bet: Bet{ID: "o2", RoundID: 1, Username: "FlyHigh2", BetAmount: decimal.NewFromInt(20)}},
	}

	e.Step(start.Add(600 * time.Millisecond))
	if n := log.count(EventCashout); n != 1 {
		t.Errorf("cashout events = %d, want 1", n)
	}

	e.Step(start.Add(3 * time.Second))

	bets := e.Board().Bets
	if len(bets) != 2 {
		t.Fatalf("bets = %d, want 2", len(bets))
	}
	if !e.Balance().Equal(decimal.NewFromInt(1000)) {
		t.Errorf("player balance = %s, opponents must not touch it", e.Balance())
	}
}

func TestSnapshot_Redacted(t *testing.T) {
	e, _ := newTestEngine(7.77)
	e.Step(epoch)
	start := runCountdown(t, e, epoch.Add(time.Second))
	e.Step(start.Add(100 * time.Millisecond))

	snap := e.Snapshot()
	if snap.CrashPoint != 7.77 {
		t.Errorf("internal crash point = %v, want 7.77", snap.CrashPoint)
	}
	if got := snap.Redacted().CrashPoint; got != 0 {
		t.Errorf("redacted crash point = %v, want hidden", got)
	}

	e.Step(start.Add(10 * time.Second))
	if got := e.Snapshot().Redacted().CrashPoint; got != 7.77 {
		t.Errorf("crash point after round = %v, want 7.77", got)
	}
}

func TestPowerGrowth(t *testing.T) {
	g := PowerGrowth(0.1)

	if got := g(0); got != 1.0 {
		t.Errorf("g(0) = %v, want 1.0", got)
	}
	if got := g(4 * time.Second); got != 1.8 {
		t.Errorf("g(4s) = %v, want 1.8", got)
	}

	prev := 0.0
	for ms := 0; ms <= 30000; ms += 50 {
		m := g(time.Duration(ms) * time.Millisecond)
		if m < prev {
			t.Fatalf("growth decreased at %dms: %v < %v", ms, m, prev)
		}
		prev = m
	}
}
