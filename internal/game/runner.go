package game

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const INTENT_QUEUE_SIZE = 64

// Ticker is the tick source driving the engine. Production binds it to
// time.Ticker; tests feed synthetic timestamps.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type wallTicker struct {
	t *time.Ticker
}

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

func NewWallTicker(d time.Duration) Ticker {
	return wallTicker{t: time.NewTicker(d)}
}

// EventSink receives engine events. Publish must not block.
type EventSink interface {
	Publish(ev Event)
}

type RunnerOption func(*Runner)

func WithTicker(newTicker func(time.Duration) Ticker) RunnerOption {
	return func(r *Runner) {
		r.newTicker = newTicker
	}
}

func WithSinks(sinks ...EventSink) RunnerOption {
	return func(r *Runner) {
		r.sinks = append(r.sinks, sinks...)
	}
}

// Runner owns an Engine on a single goroutine. Ticks and player intents are
// interleaved on that goroutine only, so the engine never sees concurrent
// access; readers get the latest published Snapshot and Board.
type Runner struct {
	engine    *Engine
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	sinks     []EventSink
	logger    zerolog.Logger

	betChannel     chan BetRequest
	cancelChannel  chan CancelRequest
	cashoutChannel chan CashoutRequest
	stopChan       chan struct{}
	done           chan struct{}
	started        atomic.Bool
	stopOnce       sync.Once

	snapshot atomic.Pointer[Snapshot]
	board    atomic.Pointer[Board]
}

func NewRunner(engine *Engine, interval time.Duration, logger zerolog.Logger, opts ...RunnerOption) *Runner {
	if interval <= 0 {
		interval = TICK_INTERVAL
	}
	r := &Runner{
		engine:         engine,
		interval:       interval,
		newTicker:      NewWallTicker,
		logger:         logger,
		betChannel:     make(chan BetRequest, INTENT_QUEUE_SIZE),
		cancelChannel:  make(chan CancelRequest, INTENT_QUEUE_SIZE),
		cashoutChannel: make(chan CashoutRequest, INTENT_QUEUE_SIZE),
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	engine.SetListener(r.dispatch)
	r.publishSnapshot()
	board := engine.Board()
	r.board.Store(&board)

	return r
}

func (r *Runner) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.loop()
}

// Stop halts the loop and waits for it; the ticker is stopped before Stop
// returns.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	if r.started.Load() {
		<-r.done
	}
}

func (r *Runner) loop() {
	defer close(r.done)

	ticker := r.newTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("tick", r.interval).Msg("round loop started")

	for {
		select {
		case <-r.stopChan:
			r.logger.Info().Msg("round loop stopped")
			return

		case now := <-ticker.C():
			r.engine.Step(now)
			r.publishSnapshot()

		// Snapshots are published before replying so a caller never reads
		// state older than its own intent.
		case req := <-r.betChannel:
			resp := r.processBet(req)
			r.publishSnapshot()
			req.ResponseChan <- resp

		case req := <-r.cancelChannel:
			resp := r.processCancel()
			r.publishSnapshot()
			req.ResponseChan <- resp

		case req := <-r.cashoutChannel:
			resp := r.processCashout()
			r.publishSnapshot()
			req.ResponseChan <- resp
		}
	}
}

func (r *Runner) dispatch(ev Event) {
	if ev.Type == EventRoundSettled {
		board := r.engine.Board()
		r.board.Store(&board)
	}
	for _, sink := range r.sinks {
		sink.Publish(ev)
	}
}

func (r *Runner) publishSnapshot() {
	snap := r.engine.Snapshot()
	r.snapshot.Store(&snap)
}

func (r *Runner) Snapshot() Snapshot {
	return *r.snapshot.Load()
}

func (r *Runner) Board() Board {
	return *r.board.Load()
}

func (r *Runner) processBet(req BetRequest) BetResponse {
	bet, err := r.engine.PlaceBet(req.Amount, req.AutoCashout)
	balance := r.engine.Balance().InexactFloat64()
	if err != nil {
		return BetResponse{Message: err.Error(), Code: Code(err), Balance: balance}
	}
	return BetResponse{
		Success: true,
		Message: "Bet placed for next round",
		BetID:   bet.ID,
		Balance: balance,
	}
}

func (r *Runner) processCancel() CancelResponse {
	refund, err := r.engine.CancelBet()
	balance := r.engine.Balance().InexactFloat64()
	if err != nil {
		return CancelResponse{Message: err.Error(), Code: Code(err), Balance: balance}
	}
	return CancelResponse{
		Success:  true,
		Message:  "Bet cancelled",
		Refunded: refund.InexactFloat64(),
		Balance:  balance,
	}
}

func (r *Runner) processCashout() CashoutResponse {
	result, err := r.engine.Cashout()
	if err != nil {
		return CashoutResponse{
			Message: err.Error(),
			Code:    Code(err),
			Balance: r.engine.Balance().InexactFloat64(),
		}
	}
	return CashoutResponse{
		Success:    true,
		Message:    fmt.Sprintf("Cashed out at %.2fx", result.Multiplier),
		Multiplier: result.Multiplier,
		Payout:     result.Payout.InexactFloat64(),
		Profit:     result.Profit.InexactFloat64(),
		Balance:    result.Balance.InexactFloat64(),
	}
}

func (r *Runner) PlaceBet(ctx context.Context, req BetRequest) BetResponse {
	req.ResponseChan = make(chan BetResponse, 1)

	select {
	case r.betChannel <- req:
	case <-r.stopChan:
		return BetResponse{Message: ErrEngineStopped.Error(), Code: CodeUnavailable}
	default:
		return BetResponse{Message: ErrQueueFull.Error(), Code: CodeUnavailable}
	}

	select {
	case resp := <-req.ResponseChan:
		return resp
	case <-ctx.Done():
		return BetResponse{Message: ctx.Err().Error(), Code: CodeUnavailable}
	case <-r.stopChan:
		return BetResponse{Message: ErrEngineStopped.Error(), Code: CodeUnavailable}
	}
}

func (r *Runner) CancelBet(ctx context.Context) CancelResponse {
	req := CancelRequest{ResponseChan: make(chan CancelResponse, 1)}

	select {
	case r.cancelChannel <- req:
	case <-r.stopChan:
		return CancelResponse{Message: ErrEngineStopped.Error(), Code: CodeUnavailable}
	default:
		return CancelResponse{Message: ErrQueueFull.Error(), Code: CodeUnavailable}
	}

	select {
	case resp := <-req.ResponseChan:
		return resp
	case <-ctx.Done():
		return CancelResponse{Message: ctx.Err().Error(), Code: CodeUnavailable}
	case <-r.stopChan:
		return CancelResponse{Message: ErrEngineStopped.Error(), Code: CodeUnavailable}
	}
}

func (r *Runner) Cashout(ctx context.Context) CashoutResponse {
	req := CashoutRequest{ResponseChan: make(chan CashoutResponse, 1)}

	select {
	case r.cashoutChannel <- req:
	case <-r.stopChan:
		return CashoutResponse{Message: ErrEngineStopped.Error(), Code: CodeUnavailable}
	default:
		return CashoutResponse{Message: ErrQueueFull.Error(), Code: CodeUnavailable}
	}

	select {
	case resp := <-req.ResponseChan:
		return resp
	case <-ctx.Done():
		return CashoutResponse{Message: ctx.Err().Error(), Code: CodeUnavailable}
	case <-r.stopChan:
		return CashoutResponse{Message: ErrEngineStopped.Error(), Code: CodeUnavailable}
	}
}
