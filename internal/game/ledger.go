package game

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashoutResult describes a successful cashout.
type CashoutResult struct {
	Multiplier float64
	Payout     decimal.Decimal
	Profit     decimal.Decimal
	Balance    decimal.Decimal
}

// Ledger holds the player's bet and balance operations. Every rejection leaves
// the state untouched.
type Ledger struct {
	state *GameState
}

func NewLedger(state *GameState) *Ledger {
	return &Ledger{state: state}
}

// PlaceBet reserves amount for the next round. autoCashout of 0 means no
// threshold.
func (l *Ledger) PlaceBet(amount, autoCashout float64, now time.Time) (PlayerBet, error) {
	s := l.state

	if s.IsGameActive {
		return PlayerBet{}, ErrRoundInProgress
	}
	if s.Bet != nil {
		return PlayerBet{}, ErrBetAlreadyPending
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return PlayerBet{}, ErrInvalidAmount
	}
	stake := decimal.NewFromFloat(amount)
	if stake.GreaterThan(s.Balance) {
		return PlayerBet{}, ErrInsufficientBalance
	}
	if math.IsNaN(autoCashout) || math.IsInf(autoCashout, 0) || autoCashout < 0 ||
		(autoCashout > 0 && autoCashout <= MIN_MULTIPLIER) {
		return PlayerBet{}, ErrInvalidAutoCashout
	}

	bet := &PlayerBet{
		ID:          uuid.NewString(),
		Amount:      stake,
		AutoCashout: autoCashout,
		PlacedAt:    now,
	}
	s.Balance = s.Balance.Sub(stake)
	s.Bet = bet
	s.IsBetPending = true

	return *bet, nil
}

// CancelBet refunds the pending bet in full.
func (l *Ledger) CancelBet() (decimal.Decimal, error) {
	s := l.state
	if !s.IsBetPending || s.Bet == nil {
		return decimal.Zero, ErrNoPendingBet
	}

	refund := s.Bet.Amount
	s.Balance = s.Balance.Add(refund)
	s.Bet = nil
	s.IsBetPending = false

	return refund, nil
}

// Cashout settles the live bet at multiplier. Succeeds at most once per round.
func (l *Ledger) Cashout(multiplier float64) (CashoutResult, error) {
	s := l.state

	if s.Bet == nil || s.IsBetPending {
		return CashoutResult{}, ErrNoActiveBet
	}
	if !s.IsGameActive {
		return CashoutResult{}, ErrRoundNotActive
	}
	if s.IsCashedOut {
		return CashoutResult{}, ErrAlreadyCashedOut
	}

	profit := Profit(s.Bet.Amount, multiplier)
	payout := s.Bet.Amount.Add(profit)

	s.Balance = s.Balance.Add(payout)
	s.IsCashedOut = true
	s.UserProfit = &profit
	s.Bet.CashedOutAt = multiplier

	return CashoutResult{
		Multiplier: multiplier,
		Payout:     payout,
		Profit:     profit,
		Balance:    s.Balance,
	}, nil
}

// commit turns the pending bet into the live bet of the round that just
// started.
func (l *Ledger) commit() {
	l.state.IsBetPending = false
}

// settle finalizes the live bet into a history record and clears it.
func (l *Ledger) settle(roundID int64, username string) (Bet, bool) {
	s := l.state
	if s.Bet == nil || s.IsBetPending {
		return Bet{}, false
	}

	bet := Bet{
		ID:        s.Bet.ID,
		RoundID:   roundID,
		Username:  username,
		BetAmount: s.Bet.Amount,
		Profit:    s.Bet.Amount.Neg(),
	}
	if s.Bet.AutoCashout > 0 {
		auto := s.Bet.AutoCashout
		bet.AutoCashout = &auto
	}
	if s.IsCashedOut && s.UserProfit != nil {
		at := s.Bet.CashedOutAt
		bet.CashedOutAt = &at
		bet.Profit = *s.UserProfit
	}

	s.Bet = nil
	return bet, true
}

// Profit is amount*multiplier - amount, rounded to cents.
func Profit(amount decimal.Decimal, multiplier float64) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(multiplier)).Sub(amount).Round(2)
}
