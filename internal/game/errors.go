package game

import "errors"

// Intent rejections. None of them is fatal to the round loop.
var (
	ErrInvalidAmount       = errors.New("bet amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRoundInProgress     = errors.New("cannot place bet while round is active")
	ErrBetAlreadyPending   = errors.New("bet already placed for the next round")
	ErrInvalidAutoCashout  = errors.New("auto cashout must be above 1.00x")
	ErrNoPendingBet        = errors.New("no pending bet to cancel")
	ErrNoActiveBet         = errors.New("no live bet in this round")
	ErrRoundNotActive      = errors.New("round is not active")
	ErrAlreadyCashedOut    = errors.New("already cashed out")

	ErrEngineStopped = errors.New("engine stopped")
	ErrQueueFull     = errors.New("intent queue full")
)

const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeRoundInProgress     = "ROUND_IN_PROGRESS"
	CodeBetAlreadyPending   = "BET_ALREADY_PENDING"
	CodeInvalidAutoCashout  = "INVALID_AUTO_CASHOUT"
	CodeNoPendingBet        = "NO_PENDING_BET"
	CodeNoActiveBet         = "NO_ACTIVE_BET"
	CodeRoundNotActive      = "ROUND_NOT_ACTIVE"
	CodeAlreadyCashedOut    = "ALREADY_CASHED_OUT"
	CodeUnavailable         = "UNAVAILABLE"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrRoundInProgress, CodeRoundInProgress},
	{ErrBetAlreadyPending, CodeBetAlreadyPending},
	{ErrInvalidAutoCashout, CodeInvalidAutoCashout},
	{ErrNoPendingBet, CodeNoPendingBet},
	{ErrNoActiveBet, CodeNoActiveBet},
	{ErrRoundNotActive, CodeRoundNotActive},
	{ErrAlreadyCashedOut, CodeAlreadyCashedOut},
}

// Code maps an intent error to its stable, client-facing code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnavailable
}
