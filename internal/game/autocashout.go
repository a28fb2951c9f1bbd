package game

// AutoCashoutEvaluator runs on every multiplier tick and cashes the live bet
// out once its threshold is crossed. It uses the tick value as is, so the
// realized multiplier may overshoot the threshold by one tick's delta.
type AutoCashoutEvaluator struct {
	ledger *Ledger
}

func NewAutoCashoutEvaluator(ledger *Ledger) *AutoCashoutEvaluator {
	return &AutoCashoutEvaluator{ledger: ledger}
}

func (a *AutoCashoutEvaluator) Evaluate(multiplier float64) (CashoutResult, bool) {
	s := a.ledger.state
	if s.Bet == nil || s.Bet.AutoCashout <= 0 {
		return CashoutResult{}, false
	}
	if !s.IsGameActive || s.IsBetPending || s.IsCashedOut {
		return CashoutResult{}, false
	}
	if multiplier < s.Bet.AutoCashout {
		return CashoutResult{}, false
	}

	result, err := a.ledger.Cashout(multiplier)
	if err != nil {
		return CashoutResult{}, false
	}
	return result, true
}
