package game

import "github.com/shopspring/decimal"

// HistoryRecorder keeps the bounded round and betting logs, newest first.
// Stats are recomputed from what is remembered on every write.
type HistoryRecorder struct {
	rounds   []Round
	bets     []Bet
	stats    Stats
	roundCap int
	betCap   int
}

func NewHistoryRecorder() *HistoryRecorder {
	return &HistoryRecorder{
		rounds:   make([]Round, 0, ROUND_HISTORY_CAP),
		bets:     make([]Bet, 0, BET_HISTORY_CAP),
		stats:    Stats{TotalBets: decimal.Zero},
		roundCap: ROUND_HISTORY_CAP,
		betCap:   BET_HISTORY_CAP,
	}
}

func (h *HistoryRecorder) Record(round Round, bets []Bet) {
	rounds := make([]Round, 0, h.roundCap)
	rounds = append(rounds, round)
	rounds = append(rounds, h.rounds...)
	if len(rounds) > h.roundCap {
		rounds = rounds[:h.roundCap]
	}
	h.rounds = rounds

	merged := make([]Bet, 0, len(bets)+len(h.bets))
	merged = append(merged, bets...)
	merged = append(merged, h.bets...)
	if len(merged) > h.betCap {
		merged = merged[:h.betCap]
	}
	h.bets = merged

	h.stats = h.computeStats()
}

func (h *HistoryRecorder) computeStats() Stats {
	total := decimal.Zero
	players := make(map[string]struct{})
	for _, b := range h.bets {
		total = total.Add(b.BetAmount)
		players[b.Username] = struct{}{}
	}

	highest := 0.0
	for _, r := range h.rounds {
		if r.FinalMultiplier > highest {
			highest = r.FinalMultiplier
		}
	}

	return Stats{
		TotalBets:         total,
		TotalPlayers:      len(players),
		HighestMultiplier: highest,
	}
}

func (h *HistoryRecorder) Rounds() []Round {
	out := make([]Round, len(h.rounds))
	copy(out, h.rounds)
	return out
}

func (h *HistoryRecorder) Bets() []Bet {
	out := make([]Bet, len(h.bets))
	copy(out, h.bets)
	return out
}

func (h *HistoryRecorder) Stats() Stats {
	return h.stats
}

func (h *HistoryRecorder) Board() Board {
	return Board{
		Rounds: h.Rounds(),
		Bets:   h.Bets(),
		Stats:  h.Stats(),
	}
}
