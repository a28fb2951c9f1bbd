package game

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var opponentNames = []string{
	"SkyRider", "BetMaster", "LuckyJet", "HighFlyer", "CryptoKing",
	"BoldBettor", "RiskTaker", "FlightClub", "SoaringEagle", "RiskyBusiness",
	"PlaneMaster", "FlyHigh", "AcePilot", "BetHunter", "TurboPilot",
}

const (
	opponentMinStake    = 10
	opponentStakeRange  = 100
	opponentCashoutRate = 0.8
	opponentMinTarget   = 1.1
	opponentMaxTarget   = 5.0
)

type opponentBet struct {
	bet    Bet
	target float64
}

// OpponentSimulator seats up to max simulated players in every round. They
// bet on their own money and never touch the player's ledger.
type OpponentSimulator struct {
	rng  *rand.Rand
	max  int
	bets []*opponentBet
}

func NewOpponentSimulator(rng *rand.Rand, max int) *OpponentSimulator {
	return &OpponentSimulator{
		rng: rng,
		max: max,
	}
}

// Deal draws this round's opponent bets.
func (o *OpponentSimulator) Deal(roundID int64) []Bet {
	if o.max <= 0 {
		o.bets = nil
		return nil
	}
	n := o.rng.Intn(o.max + 1)
	o.bets = make([]*opponentBet, 0, n)

	placed := make([]Bet, 0, n)
	for i := 0; i < n; i++ {
		name := opponentNames[o.rng.Intn(len(opponentNames))] + strconv.Itoa(o.rng.Intn(1000))
		stake := decimal.NewFromInt(int64(o.rng.Intn(opponentStakeRange) + opponentMinStake))

		target := 0.0
		if o.rng.Float64() < opponentCashoutRate {
			target = math.Round((opponentMinTarget+o.rng.Float64()*(opponentMaxTarget-opponentMinTarget))*100) / 100
		}

		ob := &opponentBet{
			bet: Bet{
				ID:        uuid.NewString(),
				RoundID:   roundID,
				Username:  name,
				BetAmount: stake,
			},
			target: target,
		}
		if target > 0 {
			t := target
			ob.bet.AutoCashout = &t
		}
		o.bets = append(o.bets, ob)
		placed = append(placed, ob.bet)
	}
	return placed
}

// Advance cashes out every opponent whose target was reached on this tick.
func (o *OpponentSimulator) Advance(multiplier float64) []Bet {
	var cashed []Bet
	for _, ob := range o.bets {
		if ob.target <= 0 || ob.bet.CashedOutAt != nil || multiplier < ob.target {
			continue
		}
		at := multiplier
		ob.bet.CashedOutAt = &at
		ob.bet.Profit = Profit(ob.bet.BetAmount, multiplier)
		cashed = append(cashed, ob.bet)
	}
	return cashed
}

// Settle finalizes the round's opponent bets; anyone still flying loses.
func (o *OpponentSimulator) Settle() []Bet {
	settled := make([]Bet, 0, len(o.bets))
	for _, ob := range o.bets {
		if ob.bet.CashedOutAt == nil {
			ob.bet.Profit = ob.bet.BetAmount.Neg()
		}
		settled = append(settled, ob.bet)
	}
	o.bets = nil
	return settled
}
