package services

import (
	"round-lottery/internal/config"
	"round-lottery/internal/models"

	"github.com/shopspring/decimal"
)

type MatchKind string

const (
	MatchNone        MatchKind = ""
	MatchCombination MatchKind = "combination"
	MatchFinalDigit  MatchKind = "final digit"
)

// Outcome is how one bet resolves against a result
type Outcome struct {
	Status models.BetStatus
	Payout int64
	Match  MatchKind
}

// PayoutTable holds the stake multipliers
type PayoutTable struct {
	Single      decimal.Decimal
	Combination decimal.Decimal
}

func NewPayoutTable(cfg config.PayoutConfig) *PayoutTable {
	return &PayoutTable{
		Single:      cfg.SingleMultiplier,
		Combination: cfg.CombinationMultiplier,
	}
}

// Evaluate resolves bet against result. A combination bet whose digits match
// the draw as a multiset pays the combination multiplier; otherwise any bet
// whose effective digit equals the final digit pays the single multiplier.
// A bet never wins both.
func (p *PayoutTable) Evaluate(bet *models.Bet, result *models.RoundResult) Outcome {
	if bet.Kind == models.BetCombination && len(bet.Digits) == len(result.Digits) && bet.Digits.SameMultiset(result.Digits) {
		return Outcome{Status: models.BetWon, Payout: p.pay(bet.Stake, p.Combination), Match: MatchCombination}
	}

	if bet.Digit == result.FinalDigit {
		return Outcome{Status: models.BetWon, Payout: p.pay(bet.Stake, p.Single), Match: MatchFinalDigit}
	}

	return Outcome{Status: models.BetLost}
}

func (p *PayoutTable) pay(stake int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(stake).Mul(multiplier).Floor().IntPart()
}
