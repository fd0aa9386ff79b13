package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"round-lottery/internal/models"
	"round-lottery/internal/repository"
)

// SettlementSummary counts what one settlement pass did
type SettlementSummary struct {
	RoundNumber int    `json:"round_number"`
	RoundDate   string `json:"round_date"`
	Processed   int    `json:"processed"`
	Won         int    `json:"won"`
	Lost        int    `json:"lost"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	TotalPaid   int64  `json:"total_paid"`
}

type winner struct {
	accountID uint
	payout    int64
}

// SettlementEngine resolves the pending bets of a round against its result
type SettlementEngine struct {
	repo       *repository.Repository
	payouts    *PayoutTable
	membership *MembershipService
	notifier   Notifier
	clock      Clock
}

func NewSettlementEngine(repo *repository.Repository, payouts *PayoutTable, membership *MembershipService, notifier Notifier, clock Clock) *SettlementEngine {
	return &SettlementEngine{
		repo:       repo,
		payouts:    payouts,
		membership: membership,
		notifier:   notifier,
		clock:      clock,
	}
}

// Settle resolves every Pending bet of result's round. Each bet commits on
// its own; a bet that fails is logged and left Pending while the rest
// continue. Bets resolved by an earlier pass are not touched again.
func (e *SettlementEngine) Settle(ctx context.Context, result *models.RoundResult) (*SettlementSummary, error) {
	bets, err := e.repo.ListPendingBets(ctx, result.RoundNumber, result.RoundDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending bets: %w", err)
	}

	summary := &SettlementSummary{
		RoundNumber: result.RoundNumber,
		RoundDate:   result.RoundDate,
	}

	var winners []winner
	for i := range bets {
		bet := &bets[i]
		outcome, err := e.settleBet(ctx, bet, result)
		switch {
		case errors.Is(err, repository.ErrInvalidState):
			summary.Skipped++
			continue
		case err != nil:
			summary.Failed++
			log.Printf("[Settlement] Bet %d of account %d in round %d/%s failed: %v",
				bet.ID, bet.AccountID, result.RoundNumber, result.RoundDate, err)
			continue
		}

		summary.Processed++
		if outcome.Status == models.BetWon {
			summary.Won++
			summary.TotalPaid += outcome.Payout
			winners = append(winners, winner{accountID: bet.AccountID, payout: outcome.Payout})
		} else {
			summary.Lost++
		}
	}

	for _, w := range winners {
		if e.notifier != nil {
			e.notifier.Notify(ctx, w.accountID, models.BetWonNotice{Round: result.RoundNumber, Winnings: w.payout})
		}
	}

	log.Printf("[Settlement] Round %d/%s: processed=%d won=%d lost=%d skipped=%d failed=%d paid=%d",
		result.RoundNumber, result.RoundDate, summary.Processed, summary.Won, summary.Lost,
		summary.Skipped, summary.Failed, summary.TotalPaid)

	return summary, nil
}

func (e *SettlementEngine) settleBet(ctx context.Context, bet *models.Bet, result *models.RoundResult) (Outcome, error) {
	outcome := e.payouts.Evaluate(bet, result)
	now := e.clock.Now()

	err := e.repo.Transaction(ctx, func(tx *repository.Repository) error {
		account, err := tx.GetAccount(ctx, bet.AccountID)
		if err != nil {
			return fmt.Errorf("account %d: %w", bet.AccountID, err)
		}

		if e.membership != nil {
			if _, err := e.membership.ResetIfNewMonth(ctx, tx, account, now); err != nil {
				return err
			}
		}

		if outcome.Status != models.BetWon {
			return tx.ResolveBet(ctx, bet.ID, models.BetLost, nil, now)
		}

		payout := outcome.Payout
		if err := tx.ResolveBet(ctx, bet.ID, models.BetWon, &payout, now); err != nil {
			return err
		}

		return tx.PostEntry(ctx, &models.Transaction{
			AccountID: bet.AccountID,
			Type:      models.TransactionWin,
			Amount:    payout,
			Status:    models.TransactionCompleted,
			Description: fmt.Sprintf("Won round %d on %s (%s match, result %s)",
				result.RoundNumber, result.RoundDate, outcome.Match, result.Digits),
		}, false)
	})

	return outcome, err
}
