package repository

import (
	"context"
	"time"

	"round-lottery/internal/models"
)

// PlatformTotals aggregates activity over a time window
type PlatformTotals struct {
	Accounts       int64 `json:"accounts"`
	ActiveAccounts int64 `json:"active_accounts"`
	Bets           int64 `json:"bets"`
	Staked         int64 `json:"staked"`
	Paid           int64 `json:"paid"`
	Deposits       int64 `json:"deposits"`
	Withdrawals    int64 `json:"withdrawals"`
}

// GetPlatformTotals sums bets and approved payments created in [from, to)
func (r *Repository) GetPlatformTotals(ctx context.Context, from, to time.Time) (*PlatformTotals, error) {
	var totals PlatformTotals
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Account{}).Count(&totals.Accounts).Error; err != nil {
		return nil, err
	}
	err := db.Model(&models.Bet{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Distinct("account_id").
		Count(&totals.ActiveAccounts).Error
	if err != nil {
		return nil, err
	}

	var bets struct {
		Count  int64
		Staked int64
		Paid   int64
	}
	err = db.Model(&models.Bet{}).
		Select("COUNT(*) AS count, COALESCE(SUM(stake), 0) AS staked, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN winnings ELSE 0 END), 0) AS paid", models.BetWon).
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&bets).Error
	if err != nil {
		return nil, err
	}
	totals.Bets, totals.Staked, totals.Paid = bets.Count, bets.Staked, bets.Paid

	sum := func(txType models.TransactionType, dest *int64) error {
		return db.Model(&models.Transaction{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("type = ? AND status = ? AND created_at >= ? AND created_at < ?",
				txType, models.TransactionApproved, from, to).
			Scan(dest).Error
	}
	if err := sum(models.TransactionDeposit, &totals.Deposits); err != nil {
		return nil, err
	}
	if err := sum(models.TransactionWithdrawal, &totals.Withdrawals); err != nil {
		return nil, err
	}

	return &totals, nil
}

// ListAgents returns every account with the agent role
func (r *Repository) ListAgents(ctx context.Context) ([]models.Account, error) {
	var agents []models.Account
	err := r.db.WithContext(ctx).Where("role = ?", models.RoleAgent).Order("username ASC").Find(&agents).Error
	return agents, err
}

// SumAgentBets totals the settled stakes and winnings of the accounts
// assigned to agentID
func (r *Repository) SumAgentBets(ctx context.Context, agentID uint) (*BetTotals, error) {
	var totals BetTotals
	err := r.db.WithContext(ctx).Model(&models.Bet{}).
		Joins("JOIN accounts ON accounts.id = bets.account_id").
		Select("COUNT(*) AS count, "+
			"COALESCE(SUM(CASE WHEN bets.status = ? THEN 1 ELSE 0 END), 0) AS won, "+
			"COALESCE(SUM(bets.stake), 0) AS staked, "+
			"COALESCE(SUM(CASE WHEN bets.status = ? THEN bets.winnings ELSE 0 END), 0) AS winnings",
			models.BetWon, models.BetWon).
		Where("accounts.agent_id = ? AND bets.status <> ?", agentID, models.BetPending).
		Scan(&totals).Error
	return &totals, err
}

// SumCompleted totals an account's Completed entries of one type
func (r *Repository) SumCompleted(ctx context.Context, accountID uint, txType models.TransactionType) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ? AND type = ? AND status = ?", accountID, txType, models.TransactionCompleted).
		Scan(&total).Error
	return total, err
}
