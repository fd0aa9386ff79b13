package repository

import (
	"context"
	"time"

	"round-lottery/internal/models"

	"gorm.io/gorm/clause"
)

// InsertResultIfAbsent stores result unless one already exists for its
// (round_number, round_date). It reports whether this call created it.
func (r *Repository) InsertResultIfAbsent(ctx context.Context, result *models.RoundResult) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(result)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// GetResult retrieves the result of one round
func (r *Repository) GetResult(ctx context.Context, roundNumber int, roundDate string) (*models.RoundResult, error) {
	var result models.RoundResult
	err := r.db.WithContext(ctx).
		Where("round_number = ? AND round_date = ?", roundNumber, roundDate).
		First(&result).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &result, nil
}

// ListResults returns a page of results, newest first
func (r *Repository) ListResults(ctx context.Context, limit, offset int) ([]models.RoundResult, error) {
	var results []models.RoundResult
	err := r.db.WithContext(ctx).
		Order("scheduled_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error
	return results, err
}

// CountResults counts the results stored for one round
func (r *Repository) CountResults(ctx context.Context, roundNumber int, roundDate string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoundResult{}).
		Where("round_number = ? AND round_date = ?", roundNumber, roundDate).
		Count(&count).Error
	return count, err
}

// MarkResultSettled stamps the time its settlement pass finished
func (r *Repository) MarkResultSettled(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.RoundResult{}).
		Where("id = ?", id).
		Update("settled_at", at).Error
}

// ListUnsettledResults returns results of rounds scheduled before cutoff
// whose settlement pass never finished
func (r *Repository) ListUnsettledResults(ctx context.Context, cutoff time.Time) ([]models.RoundResult, error) {
	var results []models.RoundResult
	err := r.db.WithContext(ctx).
		Where("settled_at IS NULL AND scheduled_at < ?", cutoff).
		Order("scheduled_at ASC").
		Find(&results).Error
	return results, err
}

// CreateBet inserts a new bet
func (r *Repository) CreateBet(ctx context.Context, bet *models.Bet) error {
	return r.db.WithContext(ctx).Create(bet).Error
}

// GetBet retrieves a bet by ID
func (r *Repository) GetBet(ctx context.Context, id uint) (*models.Bet, error) {
	var bet models.Bet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bet).Error; err != nil {
		return nil, notFound(err)
	}
	return &bet, nil
}

// ListPendingBets returns the unresolved bets of one round, in placement order
func (r *Repository) ListPendingBets(ctx context.Context, roundNumber int, roundDate string) ([]models.Bet, error) {
	var bets []models.Bet
	err := r.db.WithContext(ctx).
		Where("round_number = ? AND round_date = ? AND status = ?", roundNumber, roundDate, models.BetPending).
		Order("id ASC").
		Find(&bets).Error
	return bets, err
}

// ResolveBet moves a Pending bet to Won or Lost. It fails with
// ErrInvalidState when the bet was already resolved.
func (r *Repository) ResolveBet(ctx context.Context, id uint, status models.BetStatus, winnings *int64, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Bet{}).
		Where("id = ? AND status = ?", id, models.BetPending).
		Updates(map[string]interface{}{
			"status":     status,
			"winnings":   winnings,
			"settled_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}
	return nil
}

// ListBets returns a page of an account's bets, newest first
func (r *Repository) ListBets(ctx context.Context, accountID uint, limit, offset int) ([]models.Bet, error) {
	var bets []models.Bet
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&bets).Error
	return bets, err
}

// BetTotals aggregates an account's bets
type BetTotals struct {
	Count    int64
	Won      int64
	Staked   int64
	Winnings int64
}

// SumBets aggregates every bet of an account
func (r *Repository) SumBets(ctx context.Context, accountID uint) (*BetTotals, error) {
	var totals BetTotals
	err := r.db.WithContext(ctx).Model(&models.Bet{}).
		Select("COUNT(*) AS count, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS won, "+
			"COALESCE(SUM(stake), 0) AS staked, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN winnings ELSE 0 END), 0) AS winnings",
			models.BetWon, models.BetWon).
		Where("account_id = ?", accountID).
		Scan(&totals).Error
	return &totals, err
}
