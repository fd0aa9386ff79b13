package repository

import (
	"context"
	"time"

	"round-lottery/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateAccount inserts a new account
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetAccount retrieves an account by ID
func (r *Repository) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// GetAccountByUsername retrieves an account by its login name
func (r *Repository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// GetAccountByReferralCode retrieves the account owning code
func (r *Repository) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// AccountExists reports whether any account matches the condition
func (r *Repository) AccountExists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where(query, args...).Count(&count).Error
	return count > 0, err
}

// UpdateAccountFields updates the given columns of one account
func (r *Repository) UpdateAccountFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LockAccount takes the account's row lock for the rest of the transaction
func (r *Repository) LockAccount(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyBalanceChange adds delta to the balance in one guarded statement.
// Unless allowNegative is set, a debit that would take the balance below
// zero fails with ErrInsufficientBalance and changes nothing.
func (r *Repository) ApplyBalanceChange(ctx context.Context, id uint, delta int64, allowNegative bool) error {
	query := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id)
	if delta < 0 && !allowNegative {
		query = query.Where("balance >= ?", -delta)
	}

	result := query.Updates(map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", delta),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		exists, err := r.AccountExists(ctx, "id = ?", id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientBalance
	}

	return nil
}

// ListAccounts returns a page of accounts matching search on username,
// full name or mobile number
func (r *Repository) ListAccounts(ctx context.Context, limit, offset int, search string) ([]models.Account, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Account{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("username LIKE ? OR full_name LIKE ? OR mobile_number LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var accounts []models.Account
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&accounts).Error
	return accounts, total, err
}

// DetachAgentUsers clears agent_id on every account assigned to agentID
func (r *Repository) DetachAgentUsers(ctx context.Context, agentID uint) error {
	return r.db.WithContext(ctx).Model(&models.Account{}).
		Where("agent_id = ?", agentID).
		Update("agent_id", nil).Error
}

// CountReferrals counts accounts that registered with code
func (r *Repository) CountReferrals(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where("referred_by = ?", code).Count(&count).Error
	return count, err
}

// CountActiveReferrals counts accounts referred with code whose approved
// deposits add up to at least threshold
func (r *Repository) CountActiveReferrals(ctx context.Context, code string, threshold int64) (int64, error) {
	deposited := r.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(transactions.amount), 0)").
		Where("transactions.account_id = accounts.id AND transactions.type = ? AND transactions.status = ?",
			models.TransactionDeposit, models.TransactionApproved)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("referred_by = ?", code).
		Where("(?) >= ?", deposited, threshold).
		Count(&count).Error
	return count, err
}

// ArchiveTier records tier for (accountID, month). An existing row for that
// month is left untouched.
func (r *Repository) ArchiveTier(ctx context.Context, accountID uint, month string, tier models.MembershipTier) error {
	entry := models.TierHistory{
		AccountID: accountID,
		Month:     month,
		Tier:      tier,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
}

// ListTierHistory returns the archived tiers of an account, oldest first
func (r *Repository) ListTierHistory(ctx context.Context, accountID uint) ([]models.TierHistory, error) {
	var history []models.TierHistory
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("month ASC").Find(&history).Error
	return history, err
}

// ResetMonthlyTier clears the monthly total and tier of an account last
// checked before monthStart. It reports whether this call did the reset.
func (r *Repository) ResetMonthlyTier(ctx context.Context, id uint, monthStart, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND last_tier_check < ?", id, monthStart).
		Updates(map[string]interface{}{
			"current_tier":          models.TierNone,
			"monthly_deposit_total": 0,
			"last_tier_check":       now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AddMonthlyDeposit adds amount to the running monthly deposit total
func (r *Repository) AddMonthlyDeposit(ctx context.Context, id uint, amount int64, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"monthly_deposit_total": gorm.Expr("monthly_deposit_total + ?", amount),
			"last_tier_check":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PromoteTier moves an account from one tier to a higher one. It fails with
// ErrInvalidState when the account is no longer in from.
func (r *Repository) PromoteTier(ctx context.Context, id uint, from, to models.MembershipTier) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND current_tier = ?", id, from).
		Update("current_tier", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}
	return nil
}
