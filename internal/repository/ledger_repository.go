package repository

import (
	"context"
	"fmt"

	"round-lottery/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostEntry applies entry's signed amount to the account balance and appends
// entry to the ledger, both or neither. entry must be Completed or Approved.
func (r *Repository) PostEntry(ctx context.Context, entry *models.Transaction, allowNegative bool) error {
	if entry.Amount < 0 {
		return fmt.Errorf("ledger amount must not be negative: %d", entry.Amount)
	}
	if !entry.Status.Settled() {
		return fmt.Errorf("cannot post %s entry with status %s", entry.Type, entry.Status)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &Repository{db: tx}
		if err := txRepo.ApplyBalanceChange(ctx, entry.AccountID, entry.Type.Signed(entry.Amount), allowNegative); err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

// CreateTransaction appends a ledger entry without touching the balance.
// Used for Pending requests, whose balance effect comes at approval.
func (r *Repository) CreateTransaction(ctx context.Context, entry *models.Transaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetTransaction retrieves a ledger entry by ID
func (r *Repository) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	var entry models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// TransitionTransaction moves an entry from one status to another. It fails
// with ErrInvalidState when the entry is no longer in from. A non-empty
// description replaces the current one.
func (r *Repository) TransitionTransaction(ctx context.Context, id uint, from, to models.TransactionStatus, description string) error {
	fields := map[string]interface{}{"status": to}
	if description != "" {
		fields["description"] = description
	}

	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}
	return nil
}

// AppendTransactionNote appends note to an entry's description
func (r *Repository) AppendTransactionNote(ctx context.Context, id uint, note string) error {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("description", gorm.Expr("description || ?", " | "+note))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimDepositReference records reference as used by an approved deposit.
// It returns false when another deposit already holds it.
func (r *Repository) ClaimDepositReference(ctx context.Context, reference string, transactionID uint) (bool, error) {
	claim := models.DepositReference{
		Reference:     reference,
		TransactionID: transactionID,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&claim)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransactionFilter narrows ListTransactions
type TransactionFilter struct {
	AccountID uint
	Type      models.TransactionType
	Status    models.TransactionStatus
}

// ListTransactions returns a page of entries, newest first
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter, limit, offset int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if filter.AccountID != 0 {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var entries []models.Transaction
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, err
}

// ListPendingTransactions returns Pending requests, oldest first
func (r *Repository) ListPendingTransactions(ctx context.Context, txType models.TransactionType) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Where("status = ?", models.TransactionPending)
	if txType != "" {
		query = query.Where("type = ?", txType)
	}

	var entries []models.Transaction
	err := query.Order("created_at ASC, id ASC").Find(&entries).Error
	return entries, err
}

// SumApprovedDeposits totals the approved deposits of an account
func (r *Repository) SumApprovedDeposits(ctx context.Context, accountID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ? AND type = ? AND status = ?", accountID, models.TransactionDeposit, models.TransactionApproved).
		Scan(&total).Error
	return total, err
}

// LedgerTotals sums an account's settled credits and debits
func (r *Repository) LedgerTotals(ctx context.Context, accountID uint) (credits, debits int64, err error) {
	var rows []struct {
		Type  models.TransactionType
		Total int64
	}
	err = r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("account_id = ? AND status IN ?", accountID,
			[]models.TransactionStatus{models.TransactionApproved, models.TransactionCompleted}).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}

	for _, row := range rows {
		if row.Type.IsCredit() {
			credits += row.Total
		} else {
			debits += row.Total
		}
	}
	return credits, debits, nil
}

// ReferenceClaimed reports whether an approved deposit already holds reference
func (r *Repository) ReferenceClaimed(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DepositReference{}).Where("reference = ?", reference).Count(&count).Error
	return count > 0, err
}
