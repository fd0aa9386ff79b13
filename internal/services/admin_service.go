package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"round-lottery/internal/models"
	"round-lottery/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// PrimaryAdminUsername is the account whose admin role can never be removed
const PrimaryAdminUsername = "admin"

// AdminService carries out administrator actions and records each one in
// the audit log
type AdminService struct {
	repo      *repository.Repository
	accounts  *AccountService
	reporting *ReportingService
	settings  *SettingsService
	notifier  Notifier
}

func NewAdminService(repo *repository.Repository, accounts *AccountService, reporting *ReportingService, settings *SettingsService, notifier Notifier) *AdminService {
	return &AdminService{
		repo:      repo,
		accounts:  accounts,
		reporting: reporting,
		settings:  settings,
		notifier:  notifier,
	}
}

// IsAdmin checks if an account holds the admin role
func (s *AdminService) IsAdmin(ctx context.Context, accountID uint) bool {
	account, err := s.repo.GetAccount(ctx, accountID)
	return err == nil && account.Role == models.RoleAdmin
}

// AdjustBalance credits (amount > 0) or debits (amount < 0) an account.
// Admin debits may take the balance below zero.
func (s *AdminService) AdjustBalance(ctx context.Context, adminID, accountID uint, amount int64, reason string) (*models.Transaction, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	entry := &models.Transaction{
		AccountID:   accountID,
		Type:        models.TransactionAdminCredit,
		Amount:      amount,
		Status:      models.TransactionCompleted,
		Description: reason,
	}
	if amount < 0 {
		entry.Type = models.TransactionAdminDebit
		entry.Amount = -amount
	}
	if entry.Description == "" {
		entry.Description = "Balance adjusted by admin."
	}

	if err := s.repo.PostEntry(ctx, entry, true); err != nil {
		return nil, err
	}

	s.logAction(ctx, adminID, "ADJUST_BALANCE", &accountID, map[string]interface{}{
		"amount": amount,
		"reason": reason,
	})
	log.Printf("[Admin] Admin %d adjusted balance of account %d by %d", adminID, accountID, amount)
	return entry, nil
}

// CreateAccount registers an account on a player's behalf with optional
// initial points
func (s *AdminService) CreateAccount(ctx context.Context, adminID uint, req RegisterRequest, initialPoints int64) (*models.Account, error) {
	if initialPoints < 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.accounts.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	if initialPoints > 0 {
		err := s.repo.PostEntry(ctx, &models.Transaction{
			AccountID:   account.ID,
			Type:        models.TransactionAdminCredit,
			Amount:      initialPoints,
			Status:      models.TransactionCompleted,
			Description: "Initial points on account creation by admin.",
		}, true)
		if err != nil {
			return nil, err
		}
		account.Balance += initialPoints
	}

	s.logAction(ctx, adminID, "CREATE_ACCOUNT", &account.ID, map[string]interface{}{
		"username":       account.Username,
		"initial_points": initialPoints,
	})
	return account, nil
}

// ToggleBetLock flips whether an account may place bets
func (s *AdminService) ToggleBetLock(ctx context.Context, adminID, accountID uint) (*models.Account, error) {
	return s.toggle(ctx, adminID, accountID, "bet_locked", "TOGGLE_BET_LOCK", func(a *models.Account) bool { return a.BetLocked })
}

// ToggleProfileLock flips whether an account may log in and transact
func (s *AdminService) ToggleProfileLock(ctx context.Context, adminID, accountID uint) (*models.Account, error) {
	return s.toggle(ctx, adminID, accountID, "profile_locked", "TOGGLE_PROFILE_LOCK", func(a *models.Account) bool { return a.ProfileLocked })
}

func (s *AdminService) toggle(ctx context.Context, adminID, accountID uint, column, action string, current func(*models.Account) bool) (*models.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	value := !current(account)
	if err := s.repo.UpdateAccountFields(ctx, accountID, map[string]interface{}{column: value}); err != nil {
		return nil, err
	}

	s.logAction(ctx, adminID, action, &accountID, map[string]interface{}{column: value})
	return s.repo.GetAccount(ctx, accountID)
}

// ResetPassword sets a new credential for an account
func (s *AdminService) ResetPassword(ctx context.Context, adminID, accountID uint, password string) error {
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdateAccountFields(ctx, accountID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		return err
	}

	s.logAction(ctx, adminID, "RESET_PASSWORD", &accountID, nil)
	return nil
}

// UpdateRole sets an account's role and commission rate. Only agents carry
// a commission; demoting an agent detaches the accounts assigned to it.
func (s *AdminService) UpdateRole(ctx context.Context, adminID, accountID uint, role models.Role, commissionRate decimal.Decimal) (*models.Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if commissionRate.IsNegative() || commissionRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: commission rate must be between 0 and 100", ErrInvalidInput)
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(account.Username, PrimaryAdminUsername) && role != models.RoleAdmin {
		return nil, ErrPrimaryAdmin
	}

	if role != models.RoleAgent {
		commissionRate = decimal.Zero
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		err := tx.UpdateAccountFields(ctx, accountID, map[string]interface{}{
			"role":            role,
			"commission_rate": commissionRate,
		})
		if err != nil {
			return err
		}
		if account.Role == models.RoleAgent && role != models.RoleAgent {
			return tx.DetachAgentUsers(ctx, accountID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAction(ctx, adminID, "UPDATE_ROLE", &accountID, map[string]interface{}{
		"from":            account.Role,
		"to":              role,
		"commission_rate": commissionRate.String(),
	})
	log.Printf("[Admin] Account %d role %s -> %s", accountID, account.Role, role)
	return s.repo.GetAccount(ctx, accountID)
}

// PayAgentCommission credits an agent the commission owed on its players
func (s *AdminService) PayAgentCommission(ctx context.Context, adminID, agentID uint) (*models.Transaction, error) {
	report, err := s.reporting.AgentReport(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if report.CommissionDue <= 0 {
		return nil, fmt.Errorf("%w: no commission due", ErrInvalidAmount)
	}

	entry := &models.Transaction{
		AccountID:   agentID,
		Type:        models.TransactionCommission,
		Amount:      report.CommissionDue,
		Status:      models.TransactionCompleted,
		Description: fmt.Sprintf("Commission at %s%% on platform profit %d", report.CommissionRate.String(), report.PlatformProfit),
	}
	if err := s.repo.PostEntry(ctx, entry, false); err != nil {
		return nil, err
	}

	s.logAction(ctx, adminID, "PAY_COMMISSION", &agentID, map[string]interface{}{"amount": entry.Amount})
	if s.notifier != nil {
		s.notifier.Notify(ctx, agentID, models.BonusAdded{Amount: entry.Amount})
	}
	return entry, nil
}

// SetBettingEnabled opens or closes betting for everyone
func (s *AdminService) SetBettingEnabled(ctx context.Context, adminID uint, enabled bool) error {
	if err := s.settings.SetBettingEnabled(ctx, enabled); err != nil {
		return err
	}
	s.logAction(ctx, adminID, "SET_BETTING_ENABLED", nil, map[string]interface{}{"enabled": enabled})
	return nil
}

// SetAutoApproveDeposits turns receipt verification on or off
func (s *AdminService) SetAutoApproveDeposits(ctx context.Context, adminID uint, enabled bool) error {
	if err := s.settings.SetAutoApproveDeposits(ctx, enabled); err != nil {
		return err
	}
	s.logAction(ctx, adminID, "SET_AUTO_APPROVE", nil, map[string]interface{}{"enabled": enabled})
	return nil
}

// AppendTransactionNote adds an admin note to a ledger entry
func (s *AdminService) AppendTransactionNote(ctx context.Context, adminID, transactionID uint, note string) error {
	if strings.TrimSpace(note) == "" {
		return fmt.Errorf("%w: note is empty", ErrInvalidInput)
	}
	if err := s.repo.AppendTransactionNote(ctx, transactionID, note); err != nil {
		return err
	}
	s.logAction(ctx, adminID, "ADD_NOTE", nil, map[string]interface{}{"transaction_id": transactionID, "note": note})
	return nil
}

// Broadcast sends a free-text announcement to every connected client
func (s *AdminService) Broadcast(ctx context.Context, adminID uint, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	if s.notifier != nil {
		s.notifier.Broadcast(ctx, models.AdminBroadcast{Message: message})
	}
	s.logAction(ctx, adminID, "BROADCAST", nil, map[string]interface{}{"message": message})
	return nil
}

// GetAllAccounts returns accounts with optional search
func (s *AdminService) GetAllAccounts(ctx context.Context, limit, offset int, search string) ([]models.Account, int64, error) {
	return s.repo.ListAccounts(ctx, limit, offset, search)
}

// GetPendingTransactions returns Pending requests, oldest first
func (s *AdminService) GetPendingTransactions(ctx context.Context, txType models.TransactionType) ([]models.Transaction, error) {
	return s.repo.ListPendingTransactions(ctx, txType)
}

// GetTransactions returns a filtered page of the ledger
func (s *AdminService) GetTransactions(ctx context.Context, filter repository.TransactionFilter, limit, offset int) ([]models.Transaction, error) {
	return s.repo.ListTransactions(ctx, filter, limit, offset)
}

func (s *AdminService) GetNotifications(ctx context.Context, unreadOnly bool, limit int) ([]models.AdminNotification, error) {
	return s.repo.ListAdminNotifications(ctx, unreadOnly, limit)
}

func (s *AdminService) MarkNotificationRead(ctx context.Context, id uint) error {
	return s.repo.MarkAdminNotificationRead(ctx, id)
}

// LogAdminAction logs an admin action
func (s *AdminService) LogAdminAction(ctx context.Context, adminID uint, action string, target *uint, details map[string]interface{}) error {
	return s.repo.CreateAdminLog(ctx, &models.AdminLog{
		AdminID:         adminID,
		Action:          action,
		TargetAccountID: target,
		Details:         models.JSONB(details),
	})
}

func (s *AdminService) logAction(ctx context.Context, adminID uint, action string, target *uint, details map[string]interface{}) {
	if err := s.LogAdminAction(ctx, adminID, action, target, details); err != nil {
		log.Printf("[Admin] Failed to log %s by admin %d: %v", action, adminID, err)
	}
}

// GetAdminLogs returns admin action logs
func (s *AdminService) GetAdminLogs(ctx context.Context, limit, offset int) ([]models.AdminLog, error) {
	return s.repo.ListAdminLogs(ctx, limit, offset)
}
