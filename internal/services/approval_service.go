package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"round-lottery/internal/config"
	"round-lottery/internal/models"
	"round-lottery/internal/ocr"
	"round-lottery/internal/repository"
)

const (
	remarkAutoApproved  = "Auto-Approved via OCR verification."
	reasonDuplicate     = "Rejected: Duplicate transaction number already used and approved."
	reasonInsufficient  = "Rejected due to insufficient points at time of approval."
	reasonDefaultReject = "Request rejected by admin."
)

var errReceiptMismatch = errors.New("receipt does not match request")

// ReceiptVerifier reads a deposit receipt. Implemented by ocr.Client.
type ReceiptVerifier interface {
	Verify(ctx context.Context, receipt *ocr.Receipt, amount int64, reference string) (*ocr.Result, error)
}

type ApprovalOutcome string

const (
	OutcomeApproved            ApprovalOutcome = "approved"
	OutcomeDuplicateReference  ApprovalOutcome = "rejected_duplicate_reference"
	OutcomeInsufficientBalance ApprovalOutcome = "rejected_insufficient_balance"
)

// ApprovalOptions are the admin's extras when approving a request
type ApprovalOptions struct {
	Bonus  int64  `json:"bonus"`
	Remark string `json:"remark"`
}

// ApprovalResult is the terminal state an approval produced
type ApprovalResult struct {
	Transaction   *models.Transaction `json:"transaction"`
	Outcome       ApprovalOutcome     `json:"outcome"`
	Bonus         int64               `json:"bonus,omitempty"`
	TierUpgrade   *TierUpgrade        `json:"tier_upgrade,omitempty"`
	ReferralAward *ReferralAward      `json:"referral_award,omitempty"`
}

// ApprovalService runs the Pending -> Approved | Rejected workflow for
// deposit and withdrawal requests
type ApprovalService struct {
	repo       *repository.Repository
	membership *MembershipService
	referrals  *ReferralService
	settings   *SettingsService
	verifier   ReceiptVerifier
	notifier   Notifier
	clock      Clock
	cfg        config.PaymentConfig
	wg         sync.WaitGroup
}

func NewApprovalService(
	repo *repository.Repository,
	membership *MembershipService,
	referrals *ReferralService,
	settings *SettingsService,
	notifier Notifier,
	clock Clock,
	cfg config.PaymentConfig,
) *ApprovalService {
	return &ApprovalService{
		repo:       repo,
		membership: membership,
		referrals:  referrals,
		settings:   settings,
		notifier:   notifier,
		clock:      clock,
		cfg:        cfg,
	}
}

// WithVerifier enables receipt verification for auto-approval
func (s *ApprovalService) WithVerifier(verifier ReceiptVerifier) *ApprovalService {
	s.verifier = verifier
	return s
}

// Wait blocks until every running receipt verification has finished
func (s *ApprovalService) Wait() {
	s.wg.Wait()
}

// SubmitDeposit records a Pending deposit. With auto-approval on and a
// receipt supplied it is verified in the background; otherwise the admins
// are notified to review it.
func (s *ApprovalService) SubmitDeposit(ctx context.Context, accountID uint, amount int64, reference string, receipt *ocr.Receipt) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if reference == "" {
		return nil, ErrMissingReference
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.ProfileLocked {
		return nil, ErrProfileLocked
	}

	used, err := s.repo.ReferenceClaimed(ctx, reference)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrDuplicateReference
	}

	entry := &models.Transaction{
		AccountID:   accountID,
		Type:        models.TransactionDeposit,
		Amount:      amount,
		Status:      models.TransactionPending,
		Description: fmt.Sprintf("Deposit request for %d points", amount),
		Reference:   &reference,
	}
	if receipt != nil && receipt.ImageURL != "" {
		entry.ReceiptURL = &receipt.ImageURL
	}

	if err := s.repo.CreateTransaction(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create deposit request: %w", err)
	}

	log.Printf("[Approval] Deposit request %d from account %d for %d points", entry.ID, accountID, amount)

	autoApprove, err := s.settings.AutoApproveDeposits(ctx)
	if err != nil {
		log.Printf("[Approval] Failed to read auto-approval setting: %v", err)
	}

	if !autoApprove || receipt == nil || s.verifier == nil {
		s.notifyAdmin(ctx, fmt.Sprintf("New deposit request from %s for %d points.", displayName(account), amount))
		return entry, nil
	}

	s.wg.Add(1)
	go func(entry models.Transaction) {
		defer s.wg.Done()
		s.verifyAndApprove(context.WithoutCancel(ctx), &entry, displayName(account), receipt)
	}(*entry)

	return entry, nil
}

// verifyAndApprove always ends with the deposit approved or an admin notified
func (s *ApprovalService) verifyAndApprove(ctx context.Context, entry *models.Transaction, name string, receipt *ocr.Receipt) {
	err := s.verify(ctx, entry, receipt)
	switch {
	case errors.Is(err, ErrVerificationTimeout):
		log.Printf("[Approval] Verification of deposit %d timed out", entry.ID)
		s.notifyAdmin(ctx, fmt.Sprintf("New deposit request from %s for %d points (OCR timeout).", name, entry.Amount))
		return
	case errors.Is(err, errReceiptMismatch):
		log.Printf("[Approval] Receipt for deposit %d does not match", entry.ID)
		s.notifyAdmin(ctx, fmt.Sprintf("New deposit request from %s for %d points (OCR mismatch).", name, entry.Amount))
		return
	case err != nil:
		log.Printf("[Approval] Verification of deposit %d failed: %v", entry.ID, err)
		s.notifyAdmin(ctx, fmt.Sprintf("New deposit request from %s for %d points (OCR error).", name, entry.Amount))
		return
	}

	result, err := s.Approve(ctx, entry.ID, ApprovalOptions{Remark: remarkAutoApproved})
	if errors.Is(err, ErrInvalidState) {
		log.Printf("[Approval] Deposit %d was resolved before auto-approval", entry.ID)
		return
	}
	if err != nil {
		log.Printf("[Approval] Auto-approval of deposit %d failed: %v", entry.ID, err)
		s.notifyAdmin(ctx, fmt.Sprintf("New deposit request from %s for %d points (auto-approval failed).", name, entry.Amount))
		return
	}

	log.Printf("[Approval] Deposit %d auto-approved with outcome %s", entry.ID, result.Outcome)
}

// verify returns nil on a matching receipt, errReceiptMismatch when the
// receipt disagrees with the request, and a verification error otherwise
func (s *ApprovalService) verify(ctx context.Context, entry *models.Transaction, receipt *ocr.Receipt) error {
	timeout := s.cfg.OCRTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reference := ""
	if entry.Reference != nil {
		reference = *entry.Reference
	}

	read, err := s.verifier.Verify(vctx, receipt, entry.Amount, reference)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(vctx.Err(), context.DeadlineExceeded) {
		return ErrVerificationTimeout
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationError, err)
	}

	if !read.Matches(entry.Amount, reference) {
		return errReceiptMismatch
	}
	return nil
}

// SubmitWithdrawal records a Pending withdrawal to details
func (s *ApprovalService) SubmitWithdrawal(ctx context.Context, accountID uint, amount int64, details models.WithdrawalDetails) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < s.cfg.MinWithdrawal {
		return nil, fmt.Errorf("%w: minimum withdrawal is %d points", ErrInvalidAmount, s.cfg.MinWithdrawal)
	}
	if err := details.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.ProfileLocked {
		return nil, ErrProfileLocked
	}

	entry := &models.Transaction{
		AccountID:   accountID,
		Type:        models.TransactionWithdrawal,
		Amount:      amount,
		Status:      models.TransactionPending,
		Description: fmt.Sprintf("Withdrawal request for %d points via %s", amount, details.Method),
		Withdrawal:  &details,
	}

	if err := s.repo.CreateTransaction(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	log.Printf("[Approval] Withdrawal request %d from account %d for %d points", entry.ID, accountID, amount)
	s.notifyAdmin(ctx, fmt.Sprintf("New withdrawal request from %s for %d points.", displayName(account), amount))
	return entry, nil
}

// Approve moves a Pending request to its terminal state. A deposit whose
// reference another approved deposit already holds, and a withdrawal the
// balance can no longer cover, end Rejected instead. Requests that are no
// longer Pending fail with ErrInvalidState and change nothing.
func (s *ApprovalService) Approve(ctx context.Context, transactionID uint, opts ApprovalOptions) (*ApprovalResult, error) {
	if opts.Bonus < 0 {
		return nil, ErrInvalidAmount
	}

	result := &ApprovalResult{}
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		entry, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if entry.Status != models.TransactionPending {
			return ErrInvalidState
		}

		switch entry.Type {
		case models.TransactionDeposit:
			return s.approveDeposit(ctx, tx, entry, opts, result)
		case models.TransactionWithdrawal:
			return s.approveWithdrawal(ctx, tx, entry, opts, result)
		}
		return fmt.Errorf("%w: %s entries are not approved", ErrInvalidState, entry.Type)
	})
	if err != nil {
		return nil, err
	}

	entry, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	result.Transaction = entry

	s.announce(ctx, result)
	log.Printf("[Approval] %s %d of account %d: %s", entry.Type, entry.ID, entry.AccountID, result.Outcome)
	return result, nil
}

func (s *ApprovalService) approveDeposit(ctx context.Context, tx *repository.Repository, entry *models.Transaction, opts ApprovalOptions, result *ApprovalResult) error {
	if entry.Reference != nil && *entry.Reference != "" {
		claimed, err := tx.ClaimDepositReference(ctx, *entry.Reference, entry.ID)
		if err != nil {
			return fmt.Errorf("failed to claim reference: %w", err)
		}
		if !claimed {
			result.Outcome = OutcomeDuplicateReference
			return tx.TransitionTransaction(ctx, entry.ID, models.TransactionPending, models.TransactionRejected, reasonDuplicate)
		}
	}

	if err := tx.TransitionTransaction(ctx, entry.ID, models.TransactionPending, models.TransactionApproved, opts.Remark); err != nil {
		return err
	}
	if err := tx.ApplyBalanceChange(ctx, entry.AccountID, entry.Amount, false); err != nil {
		return err
	}

	if opts.Bonus > 0 {
		err := tx.PostEntry(ctx, &models.Transaction{
			AccountID:   entry.AccountID,
			Type:        models.TransactionBonus,
			Amount:      opts.Bonus,
			Status:      models.TransactionCompleted,
			Description: fmt.Sprintf("Deposit bonus for request %d", entry.ID),
		}, false)
		if err != nil {
			return err
		}
		result.Bonus = opts.Bonus
	}

	account, err := tx.GetAccount(ctx, entry.AccountID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if s.membership != nil {
		upgrade, err := s.membership.applyDeposit(ctx, tx, account, entry.Amount, now)
		if err != nil {
			return err
		}
		result.TierUpgrade = upgrade
	}

	if s.referrals != nil {
		after, err := tx.SumApprovedDeposits(ctx, entry.AccountID)
		if err != nil {
			return err
		}
		award, err := s.referrals.onQualifyingDeposit(ctx, tx, account, after-entry.Amount, after)
		if err != nil {
			return err
		}
		result.ReferralAward = award
	}

	result.Outcome = OutcomeApproved
	return nil
}

func (s *ApprovalService) approveWithdrawal(ctx context.Context, tx *repository.Repository, entry *models.Transaction, opts ApprovalOptions, result *ApprovalResult) error {
	err := tx.ApplyBalanceChange(ctx, entry.AccountID, -entry.Amount, false)
	if errors.Is(err, repository.ErrInsufficientBalance) {
		result.Outcome = OutcomeInsufficientBalance
		return tx.TransitionTransaction(ctx, entry.ID, models.TransactionPending, models.TransactionRejected, reasonInsufficient)
	}
	if err != nil {
		return err
	}

	result.Outcome = OutcomeApproved
	return tx.TransitionTransaction(ctx, entry.ID, models.TransactionPending, models.TransactionApproved, opts.Remark)
}

// Reject moves a Pending request to Rejected with reason
func (s *ApprovalService) Reject(ctx context.Context, transactionID uint, reason string) (*models.Transaction, error) {
	if reason == "" {
		reason = reasonDefaultReject
	}

	entry, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if entry.Type != models.TransactionDeposit && entry.Type != models.TransactionWithdrawal {
		return nil, fmt.Errorf("%w: %s entries are not rejected", ErrInvalidState, entry.Type)
	}

	if err := s.repo.TransitionTransaction(ctx, transactionID, models.TransactionPending, models.TransactionRejected, reason); err != nil {
		return nil, err
	}
	entry.Status = models.TransactionRejected
	entry.Description = reason

	if s.notifier != nil {
		s.notifier.Notify(ctx, entry.AccountID, models.PaymentRejected{Reason: reason})
	}
	log.Printf("[Approval] %s %d of account %d rejected: %s", entry.Type, entry.ID, entry.AccountID, reason)
	return entry, nil
}

func (s *ApprovalService) announce(ctx context.Context, result *ApprovalResult) {
	if s.notifier == nil {
		return
	}
	entry := result.Transaction

	switch result.Outcome {
	case OutcomeDuplicateReference:
		reference := ""
		if entry.Reference != nil {
			reference = *entry.Reference
		}
		s.notifier.Notify(ctx, entry.AccountID, models.DuplicateTransaction{Reference: reference})
	case OutcomeInsufficientBalance:
		s.notifier.Notify(ctx, entry.AccountID, models.PaymentRejected{Reason: reasonInsufficient})
	case OutcomeApproved:
		if entry.Type == models.TransactionWithdrawal {
			s.notifier.Notify(ctx, entry.AccountID, models.WithdrawalSucceeded{Amount: entry.Amount})
			return
		}
		s.notifier.Notify(ctx, entry.AccountID, models.DepositSucceeded{Amount: entry.Amount})
		if result.Bonus > 0 {
			s.notifier.Notify(ctx, entry.AccountID, models.BonusAdded{Amount: result.Bonus})
		}
		if s.membership != nil {
			s.membership.announce(ctx, result.TierUpgrade)
		}
		if s.referrals != nil {
			s.referrals.announce(ctx, result.ReferralAward)
		}
	}
}

func (s *ApprovalService) notifyAdmin(ctx context.Context, message string) {
	if s.notifier != nil {
		s.notifier.NotifyAdmin(ctx, message)
	}
}

func displayName(account *models.Account) string {
	if account.FullName != "" {
		return account.FullName
	}
	return account.Username
}
