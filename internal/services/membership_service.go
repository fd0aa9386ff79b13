package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"round-lottery/internal/config"
	"round-lottery/internal/models"
	"round-lottery/internal/repository"
)

// MonthID formats the UTC calendar month as "2006-01"
func MonthID(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// TierUpgrade describes a tier reached by a deposit
type TierUpgrade struct {
	AccountID uint                  `json:"account_id"`
	From      models.MembershipTier `json:"from"`
	To        models.MembershipTier `json:"to"`
	Bonus     int64                 `json:"bonus"`
}

// MembershipService tracks monthly deposit totals and tier bonuses
type MembershipService struct {
	repo     *repository.Repository
	tiers    []config.Tier
	notifier Notifier
	clock    Clock
}

func NewMembershipService(repo *repository.Repository, cfg config.MembershipConfig, notifier Notifier, clock Clock) *MembershipService {
	return &MembershipService{
		repo:     repo,
		tiers:    cfg.Tiers,
		notifier: notifier,
		clock:    clock,
	}
}

// TierFor returns the highest tier whose threshold total reaches
func (s *MembershipService) TierFor(total int64) (config.Tier, bool) {
	var best config.Tier
	found := false
	for _, tier := range s.tiers {
		if total >= tier.Threshold {
			best = tier
			found = true
		}
	}
	return best, found
}

// ResetIfNewMonth archives the previous month's tier and clears the monthly
// state the first time account is touched in a new month. account is
// refreshed in place.
func (s *MembershipService) ResetIfNewMonth(ctx context.Context, repo *repository.Repository, account *models.Account, now time.Time) (bool, error) {
	if MonthID(account.LastTierCheck) == MonthID(now) {
		return false, nil
	}

	if account.CurrentTier != models.TierNone {
		if err := repo.ArchiveTier(ctx, account.ID, MonthID(account.LastTierCheck), account.CurrentTier); err != nil {
			return false, fmt.Errorf("failed to archive tier: %w", err)
		}
	}

	reset, err := repo.ResetMonthlyTier(ctx, account.ID, startOfMonth(now), now)
	if err != nil {
		return false, fmt.Errorf("failed to reset monthly tier: %w", err)
	}

	fresh, err := repo.GetAccount(ctx, account.ID)
	if err != nil {
		return false, err
	}
	*account = *fresh

	if reset {
		log.Printf("[Membership] Monthly reset for account %d", account.ID)
	}
	return reset, nil
}

// applyDeposit adds amount to the monthly total and, when that reaches a
// higher tier, credits the tier bonus with a Bonus entry. It must run inside
// the caller's transaction.
func (s *MembershipService) applyDeposit(ctx context.Context, repo *repository.Repository, account *models.Account, amount int64, now time.Time) (*TierUpgrade, error) {
	if _, err := s.ResetIfNewMonth(ctx, repo, account, now); err != nil {
		return nil, err
	}

	if err := repo.AddMonthlyDeposit(ctx, account.ID, amount, now); err != nil {
		return nil, fmt.Errorf("failed to add monthly deposit: %w", err)
	}

	fresh, err := repo.GetAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	*account = *fresh

	tier, ok := s.TierFor(account.MonthlyDepositTotal)
	if !ok {
		return nil, nil
	}

	next := models.MembershipTier(tier.Name)
	if models.TierRank(next) <= models.TierRank(account.CurrentTier) {
		return nil, nil
	}

	upgrade := &TierUpgrade{
		AccountID: account.ID,
		From:      account.CurrentTier,
		To:        next,
		Bonus:     tier.Bonus,
	}

	if err := repo.PromoteTier(ctx, account.ID, upgrade.From, upgrade.To); err != nil {
		return nil, err
	}

	if tier.Bonus > 0 {
		err := repo.PostEntry(ctx, &models.Transaction{
			AccountID:   account.ID,
			Type:        models.TransactionBonus,
			Amount:      tier.Bonus,
			Status:      models.TransactionCompleted,
			Description: fmt.Sprintf("Bonus for reaching %s tier.", next),
		}, false)
		if err != nil {
			return nil, fmt.Errorf("failed to credit tier bonus: %w", err)
		}
	}

	account.CurrentTier = next
	log.Printf("[Membership] Account %d upgraded %s -> %s (bonus %d)", account.ID, upgrade.From, upgrade.To, upgrade.Bonus)
	return upgrade, nil
}

// ApplyDeposit feeds amount into accountID's monthly total in its own
// transaction and notifies the account of any upgrade
func (s *MembershipService) ApplyDeposit(ctx context.Context, accountID uint, amount int64) (*TierUpgrade, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var upgrade *TierUpgrade
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		upgrade, err = s.applyDeposit(ctx, tx, account, amount, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, upgrade)
	return upgrade, nil
}

// Touch performs the lazy monthly reset for accountID
func (s *MembershipService) Touch(ctx context.Context, accountID uint) error {
	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		_, err = s.ResetIfNewMonth(ctx, tx, account, s.clock.Now())
		return err
	})
}

func (s *MembershipService) announce(ctx context.Context, upgrade *TierUpgrade) {
	if upgrade == nil || s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, upgrade.AccountID, models.TierUpgraded{Tier: upgrade.To, Amount: upgrade.Bonus})
}
