package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"round-lottery/internal/config"
	"round-lottery/internal/models"
	"round-lottery/internal/repository"
)

// ReferralAward is a bonus paid to a referrer
type ReferralAward struct {
	ReferrerID      uint   `json:"referrer_id"`
	DepositorID     uint   `json:"depositor_id"`
	ActiveReferrals int64  `json:"active_referrals"`
	Bonus           int64  `json:"bonus"`
	Description     string `json:"description"`
}

// ReferralStats summarizes an account's referrals
type ReferralStats struct {
	ReferralCode      string `json:"referral_code"`
	TotalReferrals    int64  `json:"total_referrals"`
	ActiveReferrals   int64  `json:"active_referrals"`
	NextBonusAt       int64  `json:"next_bonus_at"`
	QualifyingDeposit int64  `json:"qualifying_deposit"`
}

type ReferralService struct {
	repo     *repository.Repository
	cfg      config.ReferralConfig
	notifier Notifier
}

func NewReferralService(repo *repository.Repository, cfg config.ReferralConfig, notifier Notifier) *ReferralService {
	return &ReferralService{
		repo:     repo,
		cfg:      cfg,
		notifier: notifier,
	}
}

// BonusFor returns the bonus owed when a referrer reaches count active
// referrals, with the description of its ledger entry
func (s *ReferralService) BonusFor(count int64) (int64, string) {
	if count <= 0 {
		return 0, ""
	}
	if count == s.cfg.MilestoneCount {
		return s.cfg.MilestoneBonus, fmt.Sprintf("Milestone bonus for %d active referrals.", count)
	}
	if s.cfg.StepSize > 0 && count%s.cfg.StepSize == 0 {
		return s.cfg.StepBonus, fmt.Sprintf("Bonus for %d active referrals.", count)
	}
	return 0, ""
}

// Crossed reports whether a deposit moved a cumulative total from below the
// qualifying amount to at or above it
func (s *ReferralService) Crossed(before, after int64) bool {
	return before < s.cfg.QualifyingDeposit && after >= s.cfg.QualifyingDeposit
}

// onQualifyingDeposit pays the depositor's referrer when the depositor just
// became active and that makes the referrer's active count a bonus step. It
// must run inside the transaction that approved the deposit.
func (s *ReferralService) onQualifyingDeposit(ctx context.Context, repo *repository.Repository, depositor *models.Account, before, after int64) (*ReferralAward, error) {
	if depositor.ReferredBy == nil || *depositor.ReferredBy == "" || !s.Crossed(before, after) {
		return nil, nil
	}

	referrer, err := repo.GetAccountByReferralCode(ctx, *depositor.ReferredBy)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("[Referral] Referrer code %s of account %d no longer exists", *depositor.ReferredBy, depositor.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// serializes concurrent crossings under the same referrer
	if err := repo.LockAccount(ctx, referrer.ID); err != nil {
		return nil, err
	}

	active, err := repo.CountActiveReferrals(ctx, referrer.ReferralCode, s.cfg.QualifyingDeposit)
	if err != nil {
		return nil, fmt.Errorf("failed to count active referrals: %w", err)
	}

	bonus, description := s.BonusFor(active)
	if bonus == 0 {
		return nil, nil
	}

	err = repo.PostEntry(ctx, &models.Transaction{
		AccountID:   referrer.ID,
		Type:        models.TransactionBonus,
		Amount:      bonus,
		Status:      models.TransactionCompleted,
		Description: description,
	}, false)
	if err != nil {
		return nil, fmt.Errorf("failed to credit referral bonus: %w", err)
	}

	log.Printf("[Referral] Account %d reached %d active referrals, bonus %d", referrer.ID, active, bonus)
	return &ReferralAward{
		ReferrerID:      referrer.ID,
		DepositorID:     depositor.ID,
		ActiveReferrals: active,
		Bonus:           bonus,
		Description:     description,
	}, nil
}

// OnQualifyingDeposit runs the cascade for an already approved deposit of
// amount by depositorID
func (s *ReferralService) OnQualifyingDeposit(ctx context.Context, depositorID uint, amount int64) (*ReferralAward, error) {
	var award *ReferralAward
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		depositor, err := tx.GetAccount(ctx, depositorID)
		if err != nil {
			return err
		}
		after, err := tx.SumApprovedDeposits(ctx, depositorID)
		if err != nil {
			return err
		}
		award, err = s.onQualifyingDeposit(ctx, tx, depositor, after-amount, after)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, award)
	return award, nil
}

func (s *ReferralService) announce(ctx context.Context, award *ReferralAward) {
	if award == nil || s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, award.ReferrerID, models.BonusAdded{Amount: award.Bonus})
}

// GetReferralStats returns the referral summary of an account
func (s *ReferralService) GetReferralStats(ctx context.Context, accountID uint) (*ReferralStats, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.CountReferrals(ctx, account.ReferralCode)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.CountActiveReferrals(ctx, account.ReferralCode, s.cfg.QualifyingDeposit)
	if err != nil {
		return nil, err
	}

	next := s.cfg.StepSize
	if s.cfg.StepSize > 0 {
		next = (active/s.cfg.StepSize + 1) * s.cfg.StepSize
	}

	return &ReferralStats{
		ReferralCode:      account.ReferralCode,
		TotalReferrals:    total,
		ActiveReferrals:   active,
		NextBonusAt:       next,
		QualifyingDeposit: s.cfg.QualifyingDeposit,
	}, nil
}
