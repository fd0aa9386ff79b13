package services

import (
	"context"
	"strconv"

	"round-lottery/internal/models"
	"round-lottery/internal/repository"
)

// SettingsService reads and writes the runtime switches administrators control
type SettingsService struct {
	repo               *repository.Repository
	autoApproveDefault bool
}

func NewSettingsService(repo *repository.Repository, autoApproveDefault bool) *SettingsService {
	return &SettingsService{
		repo:               repo,
		autoApproveDefault: autoApproveDefault,
	}
}

func (s *SettingsService) flag(ctx context.Context, name string, fallback bool) (bool, error) {
	value, ok, err := s.repo.GetSetting(ctx, name)
	if err != nil || !ok {
		return fallback, err
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// BettingEnabled reports whether players may place bets. Defaults to true.
func (s *SettingsService) BettingEnabled(ctx context.Context) (bool, error) {
	return s.flag(ctx, models.SettingBettingEnabled, true)
}

func (s *SettingsService) SetBettingEnabled(ctx context.Context, enabled bool) error {
	return s.repo.SetSetting(ctx, models.SettingBettingEnabled, strconv.FormatBool(enabled))
}

// AutoApproveDeposits reports whether receipts are verified automatically
func (s *SettingsService) AutoApproveDeposits(ctx context.Context) (bool, error) {
	return s.flag(ctx, models.SettingAutoApproveDeposits, s.autoApproveDefault)
}

func (s *SettingsService) SetAutoApproveDeposits(ctx context.Context, enabled bool) error {
	return s.repo.SetSetting(ctx, models.SettingAutoApproveDeposits, strconv.FormatBool(enabled))
}
