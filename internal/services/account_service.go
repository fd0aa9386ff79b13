package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"round-lottery/internal/config"
	"round-lottery/internal/models"
	"round-lottery/internal/repository"
	"round-lottery/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest is a new player's sign-up form
type RegisterRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	FullName     string `json:"full_name"`
	MobileNumber string `json:"mobile_number"`
	ReferralCode string `json:"referral_code"`
}

// PlaceBetRequest is a stake on the next round. Single bets set Digit,
// combination bets set three Digits.
type PlaceBetRequest struct {
	Kind   models.BetKind `json:"kind"`
	Digit  *int           `json:"digit"`
	Digits []int          `json:"digits"`
	Stake  int64          `json:"stake"`
}

// AccountService handles registration, login and bet placement
type AccountService struct {
	repo       *repository.Repository
	roundClock *RoundClock
	membership *MembershipService
	settings   *SettingsService
	clock      Clock
	app        config.AppConfig
	betCutoff  time.Duration
}

func NewAccountService(
	repo *repository.Repository,
	roundClock *RoundClock,
	membership *MembershipService,
	settings *SettingsService,
	clock Clock,
	app config.AppConfig,
	betCutoff time.Duration,
) *AccountService {
	return &AccountService{
		repo:       repo,
		roundClock: roundClock,
		membership: membership,
		settings:   settings,
		clock:      clock,
		app:        app,
		betCutoff:  betCutoff,
	}
}

// Register creates an account credited with the starting bonus
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	if req.Username == "" || req.MobileNumber == "" {
		return nil, fmt.Errorf("%w: username and mobile number are required", ErrInvalidInput)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}

	taken, err := s.repo.AccountExists(ctx, "username = ? OR mobile_number = ?", req.Username, req.MobileNumber)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account := &models.Account{
		Username:      req.Username,
		PasswordHash:  string(hash),
		FullName:      strings.TrimSpace(req.FullName),
		MobileNumber:  req.MobileNumber,
		Role:          models.RoleUser,
		ReferralCode:  code,
		CurrentTier:   models.TierNone,
		LastTierCheck: now,
	}

	if req.ReferralCode != "" {
		referrer, err := s.repo.GetAccountByReferralCode(ctx, strings.ToUpper(strings.TrimSpace(req.ReferralCode)))
		switch {
		case err == nil:
			account.ReferredBy = &referrer.ReferralCode
			if referrer.Role == models.RoleAgent {
				account.AgentID = &referrer.ID
			}
		case errors.Is(err, repository.ErrNotFound):
			log.Printf("[Account] Ignoring unknown referral code %q for %s", req.ReferralCode, req.Username)
		default:
			return nil, err
		}
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		if s.app.StartingBonus <= 0 {
			return nil
		}
		return tx.PostEntry(ctx, &models.Transaction{
			AccountID:   account.ID,
			Type:        models.TransactionBonus,
			Amount:      s.app.StartingBonus,
			Status:      models.TransactionCompleted,
			Description: "Welcome Bonus",
		}, false)
	})
	if err != nil {
		return nil, err
	}

	account.Balance = s.app.StartingBonus
	log.Printf("[Account] Registered %s (ID: %d, code %s)", account.Username, account.ID, account.ReferralCode)
	return account, nil
}

func (s *AccountService) uniqueReferralCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := utils.GenerateReferralCode(s.app.ReferralCodePrefix)
		if err != nil {
			return "", err
		}
		exists, err := s.repo.AccountExists(ctx, "referral_code = ?", code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique referral code")
}

// Login checks the credential of username and records the login
func (s *AccountService) Login(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := s.repo.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if account.ProfileLocked {
		return nil, ErrProfileLocked
	}

	if s.membership != nil {
		if err := s.membership.Touch(ctx, account.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateAccountFields(ctx, account.ID, map[string]interface{}{"last_login": s.clock.Now()}); err != nil {
		return nil, err
	}

	return s.repo.GetAccount(ctx, account.ID)
}

// GetAccount retrieves an account by ID
func (s *AccountService) GetAccount(ctx context.Context, accountID uint) (*models.Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}

// ChangePassword replaces the credential after checking the current one
func (s *AccountService) ChangePassword(ctx context.Context, accountID uint, current, next string) error {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.repo.UpdateAccountFields(ctx, accountID, map[string]interface{}{"password_hash": string(hash)})
}

// BettingRound returns the round new bets go to and whether it still accepts them
func (s *AccountService) BettingRound(ctx context.Context) (Round, bool, error) {
	now := s.clock.Now()
	_, next := s.roundClock.At(now)

	enabled, err := s.settings.BettingEnabled(ctx)
	if err != nil {
		return next, false, err
	}
	return next, enabled && next.ScheduledAt.Sub(now) > s.betCutoff, nil
}

// PlaceBet debits the stake and records a bet on the next round
func (s *AccountService) PlaceBet(ctx context.Context, accountID uint, req PlaceBetRequest) (*models.Bet, error) {
	bet, err := newBet(accountID, req)
	if err != nil {
		return nil, err
	}

	round, open, err := s.BettingRound(ctx)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, ErrBettingClosed
	}
	bet.RoundNumber = round.Number
	bet.RoundDate = round.Day()

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if account.ProfileLocked {
			return ErrProfileLocked
		}
		if account.BetLocked {
			return ErrBetLocked
		}

		err = tx.PostEntry(ctx, &models.Transaction{
			AccountID:   accountID,
			Type:        models.TransactionBet,
			Amount:      bet.Stake,
			Status:      models.TransactionCompleted,
			Description: fmt.Sprintf("Bet on round %d (%s), %s %s", round.Number, round.Day(), bet.Kind, describeBet(bet)),
		}, false)
		if err != nil {
			return err
		}

		return tx.CreateBet(ctx, bet)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Account] Account %d bet %d on round %d/%s (%s %s)",
		accountID, bet.Stake, bet.RoundNumber, bet.RoundDate, bet.Kind, describeBet(bet))
	return bet, nil
}

func newBet(accountID uint, req PlaceBetRequest) (*models.Bet, error) {
	if req.Stake <= 0 {
		return nil, fmt.Errorf("%w: stake must be positive", ErrInvalidBet)
	}

	bet := &models.Bet{
		AccountID: accountID,
		Kind:      req.Kind,
		Stake:     req.Stake,
		Status:    models.BetPending,
	}

	switch req.Kind {
	case models.BetSingle:
		if req.Digit == nil || !validDigit(*req.Digit) {
			return nil, fmt.Errorf("%w: single bets need one digit 0-9", ErrInvalidBet)
		}
		bet.Digit = *req.Digit
	case models.BetCombination:
		if len(req.Digits) != 3 {
			return nil, fmt.Errorf("%w: combination bets need three digits", ErrInvalidBet)
		}
		for _, d := range req.Digits {
			if !validDigit(d) {
				return nil, fmt.Errorf("%w: digit %d out of range", ErrInvalidBet, d)
			}
		}
		bet.Digits = models.Digits(append([]int(nil), req.Digits...))
		bet.Digit = bet.Digits.Sum() % 10
	default:
		return nil, fmt.Errorf("%w: unknown bet kind %q", ErrInvalidBet, req.Kind)
	}

	return bet, nil
}

func validDigit(d int) bool {
	return d >= 0 && d <= 9
}

func describeBet(bet *models.Bet) string {
	if bet.Kind == models.BetCombination {
		return bet.Digits.String()
	}
	return fmt.Sprintf("%d", bet.Digit)
}

// ListBets returns a page of an account's bets, newest first
func (s *AccountService) ListBets(ctx context.Context, accountID uint, limit, offset int) ([]models.Bet, error) {
	return s.repo.ListBets(ctx, accountID, limit, offset)
}

// ListTransactions returns a page of an account's ledger, newest first
func (s *AccountService) ListTransactions(ctx context.Context, accountID uint, txType models.TransactionType, limit, offset int) ([]models.Transaction, error) {
	return s.repo.ListTransactions(ctx, repository.TransactionFilter{AccountID: accountID, Type: txType}, limit, offset)
}

// ListNotifications returns an account's notifications, newest first
func (s *AccountService) ListNotifications(ctx context.Context, accountID uint, unreadOnly bool, limit int) ([]models.UserNotification, error) {
	return s.repo.ListUserNotifications(ctx, accountID, unreadOnly, limit)
}

func (s *AccountService) MarkNotificationRead(ctx context.Context, accountID, notificationID uint) error {
	return s.repo.MarkUserNotificationRead(ctx, accountID, notificationID)
}

// TierHistory returns the archived monthly tiers of an account
func (s *AccountService) TierHistory(ctx context.Context, accountID uint) ([]models.TierHistory, error) {
	return s.repo.ListTierHistory(ctx, accountID)
}
