package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"round-lottery/internal/database"
	"round-lottery/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// each test gets its own named in-memory database
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func createAccount(t *testing.T, repo *Repository, username string, balance int64) *models.Account {
	account := &models.Account{
		Username:      username,
		PasswordHash:  "x",
		MobileNumber:  username + "-mobile",
		ReferralCode:  "CODE" + strings.ToUpper(username),
		Balance:       balance,
		Role:          models.RoleUser,
		CurrentTier:   models.TierNone,
		LastTierCheck: time.Now().UTC(),
	}
	if err := repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	return account
}

func TestInsertResultIfAbsent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	created, err := repo.InsertResultIfAbsent(ctx, models.NewRoundResult(2, at, models.Digits{4, 2, 3}))
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if !created {
		t.Fatal("expected first insert to create the result")
	}

	created, err = repo.InsertResultIfAbsent(ctx, models.NewRoundResult(2, at, models.Digits{1, 1, 1}))
	if err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if created {
		t.Fatal("expected second insert to be ignored")
	}

	stored, err := repo.GetResult(ctx, 2, "2026-03-01")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if stored.Digits.String() != "4-2-3" || stored.FinalDigit != 9 {
		t.Errorf("unexpected stored result: %+v", stored)
	}

	// same slot number on the next day is a different round
	created, err = repo.InsertResultIfAbsent(ctx, models.NewRoundResult(2, at.AddDate(0, 0, 1), models.Digits{0, 0, 0}))
	if err != nil || !created {
		t.Fatalf("expected next day insert to succeed, created=%v err=%v", created, err)
	}
}

func TestApplyBalanceChangeGuardsDebits(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	account := createAccount(t, repo, "alice", 50)

	if err := repo.ApplyBalanceChange(ctx, account.ID, -80, false); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := repo.ApplyBalanceChange(ctx, account.ID, -80, true); err != nil {
		t.Fatalf("unguarded debit failed: %v", err)
	}

	if err := repo.ApplyBalanceChange(ctx, 9999, 10, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stored, _ := repo.GetAccount(ctx, account.ID)
	if stored.Balance != -30 {
		t.Errorf("expected balance -30, got %d", stored.Balance)
	}
}

func TestPostEntryIsAtomic(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	account := createAccount(t, repo, "bob", 10)

	err := repo.PostEntry(ctx, &models.Transaction{
		AccountID: account.ID,
		Type:      models.TransactionBet,
		Amount:    25,
		Status:    models.TransactionCompleted,
	}, false)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	entries, _ := repo.ListTransactions(ctx, TransactionFilter{AccountID: account.ID}, 10, 0)
	if len(entries) != 0 {
		t.Fatalf("expected no ledger entry after failed debit, got %d", len(entries))
	}

	err = repo.PostEntry(ctx, &models.Transaction{
		AccountID: account.ID,
		Type:      models.TransactionWin,
		Amount:    90,
		Status:    models.TransactionCompleted,
	}, false)
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	credits, debits, err := repo.LedgerTotals(ctx, account.ID)
	if err != nil {
		t.Fatalf("LedgerTotals failed: %v", err)
	}
	if credits != 90 || debits != 0 {
		t.Errorf("expected credits=90 debits=0, got %d/%d", credits, debits)
	}

	stored, _ := repo.GetAccount(ctx, account.ID)
	if stored.Balance != 100 {
		t.Errorf("expected balance 100, got %d", stored.Balance)
	}
}

func TestPostEntryRejectsPending(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	account := createAccount(t, repo, "carol", 0)

	err := repo.PostEntry(context.Background(), &models.Transaction{
		AccountID: account.ID,
		Type:      models.TransactionDeposit,
		Amount:    10,
		Status:    models.TransactionPending,
	}, false)
	if err == nil {
		t.Fatal("expected pending entry to be refused")
	}
}

func TestTransitionTransactionOnlyOnce(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	account := createAccount(t, repo, "dave", 0)

	entry := &models.Transaction{AccountID: account.ID, Type: models.TransactionDeposit, Amount: 100, Status: models.TransactionPending}
	if err := repo.CreateTransaction(ctx, entry); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	if err := repo.TransitionTransaction(ctx, entry.ID, models.TransactionPending, models.TransactionApproved, "ok"); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}
	err := repo.TransitionTransaction(ctx, entry.ID, models.TransactionPending, models.TransactionRejected, "late")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	if err := repo.AppendTransactionNote(ctx, entry.ID, "checked"); err != nil {
		t.Fatalf("AppendTransactionNote failed: %v", err)
	}
	stored, _ := repo.GetTransaction(ctx, entry.ID)
	if stored.Status != models.TransactionApproved || stored.Description != "ok | checked" {
		t.Errorf("unexpected entry: status=%s description=%q", stored.Status, stored.Description)
	}
}

func TestClaimDepositReference(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	claimed, err := repo.ClaimDepositReference(ctx, "UTR123", 1)
	if err != nil || !claimed {
		t.Fatalf("expected first claim to succeed, claimed=%v err=%v", claimed, err)
	}

	claimed, err = repo.ClaimDepositReference(ctx, "UTR123", 2)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if claimed {
		t.Fatal("expected duplicate reference to be refused")
	}
}

func TestCountActiveReferrals(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	referrer := createAccount(t, repo, "ref", 0)

	deposits := []int64{150, 60, 0}
	for i, amount := range deposits {
		code := referrer.ReferralCode
		account := createAccount(t, repo, fmt.Sprintf("friend%d", i), 0)
		repo.UpdateAccountFields(ctx, account.ID, map[string]interface{}{"referred_by": code})
		if amount > 0 {
			repo.CreateTransaction(ctx, &models.Transaction{
				AccountID: account.ID,
				Type:      models.TransactionDeposit,
				Amount:    amount,
				Status:    models.TransactionApproved,
			})
		}
	}

	// a pending deposit never counts
	repo.CreateTransaction(ctx, &models.Transaction{AccountID: 3, Type: models.TransactionDeposit, Amount: 500, Status: models.TransactionPending})

	active, err := repo.CountActiveReferrals(ctx, referrer.ReferralCode, 100)
	if err != nil {
		t.Fatalf("CountActiveReferrals failed: %v", err)
	}
	if active != 1 {
		t.Errorf("expected 1 active referral, got %d", active)
	}

	total, _ := repo.CountReferrals(ctx, referrer.ReferralCode)
	if total != 3 {
		t.Errorf("expected 3 referrals, got %d", total)
	}
}

func TestArchiveTierIsIdempotent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	account := createAccount(t, repo, "erin", 0)

	if err := repo.ArchiveTier(ctx, account.ID, "2026-02", models.TierGold); err != nil {
		t.Fatalf("ArchiveTier failed: %v", err)
	}
	if err := repo.ArchiveTier(ctx, account.ID, "2026-02", models.TierSilver); err != nil {
		t.Fatalf("second ArchiveTier failed: %v", err)
	}

	history, _ := repo.ListTierHistory(ctx, account.ID)
	if len(history) != 1 || history[0].Tier != models.TierGold {
		t.Errorf("expected a single gold entry, got %+v", history)
	}
}

func TestResolveBetOnlyOnce(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	account := createAccount(t, repo, "frank", 0)

	bet := &models.Bet{AccountID: account.ID, RoundNumber: 1, RoundDate: "2026-03-01", Kind: models.BetSingle, Digit: 3, Stake: 10, Status: models.BetPending}
	if err := repo.CreateBet(ctx, bet); err != nil {
		t.Fatalf("CreateBet failed: %v", err)
	}

	now := time.Now().UTC()
	if err := repo.ResolveBet(ctx, bet.ID, models.BetLost, nil, now); err != nil {
		t.Fatalf("ResolveBet failed: %v", err)
	}
	winnings := int64(90)
	if err := repo.ResolveBet(ctx, bet.ID, models.BetWon, &winnings, now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	pending, _ := repo.ListPendingBets(ctx, 1, "2026-03-01")
	if len(pending) != 0 {
		t.Errorf("expected no pending bets, got %d", len(pending))
	}
}

func TestSettings(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	if _, ok, err := repo.GetSetting(ctx, models.SettingBettingEnabled); err != nil || ok {
		t.Fatalf("expected missing setting, ok=%v err=%v", ok, err)
	}

	repo.SetSetting(ctx, models.SettingBettingEnabled, "false")
	repo.SetSetting(ctx, models.SettingBettingEnabled, "true")

	value, ok, err := repo.GetSetting(ctx, models.SettingBettingEnabled)
	if err != nil || !ok || value != "true" {
		t.Errorf("expected true, got %q ok=%v err=%v", value, ok, err)
	}
}

func TestBetDigitsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))
	account := createAccount(t, repo, "digits", 0)

	single := &models.Bet{AccountID: account.ID, RoundNumber: 3, RoundDate: "2026-03-02", Kind: models.BetSingle, Digit: 7, Stake: 10, Status: models.BetPending}
	combo := &models.Bet{AccountID: account.ID, RoundNumber: 3, RoundDate: "2026-03-02", Kind: models.BetCombination, Digit: 9, Digits: models.Digits{2, 3, 4}, Stake: 10, Status: models.BetPending}
	for _, bet := range []*models.Bet{single, combo} {
		if err := repo.CreateBet(ctx, bet); err != nil {
			t.Fatalf("CreateBet failed: %v", err)
		}
	}

	stored, err := repo.GetBet(ctx, combo.ID)
	if err != nil {
		t.Fatalf("GetBet failed: %v", err)
	}
	if stored.Digits.String() != "2-3-4" {
		t.Errorf("expected digits 2-3-4, got %q", stored.Digits.String())
	}

	stored, err = repo.GetBet(ctx, single.ID)
	if err != nil {
		t.Fatalf("GetBet failed: %v", err)
	}
	if len(stored.Digits) != 0 {
		t.Errorf("expected no digits on a single bet, got %v", stored.Digits)
	}
}
