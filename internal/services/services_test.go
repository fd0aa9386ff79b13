package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"round-lottery/internal/config"
	"round-lottery/internal/database"
	"round-lottery/internal/models"
	"round-lottery/internal/ocr"
	"round-lottery/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *repository.Repository {
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

	return repository.NewRepository(db)
}

// fixedClock is a settable test clock
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now.UTC()}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

type sentNotification struct {
	AccountID uint
	Payload   models.NotificationPayload
}

// recordingNotifier keeps every notification in memory
type recordingNotifier struct {
	mu         sync.Mutex
	sent       []sentNotification
	admin      []string
	broadcasts []models.NotificationPayload
}

func (n *recordingNotifier) Notify(ctx context.Context, accountID uint, payload models.NotificationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{AccountID: accountID, Payload: payload})
}

func (n *recordingNotifier) NotifyAdmin(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admin = append(n.admin, message)
}

func (n *recordingNotifier) Broadcast(ctx context.Context, payload models.NotificationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, payload)
}

func (n *recordingNotifier) count(accountID uint, key string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, s := range n.sent {
		if s.AccountID == accountID && s.Payload.MessageKey() == key {
			total++
		}
	}
	return total
}

func (n *recordingNotifier) adminMessages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.admin...)
}

func (n *recordingNotifier) broadcastCount(key string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, p := range n.broadcasts {
		if p.MessageKey() == key {
			total++
		}
	}
	return total
}

// stubVerifier answers receipt checks with a canned result
type stubVerifier struct {
	result *ocr.Result
	err    error
	delay  time.Duration
}

func (v *stubVerifier) Verify(ctx context.Context, receipt *ocr.Receipt, amount int64, reference string) (*ocr.Result, error) {
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return v.result, v.err
}

// sequenceDigits draws a fixed sequence
type sequenceDigits struct {
	mu     sync.Mutex
	digits []int
	next   int
}

func (s *sequenceDigits) Digit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.digits[s.next%len(s.digits)]
	s.next++
	return d
}

func testConfig(t *testing.T) *config.Config {
	slots, err := config.ParseSchedule(config.DefaultSchedule)
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}

	return &config.Config{
		App: config.AppConfig{
			JWTSecret:          "secret",
			StartingBonus:      20,
			ReferralCodePrefix: "DESSI",
		},
		Rounds: config.RoundConfig{
			Schedule:  slots,
			BetCutoff: 10 * time.Minute,
		},
		Payout: config.PayoutConfig{
			SingleMultiplier:      decimal.NewFromInt(9),
			CombinationMultiplier: decimal.NewFromInt(18),
		},
		Membership: config.MembershipConfig{Tiers: config.DefaultTiers},
		Referral: config.ReferralConfig{
			QualifyingDeposit: 100,
			StepSize:          10,
			StepBonus:         100,
			MilestoneCount:    100,
			MilestoneBonus:    1000,
		},
		Payments: config.PaymentConfig{
			MinWithdrawal: 500,
			OCRTimeout:    time.Second,
		},
	}
}

// testApp wires every service over one in-memory database
type testApp struct {
	repo       *repository.Repository
	clock      *fixedClock
	notifier   *recordingNotifier
	roundClock *RoundClock
	settings   *SettingsService
	membership *MembershipService
	referrals  *ReferralService
	settlement *SettlementEngine
	generator  *ResultGenerator
	accounts   *AccountService
	approvals  *ApprovalService
	reporting  *ReportingService
	admin      *AdminService
}

func newTestApp(t *testing.T, now time.Time) *testApp {
	cfg := testConfig(t)
	repo := setupTestDB(t)
	clock := newFixedClock(now)
	notifier := &recordingNotifier{}

	app := &testApp{
		repo:       repo,
		clock:      clock,
		notifier:   notifier,
		roundClock: NewRoundClock(cfg.Rounds.Schedule),
		settings:   NewSettingsService(repo, false),
	}
	app.membership = NewMembershipService(repo, cfg.Membership, notifier, clock)
	app.referrals = NewReferralService(repo, cfg.Referral, notifier)
	app.settlement = NewSettlementEngine(repo, NewPayoutTable(cfg.Payout), app.membership, notifier, clock)
	app.generator = NewResultGenerator(repo, clock, app.roundClock, app.settlement, notifier)
	app.accounts = NewAccountService(repo, app.roundClock, app.membership, app.settings, clock, cfg.App, cfg.Rounds.BetCutoff)
	app.approvals = NewApprovalService(repo, app.membership, app.referrals, app.settings, notifier, clock, cfg.Payments)
	app.reporting = NewReportingService(repo)
	app.admin = NewAdminService(repo, app.accounts, app.reporting, app.settings, notifier)
	return app
}

// register creates a player through the normal sign-up path
func (a *testApp) register(t *testing.T, username, referralCode string) *models.Account {
	t.Helper()
	account, err := a.accounts.Register(context.Background(), RegisterRequest{
		Username:     username,
		Password:     "password123",
		MobileNumber: "mobile-" + username,
		ReferralCode: referralCode,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return account
}

// credit posts an admin credit so tests can fund accounts
func (a *testApp) credit(t *testing.T, accountID uint, amount int64) {
	t.Helper()
	err := a.repo.PostEntry(context.Background(), &models.Transaction{
		AccountID:   accountID,
		Type:        models.TransactionAdminCredit,
		Amount:      amount,
		Status:      models.TransactionCompleted,
		Description: "test funds",
	}, false)
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
}

func (a *testApp) balance(t *testing.T, accountID uint) int64 {
	t.Helper()
	account, err := a.repo.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	return account.Balance
}

func (a *testApp) assertReconciled(t *testing.T, accountID uint) {
	t.Helper()
	rec, err := a.reporting.Reconcile(context.Background(), accountID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !rec.Balanced {
		t.Errorf("account %d balance %d does not match ledger %d", accountID, rec.Balance, rec.Expected)
	}
}

// deposit submits and approves a deposit
func (a *testApp) deposit(t *testing.T, accountID uint, amount int64, reference string) *ApprovalResult {
	t.Helper()
	ctx := context.Background()
	entry, err := a.approvals.SubmitDeposit(ctx, accountID, amount, reference, nil)
	if err != nil {
		t.Fatalf("SubmitDeposit failed: %v", err)
	}
	result, err := a.approvals.Approve(ctx, entry.ID, ApprovalOptions{})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	return result
}

func intPtr(v int) *int {
	return &v
}
