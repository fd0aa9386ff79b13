package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"round-lottery/internal/auth"
	"round-lottery/internal/config"
	"round-lottery/internal/database"
	"round-lottery/internal/models"
	"round-lottery/internal/repository"
	"round-lottery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 12:30 UTC: round 5 has been drawn, bets on round 6 (13:00) close at 12:50
var testNow = time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)

type testServer struct {
	router *gin.Engine
	repo   *repository.Repository
}

func setupServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

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

	slots, err := config.ParseSchedule(config.DefaultSchedule)
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}

	repo := repository.NewRepository(db)
	clock := services.ClockFunc(func() time.Time { return testNow })
	roundClock := services.NewRoundClock(slots)
	settings := services.NewSettingsService(repo, false)
	membership := services.NewMembershipService(repo, config.MembershipConfig{Tiers: config.DefaultTiers}, nil, clock)
	referrals := services.NewReferralService(repo, config.ReferralConfig{
		QualifyingDeposit: 100,
		StepSize:          10,
		StepBonus:         100,
		MilestoneCount:    100,
		MilestoneBonus:    1000,
	}, nil)
	accounts := services.NewAccountService(repo, roundClock, membership, settings, clock, config.AppConfig{
		StartingBonus:      20,
		ReferralCodePrefix: "DESSI",
	}, 10*time.Minute)
	payouts := services.NewPayoutTable(config.PayoutConfig{
		SingleMultiplier:      decimal.NewFromInt(9),
		CombinationMultiplier: decimal.NewFromInt(18),
	})
	settlement := services.NewSettlementEngine(repo, payouts, membership, nil, clock)
	generator := services.NewResultGenerator(repo, clock, roundClock, settlement, nil)
	reporting := services.NewReportingService(repo)
	approvals := services.NewApprovalService(repo, membership, referrals, settings, nil, clock, config.PaymentConfig{MinWithdrawal: 500})
	admin := services.NewAdminService(repo, accounts, reporting, settings, nil)

	router := gin.New()
	RegisterRoutes(router, &Handlers{
		Auth:          NewAuthHandler(accounts),
		Rounds:        NewRoundHandler(roundClock, generator, accounts, clock),
		Bets:          NewBetHandler(accounts, reporting, nil),
		Payments:      NewPaymentHandler(approvals, accounts),
		Referrals:     NewReferralHandler(referrals),
		Notifications: NewNotificationHandler(accounts, admin, nil),
		Admin:         NewAdminHandler(admin, approvals, reporting, settings, clock),
	})

	return &testServer{router: router, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// register creates an account over the API and returns its id and token
func (s *testServer) register(t *testing.T, username string) (uint, string) {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/auth/register", "", services.RegisterRequest{
		Username:     username,
		Password:     "secret123",
		MobileNumber: "9" + username,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, w.Code, w.Body.String())
	}

	var resp struct {
		Token string         `json:"token"`
		User  models.Account `json:"user"`
	}
	decode(t, w, &resp)
	return resp.User.ID, resp.Token
}

func (s *testServer) promote(t *testing.T, accountID uint, role models.Role) {
	t.Helper()
	err := s.repo.DB().Model(&models.Account{}).Where("id = ?", accountID).Update("role", role).Error
	if err != nil {
		t.Fatalf("failed to set role: %v", err)
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := setupServer(t)
	_, token := s.register(t, "ravi")

	w := s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var me struct {
		User models.Account `json:"user"`
	}
	decode(t, w, &me)
	if me.User.Balance != 20 {
		t.Errorf("expected starting balance 20, got %d", me.User.Balance)
	}

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "ravi", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a wrong password, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/auth/register", "", services.RegisterRequest{
		Username:     "ravi",
		Password:     "secret123",
		MobileNumber: "9other",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for a taken username, got %d", w.Code)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/bets", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/bets", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a bad token, got %d", w.Code)
	}
}

func TestPlaceBet(t *testing.T) {
	s := setupServer(t)
	_, token := s.register(t, "asha")

	digit := 4
	w := s.do(t, http.MethodPost, "/api/bets", token, services.PlaceBetRequest{
		Kind:  models.BetSingle,
		Digit: &digit,
		Stake: 10,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var placed struct {
		Data models.Bet `json:"data"`
	}
	decode(t, w, &placed)
	if placed.Data.RoundNumber != 6 {
		t.Errorf("expected bet on round 6, got %d", placed.Data.RoundNumber)
	}

	w = s.do(t, http.MethodPost, "/api/bets", token, services.PlaceBetRequest{
		Kind:  models.BetSingle,
		Digit: &digit,
		Stake: 100,
	})
	if w.Code != http.StatusPaymentRequired {
		t.Errorf("expected 402 for a stake above the balance, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/bets", token, services.PlaceBetRequest{
		Kind:   models.BetCombination,
		Digits: []int{1, 2},
		Stake:  1,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for two combination digits, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/bets", token, nil)
	var listed struct {
		Data []models.Bet `json:"data"`
	}
	decode(t, w, &listed)
	if len(listed.Data) != 1 {
		t.Errorf("expected 1 bet, got %d", len(listed.Data))
	}
}

type limitAll struct{}

func (limitAll) Allow(ctx context.Context, subject string, limit int64, window time.Duration) (bool, error) {
	return false, nil
}

func TestPlaceBetRateLimited(t *testing.T) {
	s := setupServer(t)
	_, token := s.register(t, "kiran")

	// swap the bet routes onto a limiter that refuses everything
	h := &BetHandler{limiter: limitAll{}}
	router := gin.New()
	router.POST("/bets", auth.AuthMiddleware(), h.PlaceBet)

	req := httptest.NewRequest(http.MethodPost, "/bets", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
}

func TestResults(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/results/2026-03-02/2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a past round, got %d: %s", w.Code, w.Body.String())
	}
	var first struct {
		Data models.RoundResult `json:"data"`
	}
	decode(t, w, &first)

	w = s.do(t, http.MethodGet, "/api/results/2026-03-02/2", "", nil)
	var again struct {
		Data models.RoundResult `json:"data"`
	}
	decode(t, w, &again)
	if first.Data.ID != again.Data.ID || first.Data.Equation != again.Data.Equation {
		t.Errorf("expected the same result twice, got %+v and %+v", first.Data, again.Data)
	}

	w = s.do(t, http.MethodGet, "/api/results/2026-03-02/16", "", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202 for a future round, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/results/2026-03-02/17", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown round, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/rounds/upcoming?count=3", "", nil)
	var upcoming struct {
		Data []services.Round `json:"data"`
	}
	decode(t, w, &upcoming)
	if len(upcoming.Data) != 3 || upcoming.Data[0].Number != 6 {
		t.Errorf("unexpected upcoming rounds %+v", upcoming.Data)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := setupServer(t)
	_, token := s.register(t, "meena")

	w := s.do(t, http.MethodGet, "/api/admin/accounts", token, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a player, got %d", w.Code)
	}
}

func TestDepositApprovalFlow(t *testing.T) {
	s := setupServer(t)
	adminID, adminToken := s.register(t, "boss")
	s.promote(t, adminID, models.RoleAdmin)
	playerID, playerToken := s.register(t, "vijay")

	w := s.do(t, http.MethodPost, "/api/payments/deposit", playerToken, gin.H{"amount": 1000, "reference": "UTR123"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var deposit struct {
		Data models.Transaction `json:"data"`
	}
	decode(t, w, &deposit)

	w = s.do(t, http.MethodGet, "/api/admin/transactions/pending", adminToken, nil)
	var pending struct {
		Data []models.Transaction `json:"data"`
	}
	decode(t, w, &pending)
	if len(pending.Data) != 1 || pending.Data[0].ID != deposit.Data.ID {
		t.Fatalf("expected the deposit in the queue, got %+v", pending.Data)
	}

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/admin/transactions/%d/approve", deposit.Data.ID), adminToken, gin.H{"bonus": 50})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/admin/transactions/%d/approve", deposit.Data.ID), adminToken, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 approving twice, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/payments/deposit", playerToken, gin.H{"amount": 10, "reference": "UTR123"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for a used reference, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/admin/accounts/%d/reconcile", playerID), adminToken, nil)
	var recon struct {
		Data services.Reconciliation `json:"data"`
	}
	decode(t, w, &recon)
	if recon.Data.Balance != 1070 || !recon.Data.Balanced {
		t.Errorf("expected balanced 1070, got %+v", recon.Data)
	}

	w = s.do(t, http.MethodGet, "/api/admin/logs", adminToken, nil)
	var logs struct {
		Data []models.AdminLog `json:"data"`
	}
	decode(t, w, &logs)
	if len(logs.Data) != 1 || logs.Data[0].Action != "APPROVE_TRANSACTION" {
		t.Errorf("expected one APPROVE_TRANSACTION audit row, got %+v", logs.Data)
	}
}

func TestWithdrawalValidation(t *testing.T) {
	s := setupServer(t)
	_, token := s.register(t, "dev")

	w := s.do(t, http.MethodPost, "/api/payments/withdraw", token, gin.H{
		"amount": 600,
		"details": models.WithdrawalDetails{
			AccountHolderName: "Dev",
			ContactNumber:     "999",
			Method:            models.PayoutUPI,
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for upi without an id, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/payments/withdraw", token, gin.H{
		"amount": 100,
		"details": models.WithdrawalDetails{
			AccountHolderName: "Dev",
			ContactNumber:     "999",
			Method:            models.PayoutUPI,
			UPI:               &models.UPIDestination{UPIID: "dev@upi"},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 below the minimum withdrawal, got %d", w.Code)
	}
}

func TestAdminSettingsClosesBetting(t *testing.T) {
	s := setupServer(t)
	adminID, adminToken := s.register(t, "chief")
	s.promote(t, adminID, models.RoleAdmin)
	_, token := s.register(t, "lata")

	w := s.do(t, http.MethodPut, "/api/admin/settings", adminToken, gin.H{"betting_enabled": false})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	digit := 1
	w = s.do(t, http.MethodPost, "/api/bets", token, services.PlaceBetRequest{Kind: models.BetSingle, Digit: &digit, Stake: 5})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 with betting disabled, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/admin/logs", adminToken, nil)
	var logs struct {
		Data []models.AdminLog `json:"data"`
	}
	decode(t, w, &logs)
	if len(logs.Data) != 1 || logs.Data[0].Action != "SET_BETTING_ENABLED" {
		t.Errorf("expected one SET_BETTING_ENABLED log, got %+v", logs.Data)
	}
}
