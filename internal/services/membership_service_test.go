package services

import (
	"context"
	"testing"
	"time"

	"round-lottery/internal/models"
	"round-lottery/internal/repository"
)

func TestTierFor(t *testing.T) {
	svc := NewMembershipService(nil, testConfig(t).Membership, nil, nil)

	cases := []struct {
		total int64
		tier  string
		ok    bool
	}{
		{0, "", false},
		{9999, "", false},
		{10000, "silver", true},
		{49999, "gold", true},
		{250000, "diamond", true},
	}

	for _, tc := range cases {
		tier, ok := svc.TierFor(tc.total)
		if ok != tc.ok || tier.Name != tc.tier {
			t.Errorf("TierFor(%d) = %q/%v, expected %q/%v", tc.total, tier.Name, ok, tc.tier, tc.ok)
		}
	}
}

func TestDepositCrossingTierPaysBonusOnce(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, approvalNow)
	alice := app.register(t, "alice", "")

	first := app.deposit(t, alice.ID, 9500, "UTR1")
	if first.TierUpgrade != nil {
		t.Fatalf("unexpected upgrade below the threshold: %+v", first.TierUpgrade)
	}

	second := app.deposit(t, alice.ID, 1000, "UTR2")
	if second.TierUpgrade == nil || second.TierUpgrade.To != models.TierSilver || second.TierUpgrade.Bonus != 100 {
		t.Fatalf("expected silver upgrade with bonus 100, got %+v", second.TierUpgrade)
	}

	app.deposit(t, alice.ID, 100, "UTR3")

	bonuses, err := app.repo.ListTransactions(ctx, repository.TransactionFilter{AccountID: alice.ID, Type: models.TransactionBonus}, 100, 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	tierBonuses := 0
	for _, b := range bonuses {
		if b.Description == "Bonus for reaching silver tier." {
			tierBonuses++
		}
	}
	if tierBonuses != 1 {
		t.Errorf("expected one tier bonus, got %d", tierBonuses)
	}

	account, err := app.repo.GetAccount(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.CurrentTier != models.TierSilver || account.MonthlyDepositTotal != 10600 {
		t.Errorf("unexpected membership state %s/%d", account.CurrentTier, account.MonthlyDepositTotal)
	}
	if account.Balance != 20+10600+100 {
		t.Errorf("expected balance %d, got %d", 20+10600+100, account.Balance)
	}
	if app.notifier.count(alice.ID, "tierUpgradeMessage") != 1 {
		t.Error("expected one tier notification")
	}
	app.assertReconciled(t, alice.ID)
}

func TestJumpingTiersPaysOnlyTheReachedTier(t *testing.T) {
	app := newTestApp(t, approvalNow)
	alice := app.register(t, "alice", "")

	result := app.deposit(t, alice.ID, 60000, "UTR1")
	if result.TierUpgrade == nil || result.TierUpgrade.To != models.TierPlatinum || result.TierUpgrade.Bonus != 500 {
		t.Fatalf("expected platinum upgrade with bonus 500, got %+v", result.TierUpgrade)
	}
	if got := app.balance(t, alice.ID); got != 20+60000+500 {
		t.Errorf("expected balance %d, got %d", 20+60000+500, got)
	}
}

func TestMonthlyResetArchivesTier(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, approvalNow)
	alice := app.register(t, "alice", "")
	app.deposit(t, alice.ID, 20000, "UTR1")

	app.clock.Set(time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC))
	if err := app.membership.Touch(ctx, alice.ID); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	// a second touch in the same month must not archive again
	if err := app.membership.Touch(ctx, alice.ID); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	account, err := app.repo.GetAccount(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.CurrentTier != models.TierNone || account.MonthlyDepositTotal != 0 {
		t.Errorf("expected reset membership, got %s/%d", account.CurrentTier, account.MonthlyDepositTotal)
	}

	history, err := app.accounts.TierHistory(ctx, alice.ID)
	if err != nil {
		t.Fatalf("TierHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Month != "2026-03" || history[0].Tier != models.TierGold {
		t.Fatalf("expected gold archived for 2026-03, got %+v", history)
	}

	// a deposit in the new month starts from zero
	result := app.deposit(t, alice.ID, 10000, "UTR2")
	if result.TierUpgrade == nil || result.TierUpgrade.To != models.TierSilver {
		t.Errorf("expected silver upgrade in the new month, got %+v", result.TierUpgrade)
	}
}

func TestApplyDepositDirect(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, approvalNow)
	alice := app.register(t, "alice", "")

	if _, err := app.membership.ApplyDeposit(ctx, alice.ID, 0); err == nil {
		t.Error("expected error for zero amount")
	}

	upgrade, err := app.membership.ApplyDeposit(ctx, alice.ID, 10000)
	if err != nil {
		t.Fatalf("ApplyDeposit failed: %v", err)
	}
	if upgrade == nil || upgrade.To != models.TierSilver {
		t.Fatalf("expected silver upgrade, got %+v", upgrade)
	}
	// the bonus is a ledger entry, so the balance still reconciles
	app.assertReconciled(t, alice.ID)
}
