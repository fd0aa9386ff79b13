package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSchedule(t *testing.T) {
	slots, err := ParseSchedule(DefaultSchedule)
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}

	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if slots[0] != (Slot{Hour: 8}) || slots[15] != (Slot{Hour: 23}) {
		t.Errorf("unexpected bounds: first=%s last=%s", slots[0], slots[15])
	}
}

func TestParseScheduleRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"25:00",
		"10:00,09:00",
		"10:00,10:00",
		"nope",
	}

	for _, raw := range cases {
		if _, err := ParseSchedule(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("BET_CUTOFF", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.StartingBonus != 20 {
		t.Errorf("expected starting bonus 20, got %d", cfg.App.StartingBonus)
	}
	if cfg.Rounds.BetCutoff.Minutes() != 5 {
		t.Errorf("expected bet cutoff 5m, got %v", cfg.Rounds.BetCutoff)
	}
	if !cfg.Payout.CombinationMultiplier.Equal(cfg.Payout.SingleMultiplier.Mul(decimal.NewFromInt(2))) {
		t.Errorf("expected combination multiplier twice the single one, got %s", cfg.Payout.CombinationMultiplier)
	}
	if cfg.GetDSN() != "round_lottery.db" {
		t.Errorf("unexpected sqlite DSN %q", cfg.GetDSN())
	}
}
