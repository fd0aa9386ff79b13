package jobs

import (
	"context"
	"testing"
	"time"

	"round-lottery/internal/config"
	"round-lottery/internal/database"
	"round-lottery/internal/repository"
	"round-lottery/internal/services"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRoundCheckerCatchesUp(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:round_checker?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	slots, err := config.ParseSchedule(config.DefaultSchedule)
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}

	repo := repository.NewRepository(db)
	clock := services.ClockFunc(func() time.Time { return time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC) })
	generator := services.NewResultGenerator(repo, clock, services.NewRoundClock(slots), nil, nil)

	checker := NewRoundChecker(generator, time.Minute, 4)
	checker.check()

	// rounds 1-3 of today and the last round of yesterday
	expected := []struct {
		number int
		day    string
	}{{16, "2026-03-01"}, {1, "2026-03-02"}, {2, "2026-03-02"}, {3, "2026-03-02"}}

	for _, e := range expected {
		count, err := repo.CountResults(context.Background(), e.number, e.day)
		if err != nil {
			t.Fatalf("CountResults failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected result for round %d/%s, got %d", e.number, e.day, count)
		}
	}
}
