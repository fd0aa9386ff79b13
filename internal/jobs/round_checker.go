package jobs

import (
	"context"
	"log"
	"time"

	"round-lottery/internal/services"
)

// RoundChecker makes sure every due round has a result and that every
// result has been settled, covering draws missed while the service was down
type RoundChecker struct {
	generator   *services.ResultGenerator
	interval    time.Duration
	lookback    int
	settleGrace time.Duration
	stopChan    chan struct{}
}

// NewRoundChecker creates a checker that looks back over lookback rounds
func NewRoundChecker(generator *services.ResultGenerator, interval time.Duration, lookback int) *RoundChecker {
	if lookback < 1 {
		lookback = 1
	}
	return &RoundChecker{
		generator:   generator,
		interval:    interval,
		lookback:    lookback,
		settleGrace: 5 * time.Minute,
		stopChan:    make(chan struct{}),
	}
}

// Start runs one check immediately, then one per interval until Stop
func (rc *RoundChecker) Start() {
	log.Printf("[RoundChecker] Starting round check job (interval: %v, lookback: %d)", rc.interval, rc.lookback)

	rc.check()

	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.check()
		case <-rc.stopChan:
			log.Println("[RoundChecker] Stopping round check job")
			return
		}
	}
}

// Stop stops the check loop
func (rc *RoundChecker) Stop() {
	close(rc.stopChan)
}

func (rc *RoundChecker) check() {
	ctx, cancel := context.WithTimeout(context.Background(), rc.interval+time.Minute)
	defer cancel()

	created, err := rc.generator.CatchUp(ctx, rc.lookback)
	if err != nil {
		log.Printf("[RoundChecker] Error catching up results: %v", err)
	}
	if created > 0 {
		log.Printf("[RoundChecker] Created %d missing results", created)
	}

	recovered, err := rc.generator.RecoverUnsettled(ctx, rc.settleGrace)
	if err != nil {
		log.Printf("[RoundChecker] Error recovering settlements: %v", err)
	}
	if recovered > 0 {
		log.Printf("[RoundChecker] Settled %d results left unsettled", recovered)
	}
}
