package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"round-lottery/internal/models"
	"round-lottery/internal/repository"

	"golang.org/x/sync/singleflight"
)

// DigitSource draws one digit in 0..9
type DigitSource interface {
	Digit() int
}

// PseudoRandomDigits draws from the process-wide pseudo-random source
type PseudoRandomDigits struct{}

func (PseudoRandomDigits) Digit() int {
	return rand.IntN(10)
}

// RoundLocker is a cross-process lock keyed by round. release is always
// safe to call.
type RoundLocker interface {
	Acquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// ResultGenerator creates each round's result exactly once and runs its
// settlement pass. Within a process, callers for the same round share one
// attempt; across processes the optional locker and the unique index on
// (round_number, round_date) decide a single creator.
type ResultGenerator struct {
	repo       *repository.Repository
	clock      Clock
	roundClock *RoundClock
	settlement *SettlementEngine
	digits     DigitSource
	locker     RoundLocker
	notifier   Notifier
	group      singleflight.Group
}

func NewResultGenerator(repo *repository.Repository, clock Clock, roundClock *RoundClock, settlement *SettlementEngine, notifier Notifier) *ResultGenerator {
	return &ResultGenerator{
		repo:       repo,
		clock:      clock,
		roundClock: roundClock,
		settlement: settlement,
		digits:     PseudoRandomDigits{},
		notifier:   notifier,
	}
}

// WithLocker adds a cross-process lock in front of result creation
func (g *ResultGenerator) WithLocker(locker RoundLocker) *ResultGenerator {
	g.locker = locker
	return g
}

// WithDigits replaces the digit source
func (g *ResultGenerator) WithDigits(digits DigitSource) *ResultGenerator {
	g.digits = digits
	return g
}

// GetOrCreateResult returns the result of round, drawing and settling it
// first if this caller is the one to create it. Rounds still in the future
// fail with ErrResultPending.
func (g *ResultGenerator) GetOrCreateResult(ctx context.Context, round Round) (*models.RoundResult, error) {
	existing, err := g.repo.GetResult(ctx, round.Number, round.Day())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if round.ScheduledAt.After(g.clock.Now()) {
		return nil, ErrResultPending
	}

	v, err, _ := g.group.Do(round.Key(), func() (interface{}, error) {
		return g.create(context.WithoutCancel(ctx), round)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.RoundResult), nil
}

func (g *ResultGenerator) create(ctx context.Context, round Round) (*models.RoundResult, error) {
	if g.locker != nil {
		release, acquired, err := g.locker.Acquire(ctx, round.Key())
		if err != nil {
			log.Printf("[ResultGenerator] Lock for %s unavailable, relying on unique index: %v", round.Key(), err)
		} else {
			defer release()
			if !acquired {
				return g.awaitOther(ctx, round)
			}
		}
	}

	result := models.NewRoundResult(round.Number, round.ScheduledAt, models.Digits{
		g.digits.Digit(),
		g.digits.Digit(),
		g.digits.Digit(),
	})

	created, err := g.repo.InsertResultIfAbsent(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("failed to store result for %s: %w", round.Key(), err)
	}
	if !created {
		return g.repo.GetResult(ctx, round.Number, round.Day())
	}

	log.Printf("[ResultGenerator] Round %d/%s drawn: %s (final digit %d)",
		result.RoundNumber, result.RoundDate, result.Equation, result.FinalDigit)

	if err := g.settle(ctx, result); err != nil {
		log.Printf("[ResultGenerator] Settlement of %s incomplete, will retry: %v", round.Key(), err)
	}

	if g.notifier != nil {
		g.notifier.Broadcast(ctx, models.ResultOut{
			Round:      result.RoundNumber,
			Date:       result.RoundDate,
			Digits:     result.Digits,
			FinalDigit: result.FinalDigit,
		})
	}

	return result, nil
}

// awaitOther waits for the process holding the lock to store the result
func (g *ResultGenerator) awaitOther(ctx context.Context, round Round) (*models.RoundResult, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(10 * time.Second)

	for {
		result, err := g.repo.GetResult(ctx, round.Number, round.Day())
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}

		select {
		case <-ticker.C:
		case <-timeout:
			return nil, ErrResultPending
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (g *ResultGenerator) settle(ctx context.Context, result *models.RoundResult) error {
	if g.settlement == nil {
		return nil
	}

	if _, err := g.settlement.Settle(ctx, result); err != nil {
		return err
	}

	settledAt := g.clock.Now()
	if err := g.repo.MarkResultSettled(ctx, result.ID, settledAt); err != nil {
		return err
	}
	result.SettledAt = &settledAt
	return nil
}

// CurrentResult returns the result of the latest round whose time has passed
func (g *ResultGenerator) CurrentResult(ctx context.Context) (*models.RoundResult, error) {
	current, _ := g.roundClock.At(g.clock.Now())
	return g.GetOrCreateResult(ctx, current)
}

// CatchUp creates any missing results among the last n due rounds, oldest
// first
func (g *ResultGenerator) CatchUp(ctx context.Context, n int) (int, error) {
	current, _ := g.roundClock.At(g.clock.Now())

	rounds := make([]Round, 0, n)
	for r, i := current, 0; i < n; r, i = g.roundClock.Before(r), i+1 {
		rounds = append(rounds, r)
	}

	created := 0
	for i := len(rounds) - 1; i >= 0; i-- {
		count, err := g.repo.CountResults(ctx, rounds[i].Number, rounds[i].Day())
		if err != nil {
			return created, err
		}
		if count > 0 {
			continue
		}
		if _, err := g.GetOrCreateResult(ctx, rounds[i]); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// RecoverUnsettled reruns settlement for results older than olderThan whose
// pass never finished
func (g *ResultGenerator) RecoverUnsettled(ctx context.Context, olderThan time.Duration) (int, error) {
	results, err := g.repo.ListUnsettledResults(ctx, g.clock.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	recovered := 0
	for i := range results {
		if err := g.settle(ctx, &results[i]); err != nil {
			log.Printf("[ResultGenerator] Recovery of round %d/%s failed: %v",
				results[i].RoundNumber, results[i].RoundDate, err)
			continue
		}
		recovered++
	}
	return recovered, nil
}

// GetResult returns the result of round number on day, creating it if the
// round has already taken place
func (g *ResultGenerator) GetResult(ctx context.Context, number int, day string) (*models.RoundResult, error) {
	round, err := g.roundClock.Lookup(number, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return g.GetOrCreateResult(ctx, round)
}

// ListResults returns stored results, newest first
func (g *ResultGenerator) ListResults(ctx context.Context, limit, offset int) ([]models.RoundResult, error) {
	return g.repo.ListResults(ctx, limit, offset)
}
