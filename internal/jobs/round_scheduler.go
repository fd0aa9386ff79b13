package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"round-lottery/internal/config"
	"round-lottery/internal/models"
	"round-lottery/internal/services"

	"github.com/robfig/cron/v3"
)

type entryKind string

const (
	entryDraw     entryKind = "draw"
	entryReminder entryKind = "reminder"
)

// drawDelay keeps the draw job clear of the slot boundary
const drawDelay = 5

type scheduleEntry struct {
	Spec  string
	Kind  entryKind
	Round int
}

// scheduleEntries builds the cron specs (with seconds, UTC) for the daily
// schedule: a draw just after each slot and a reminder before it
func scheduleEntries(slots []config.Slot, reminder time.Duration) []scheduleEntry {
	entries := make([]scheduleEntry, 0, len(slots)*2)
	for i, slot := range slots {
		round := i + 1
		entries = append(entries, scheduleEntry{
			Spec:  fmt.Sprintf("%d %d %d * * *", drawDelay, slot.Minute, slot.Hour),
			Kind:  entryDraw,
			Round: round,
		})

		if reminder <= 0 {
			continue
		}
		minutes := ((slot.Hour*60+slot.Minute-int(reminder/time.Minute))%1440 + 1440) % 1440
		entries = append(entries, scheduleEntry{
			Spec:  fmt.Sprintf("0 %d %d * * *", minutes%60, minutes/60),
			Kind:  entryReminder,
			Round: round,
		})
	}
	return entries
}

// RoundScheduler draws each round at its slot and sends the betting
// announcements around the daily schedule
type RoundScheduler struct {
	generator *services.ResultGenerator
	notifier  services.Notifier
	slots     []config.Slot
	reminder  time.Duration
	cron      *cron.Cron
	entryMap  map[string]cron.EntryID
}

func NewRoundScheduler(generator *services.ResultGenerator, notifier services.Notifier, rounds config.RoundConfig) *RoundScheduler {
	return &RoundScheduler{
		generator: generator,
		notifier:  notifier,
		slots:     rounds.Schedule,
		reminder:  rounds.PreRoundReminder,
		entryMap:  make(map[string]cron.EntryID),
	}
}

// Start registers every entry and starts the cron runner
func (s *RoundScheduler) Start() error {
	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))

	for _, entry := range scheduleEntries(s.slots, s.reminder) {
		entry := entry
		entryID, err := s.cron.AddFunc(entry.Spec, func() { s.run(entry) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s for round %d: %w", entry.Kind, entry.Round, err)
		}
		s.entryMap[fmt.Sprintf("%s:%d", entry.Kind, entry.Round)] = entryID
	}

	s.cron.Start()
	log.Printf("[RoundScheduler] Scheduled %d entries for %d daily rounds", len(s.entryMap), len(s.slots))
	return nil
}

// Stop stops the cron runner and waits for running jobs
func (s *RoundScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	log.Println("[RoundScheduler] Stopped")
}

func (s *RoundScheduler) run(entry scheduleEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch entry.Kind {
	case entryDraw:
		s.draw(ctx, entry.Round)
	case entryReminder:
		s.remind(ctx, entry.Round)
	}
}

func (s *RoundScheduler) draw(ctx context.Context, round int) {
	result, err := s.generator.CurrentResult(ctx)
	if err != nil {
		log.Printf("[RoundScheduler] Draw for round %d failed: %v", round, err)
		return
	}
	log.Printf("[RoundScheduler] Round %d/%s result %s", result.RoundNumber, result.RoundDate, result.Digits)

	if round == 1 {
		s.notifier.Broadcast(ctx, models.BettingOpenToday{})
	}
	if round == len(s.slots) {
		s.notifier.Broadcast(ctx, models.BettingClosedTonight{})
	}
}

func (s *RoundScheduler) remind(ctx context.Context, round int) {
	s.notifier.Broadcast(ctx, models.BettingClosingSoon{Round: round})
}
