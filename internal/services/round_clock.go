package services

import (
	"fmt"
	"time"

	"round-lottery/internal/config"
	"round-lottery/internal/models"
)

// Round is one scheduled slot on one UTC day. Number is 1-based.
type Round struct {
	Number      int       `json:"round_number"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Day returns the round's calendar day as stored on results and bets
func (r Round) Day() string {
	return r.ScheduledAt.UTC().Format(models.DateLayout)
}

// Key identifies the round across processes
func (r Round) Key() string {
	return fmt.Sprintf("round:%s:%d", r.Day(), r.Number)
}

// RoundClock maps wall-clock time onto the fixed daily schedule
type RoundClock struct {
	slots []config.Slot
}

func NewRoundClock(slots []config.Slot) *RoundClock {
	return &RoundClock{slots: slots}
}

// Slots returns the number of rounds per day
func (c *RoundClock) Slots() int {
	return len(c.slots)
}

func (c *RoundClock) slotTime(day time.Time, i int) time.Time {
	s := c.slots[i]
	return time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// At returns the latest round whose time has passed and the first round
// strictly after now. Before the first slot of a day, current is the last
// slot of the previous day; after the last slot, next is tomorrow's first.
func (c *RoundClock) At(now time.Time) (current, next Round) {
	now = now.UTC()
	today := startOfDay(now)

	currentIdx, nextIdx := -1, -1
	for i := range c.slots {
		t := c.slotTime(today, i)
		if !t.After(now) {
			currentIdx = i
		} else if nextIdx < 0 {
			nextIdx = i
		}
	}

	if currentIdx >= 0 {
		current = Round{Number: currentIdx + 1, ScheduledAt: c.slotTime(today, currentIdx)}
	} else {
		last := len(c.slots) - 1
		current = Round{Number: last + 1, ScheduledAt: c.slotTime(today.AddDate(0, 0, -1), last)}
	}

	if nextIdx >= 0 {
		next = Round{Number: nextIdx + 1, ScheduledAt: c.slotTime(today, nextIdx)}
	} else {
		next = Round{Number: 1, ScheduledAt: c.slotTime(today.AddDate(0, 0, 1), 0)}
	}

	return current, next
}

// After returns the round scheduled right after r
func (c *RoundClock) After(r Round) Round {
	day := startOfDay(r.ScheduledAt)
	if r.Number < len(c.slots) {
		return Round{Number: r.Number + 1, ScheduledAt: c.slotTime(day, r.Number)}
	}
	return Round{Number: 1, ScheduledAt: c.slotTime(day.AddDate(0, 0, 1), 0)}
}

// Before returns the round scheduled right before r
func (c *RoundClock) Before(r Round) Round {
	day := startOfDay(r.ScheduledAt)
	if r.Number > 1 {
		return Round{Number: r.Number - 1, ScheduledAt: c.slotTime(day, r.Number-2)}
	}
	last := len(c.slots) - 1
	return Round{Number: last + 1, ScheduledAt: c.slotTime(day.AddDate(0, 0, -1), last)}
}

// Lookup returns round number on the given day ("2006-01-02")
func (c *RoundClock) Lookup(number int, day string) (Round, error) {
	if number < 1 || number > len(c.slots) {
		return Round{}, fmt.Errorf("round %d outside schedule of %d rounds: %w", number, len(c.slots), ErrNotFound)
	}
	d, err := time.ParseInLocation(models.DateLayout, day, time.UTC)
	if err != nil {
		return Round{}, fmt.Errorf("invalid round date %q: %w", day, err)
	}
	return Round{Number: number, ScheduledAt: c.slotTime(d, number-1)}, nil
}

// Upcoming returns the k rounds after now as a restartable sequence
func (c *RoundClock) Upcoming(now time.Time, k int) *RoundIterator {
	_, next := c.At(now)
	return &RoundIterator{clock: c, first: next, limit: k}
}

// RoundIterator walks a finite run of consecutive rounds
type RoundIterator struct {
	clock    *RoundClock
	first    Round
	cur      Round
	limit    int
	produced int
}

// Next returns the following round, or false once the sequence is exhausted
func (it *RoundIterator) Next() (Round, bool) {
	if it.produced >= it.limit {
		return Round{}, false
	}
	if it.produced == 0 {
		it.cur = it.first
	} else {
		it.cur = it.clock.After(it.cur)
	}
	it.produced++
	return it.cur, true
}

// Reset rewinds the sequence to its first round
func (it *RoundIterator) Reset() {
	it.produced = 0
}

// Collect drains the remaining rounds into a slice
func (it *RoundIterator) Collect() []Round {
	var rounds []Round
	for {
		r, ok := it.Next()
		if !ok {
			return rounds
		}
		rounds = append(rounds, r)
	}
}
