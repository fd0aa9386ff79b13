package models

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Digits is an ordered list of 0..9 values stored as "4-2-3"
type Digits []int

// Sum adds the digits
func (d Digits) Sum() int {
	total := 0
	for _, v := range d {
		total += v
	}
	return total
}

// Sorted returns a sorted copy
func (d Digits) Sorted() Digits {
	out := append(Digits(nil), d...)
	sort.Ints(out)
	return out
}

// SameMultiset reports whether d and other hold the same digits in any order
func (d Digits) SameMultiset(other Digits) bool {
	if len(d) != len(other) {
		return false
	}
	a, b := d.Sorted(), other.Sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (d Digits) String() string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "-")
}

// GormDataType stores digits as text
func (Digits) GormDataType() string {
	return "string"
}

func (d Digits) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Digits) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Digits", value)
	}

	if raw == "" {
		*d = nil
		return nil
	}

	parts := strings.Split(raw, "-")
	out := make(Digits, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid digit %q: %w", p, err)
		}
		out = append(out, n)
	}
	*d = out
	return nil
}

// RoundResult is the immutable draw for one scheduled round.
// (round_number, round_date) is unique.
type RoundResult struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	RoundNumber int        `gorm:"not null;uniqueIndex:idx_round_results_slot" json:"round_number"`
	RoundDate   string     `gorm:"size:10;not null;uniqueIndex:idx_round_results_slot" json:"round_date"`
	ScheduledAt time.Time  `gorm:"not null;index" json:"scheduled_at"`
	Digits      Digits     `gorm:"size:16;not null" json:"digits"`
	Sum         int        `gorm:"not null" json:"sum"`
	FinalDigit  int        `gorm:"not null" json:"final_digit"`
	Equation    string     `gorm:"size:32" json:"equation"`
	SettledAt   *time.Time `gorm:"index" json:"settled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (RoundResult) TableName() string {
	return "round_results"
}

// NewRoundResult derives sum, final digit and equation from three drawn digits
func NewRoundResult(number int, scheduledAt time.Time, digits Digits) *RoundResult {
	sum := digits.Sum()
	return &RoundResult{
		RoundNumber: number,
		RoundDate:   scheduledAt.UTC().Format(DateLayout),
		ScheduledAt: scheduledAt.UTC(),
		Digits:      digits,
		Sum:         sum,
		FinalDigit:  sum % 10,
		Equation:    fmt.Sprintf("%d + %d + %d = %d", digits[0], digits[1], digits[2], sum),
	}
}

// DateLayout is the format of RoundDate and Bet.RoundDate
const DateLayout = "2006-01-02"

type BetKind string

const (
	BetSingle      BetKind = "Single"
	BetCombination BetKind = "Combination"
)

type BetStatus string

const (
	BetPending BetStatus = "Pending"
	BetWon     BetStatus = "Won"
	BetLost    BetStatus = "Lost"
)

// Bet is a stake on one round. Digit is the effective target digit; for
// Combination bets it is the chosen digits' sum mod 10.
type Bet struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AccountID   uint       `gorm:"not null;index" json:"account_id"`
	RoundNumber int        `gorm:"not null;index:idx_bets_round" json:"round_number"`
	RoundDate   string     `gorm:"size:10;not null;index:idx_bets_round" json:"round_date"`
	Kind        BetKind    `gorm:"size:20;not null" json:"kind"`
	Digit       int        `gorm:"not null" json:"digit"`
	Digits      Digits     `gorm:"size:16" json:"digits,omitempty"`
	Stake       int64      `gorm:"not null" json:"stake"`
	Status      BetStatus  `gorm:"size:20;not null;default:Pending;index:idx_bets_round" json:"status"`
	Winnings    *int64     `json:"winnings,omitempty"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (Bet) TableName() string {
	return "bets"
}
