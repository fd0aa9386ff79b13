package models

import (
	"encoding/json"
	"time"
)

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// NotificationPayload is one of the typed notification bodies below. The
// message key selects the localized text on the client.
type NotificationPayload interface {
	MessageKey() string
	Kind() NotificationKind
}

type DepositSucceeded struct {
	Amount int64 `json:"amount"`
}

func (DepositSucceeded) MessageKey() string     { return "depositSuccess" }
func (DepositSucceeded) Kind() NotificationKind { return NotificationSuccess }

type WithdrawalSucceeded struct {
	Amount int64 `json:"amount"`
}

func (WithdrawalSucceeded) MessageKey() string     { return "withdrawalSuccess" }
func (WithdrawalSucceeded) Kind() NotificationKind { return NotificationSuccess }

type PaymentRejected struct {
	Reason string `json:"reason,omitempty"`
}

func (PaymentRejected) MessageKey() string     { return "paymentRejected" }
func (PaymentRejected) Kind() NotificationKind { return NotificationError }

type DuplicateTransaction struct {
	Reference string `json:"reference"`
}

func (DuplicateTransaction) MessageKey() string     { return "duplicateTransaction" }
func (DuplicateTransaction) Kind() NotificationKind { return NotificationError }

type BonusAdded struct {
	Amount int64 `json:"amount"`
}

func (BonusAdded) MessageKey() string     { return "bonusAdded" }
func (BonusAdded) Kind() NotificationKind { return NotificationSuccess }

type TierUpgraded struct {
	Tier   MembershipTier `json:"tier"`
	Amount int64          `json:"amount"`
}

func (TierUpgraded) MessageKey() string     { return "tierUpgradeMessage" }
func (TierUpgraded) Kind() NotificationKind { return NotificationSuccess }

type BetWonNotice struct {
	Round    int   `json:"round"`
	Winnings int64 `json:"winnings"`
}

func (BetWonNotice) MessageKey() string     { return "betWon" }
func (BetWonNotice) Kind() NotificationKind { return NotificationSuccess }

type ResultOut struct {
	Round      int    `json:"round"`
	Date       string `json:"date"`
	Digits     Digits `json:"digits"`
	FinalDigit int    `json:"final_digit"`
}

func (ResultOut) MessageKey() string     { return "newResultOut" }
func (ResultOut) Kind() NotificationKind { return NotificationSuccess }

type BettingClosingSoon struct {
	Round int `json:"round"`
}

func (BettingClosingSoon) MessageKey() string     { return "bettingClosingSoon" }
func (BettingClosingSoon) Kind() NotificationKind { return NotificationInfo }

type BettingOpenToday struct{}

func (BettingOpenToday) MessageKey() string     { return "bettingOpenToday" }
func (BettingOpenToday) Kind() NotificationKind { return NotificationInfo }

type BettingClosedTonight struct{}

func (BettingClosedTonight) MessageKey() string     { return "bettingClosedTonight" }
func (BettingClosedTonight) Kind() NotificationKind { return NotificationInfo }

// AdminBroadcast is a free-text announcement from an administrator
type AdminBroadcast struct {
	Message string `json:"message"`
}

func (AdminBroadcast) MessageKey() string     { return "broadcastMessage" }
func (AdminBroadcast) Kind() NotificationKind { return NotificationInfo }

// UserNotification is a persisted notification for one account
type UserNotification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	AccountID  uint             `gorm:"not null;index" json:"account_id"`
	MessageKey string           `gorm:"size:64;not null" json:"message_key"`
	Kind       NotificationKind `gorm:"size:20;not null" json:"kind"`
	Params     string           `gorm:"type:text" json:"params"`
	IsRead     bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
}

func (UserNotification) TableName() string {
	return "user_notifications"
}

// NewUserNotification encodes payload into a notification row for accountID
func NewUserNotification(accountID uint, payload NotificationPayload) (*UserNotification, error) {
	params, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &UserNotification{
		AccountID:  accountID,
		MessageKey: payload.MessageKey(),
		Kind:       payload.Kind(),
		Params:     string(params),
	}, nil
}

// AdminNotification is a free-text message for the administrators' inbox
type AdminNotification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IsRead    bool      `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AdminNotification) TableName() string {
	return "admin_notifications"
}
