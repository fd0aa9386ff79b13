package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

type MembershipTier string

const (
	TierNone     MembershipTier = "none"
	TierSilver   MembershipTier = "silver"
	TierGold     MembershipTier = "gold"
	TierPlatinum MembershipTier = "platinum"
	TierDiamond  MembershipTier = "diamond"
)

// TierRank orders tiers from none (0) to diamond (4)
func TierRank(t MembershipTier) int {
	switch t {
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierPlatinum:
		return 3
	case TierDiamond:
		return 4
	}
	return 0
}

// Account represents a player, agent or administrator
type Account struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	Username            string          `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash        string          `gorm:"size:255;not null" json:"-"`
	FullName            string          `gorm:"size:255" json:"full_name"`
	MobileNumber        string          `gorm:"uniqueIndex;size:32;not null" json:"mobile_number"`
	Balance             int64           `gorm:"not null;default:0" json:"balance"`
	Role                Role            `gorm:"size:20;not null;default:user" json:"role"`
	AgentID             *uint           `gorm:"index" json:"agent_id,omitempty"`
	CommissionRate      decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"commission_rate"`
	BetLocked           bool            `gorm:"default:false" json:"bet_locked"`
	ProfileLocked       bool            `gorm:"default:false" json:"profile_locked"`
	ReferralCode        string          `gorm:"uniqueIndex;size:20;not null" json:"referral_code"`
	ReferredBy          *string         `gorm:"index;size:20" json:"referred_by,omitempty"`
	CurrentTier         MembershipTier  `gorm:"size:20;not null;default:none" json:"current_tier"`
	MonthlyDepositTotal int64           `gorm:"not null;default:0" json:"monthly_deposit_total"`
	LastTierCheck       time.Time       `json:"last_tier_check"`
	LastLogin           *time.Time      `json:"last_login,omitempty"`
	TierHistory         []TierHistory   `gorm:"foreignKey:AccountID" json:"tier_history,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Account model
func (Account) TableName() string {
	return "accounts"
}

// TierHistory archives the tier an account held in a past month.
// At most one row exists per (account, month).
type TierHistory struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AccountID uint           `gorm:"not null;uniqueIndex:idx_tier_history_account_month" json:"account_id"`
	Month     string         `gorm:"size:7;not null;uniqueIndex:idx_tier_history_account_month" json:"month"`
	Tier      MembershipTier `gorm:"size:20;not null" json:"tier"`
	CreatedAt time.Time      `json:"created_at"`
}

func (TierHistory) TableName() string {
	return "tier_history"
}
