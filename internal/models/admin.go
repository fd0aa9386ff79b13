package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB for PostgreSQL JSON support
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return fmt.Errorf("cannot scan %T into JSONB", value)
}

// AdminLog records admin actions for audit trail
type AdminLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AdminID         uint      `gorm:"not null;index" json:"admin_id"`
	Admin           *Account  `gorm:"foreignKey:AdminID" json:"admin,omitempty"`
	Action          string    `gorm:"size:100;not null" json:"action"`
	TargetAccountID *uint     `gorm:"index" json:"target_account_id,omitempty"`
	Details         JSONB     `gorm:"type:text" json:"details"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

func (AdminLog) TableName() string {
	return "admin_logs"
}

const (
	SettingBettingEnabled      = "betting_enabled"
	SettingAutoApproveDeposits = "auto_approve_deposits"
)

// SystemSetting is a runtime switch an administrator can flip
type SystemSetting struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
