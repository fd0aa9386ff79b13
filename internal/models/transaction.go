package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type TransactionType string

const (
	TransactionDeposit     TransactionType = "Deposit"
	TransactionWithdrawal  TransactionType = "Withdrawal"
	TransactionWin         TransactionType = "Win"
	TransactionBet         TransactionType = "Bet"
	TransactionAdminCredit TransactionType = "AdminCredit"
	TransactionAdminDebit  TransactionType = "AdminDebit"
	TransactionBonus       TransactionType = "Bonus"
	TransactionCommission  TransactionType = "Commission"
)

// IsCredit reports whether an entry of this type adds to the balance
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionDeposit, TransactionWin, TransactionAdminCredit, TransactionBonus, TransactionCommission:
		return true
	}
	return false
}

// Signed returns amount with the sign implied by the type
func (t TransactionType) Signed(amount int64) int64 {
	if t.IsCredit() {
		return amount
	}
	return -amount
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "Pending"
	TransactionApproved  TransactionStatus = "Approved"
	TransactionRejected  TransactionStatus = "Rejected"
	TransactionCompleted TransactionStatus = "Completed"
)

// Settled reports whether the entry counts toward the balance
func (s TransactionStatus) Settled() bool {
	return s == TransactionApproved || s == TransactionCompleted
}

// Transaction is one append-only ledger entry. Amount is never negative.
type Transaction struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	AccountID   uint               `gorm:"not null;index" json:"account_id"`
	Type        TransactionType    `gorm:"size:20;not null;index" json:"type"`
	Amount      int64              `gorm:"not null" json:"amount"`
	Status      TransactionStatus  `gorm:"size:20;not null;index" json:"status"`
	Description string             `gorm:"type:text" json:"description"`
	Reference   *string            `gorm:"size:128;index" json:"reference,omitempty"`
	ReceiptURL  *string            `gorm:"size:500" json:"receipt_url,omitempty"`
	Withdrawal  *WithdrawalDetails `gorm:"type:text" json:"withdrawal,omitempty"`
	CreatedAt   time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TableName specifies the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// DepositReference holds every external reference used by an approved deposit.
// The primary key makes a second approval with the same reference impossible.
type DepositReference struct {
	Reference     string    `gorm:"primaryKey;size:128" json:"reference"`
	TransactionID uint      `gorm:"uniqueIndex;not null" json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (DepositReference) TableName() string {
	return "deposit_references"
}

type PayoutMethod string

const (
	PayoutUPI  PayoutMethod = "upi"
	PayoutBank PayoutMethod = "bank"
)

// UPIDestination is the payout target for method upi
type UPIDestination struct {
	UPIID string `json:"upi_id"`
}

// BankDestination is the payout target for method bank
type BankDestination struct {
	AccountNumber string `json:"account_number"`
	IFSCCode      string `json:"ifsc_code"`
}

// WithdrawalDetails is where a withdrawal is paid to. Exactly one of UPI or
// Bank is set, matching Method.
type WithdrawalDetails struct {
	AccountHolderName string           `json:"account_holder_name"`
	ContactNumber     string           `json:"contact_number"`
	Method            PayoutMethod     `json:"method"`
	UPI               *UPIDestination  `json:"upi,omitempty"`
	Bank              *BankDestination `json:"bank,omitempty"`
}

func (d WithdrawalDetails) Validate() error {
	if d.AccountHolderName == "" {
		return fmt.Errorf("account holder name is required")
	}
	if d.ContactNumber == "" {
		return fmt.Errorf("contact number is required")
	}

	switch d.Method {
	case PayoutUPI:
		if d.UPI == nil || d.UPI.UPIID == "" || d.Bank != nil {
			return fmt.Errorf("upi withdrawals need a upi id and no bank details")
		}
	case PayoutBank:
		if d.Bank == nil || d.Bank.AccountNumber == "" || d.Bank.IFSCCode == "" || d.UPI != nil {
			return fmt.Errorf("bank withdrawals need an account number and ifsc code")
		}
	default:
		return fmt.Errorf("unknown payout method %q", d.Method)
	}

	return nil
}

func (d WithdrawalDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *WithdrawalDetails) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return fmt.Errorf("cannot scan %T into WithdrawalDetails", value)
}
