package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusCompleted = "completed"
)

// WithdrawalRequest is a member-initiated cash-out intent. Lifecycle:
// pending -> approved -> completed, or pending -> rejected. Approval books a
// completed deduction on the token ledger; completion only records the
// external transaction hash.
type WithdrawalRequest struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"not null;index" json:"user_id"`
	Amount            decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	WithdrawalAddress string          `gorm:"size:255;not null" json:"withdrawal_address"`
	Status            string          `gorm:"size:50;default:'pending';index" json:"status"`
	ProcessedBy       *uint           `json:"processed_by,omitempty"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	Notes             *string         `gorm:"type:text" json:"notes,omitempty"`
	TransactionHash   *string         `gorm:"size:255" json:"transaction_hash,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}
