package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeReward    = "reward"
	TransactionTypeDeduction = "deduction"
	TransactionTypeTransfer  = "transfer"

	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusCancelled = "cancelled"
)

// TokenTransaction is an immutable ledger movement. Balances are always
// derived by summing completed rows; pending and cancelled rows never count.
// Rows transition pending->completed or pending->cancelled only, and are never
// deleted except by cascade on user deletion.
type TokenTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	TreeID      *uint           `gorm:"index" json:"tree_id,omitempty"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Type        string          `gorm:"size:50;not null" json:"type"`
	Status      string          `gorm:"size:50;default:'pending';index" json:"status"`
	ProcessedBy *uint           `json:"processed_by,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Notes       *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Tree *Tree `gorm:"foreignKey:TreeID;constraint:OnDelete:SET NULL" json:"tree,omitempty"`
}

func (TokenTransaction) TableName() string {
	return "token_transactions"
}

// ValidTransactionType reports whether t is one of reward, deduction, transfer.
func ValidTransactionType(t string) bool {
	return t == TransactionTypeReward || t == TransactionTypeDeduction || t == TransactionTypeTransfer
}
