package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/releafnow/backend/models"
)

// Balance is the derived per-user view over the token ledger. Only completed
// rows count toward earned/spent; balance = earned - spent.
type Balance struct {
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	Balance        decimal.Decimal `json:"balance"`
	PendingRewards int64           `json:"pending_rewards"`
}

// UserBalance extends Balance with user identity for the admin overview.
type UserBalance struct {
	UserID uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Balance
}

// AllocationInput is one admin-initiated ledger credit or debit.
type AllocationInput struct {
	UserID      uint            `json:"user_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"required"`
	TreeID      *uint           `json:"tree_id,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	AutoApprove bool            `json:"auto_approve"`
}

// TokenService owns all writes to the token ledger. Every operation takes the
// acting user explicitly; authorization happens before dispatch.
type TokenService struct {
	db *gorm.DB
}

func NewTokenService(db *gorm.DB) *TokenService {
	return &TokenService{db: db}
}

const balanceSelect = `
	COALESCE(SUM(CASE WHEN status = 'completed' AND type = 'reward' THEN amount ELSE 0 END), 0) AS total_earned,
	COALESCE(SUM(CASE WHEN status = 'completed' AND type IN ('deduction', 'transfer') THEN amount ELSE 0 END), 0) AS total_spent,
	COUNT(CASE WHEN status = 'pending' AND type = 'reward' THEN 1 END) AS pending_rewards`

// UserBalance derives the caller's balance by aggregating their transaction
// rows at query time. A user with no rows gets zeros.
func (s *TokenService) UserBalance(userID uint) (Balance, error) {
	return s.balanceWithin(s.db, userID)
}

func (s *TokenService) balanceWithin(tx *gorm.DB, userID uint) (Balance, error) {
	var row struct {
		TotalEarned    decimal.Decimal
		TotalSpent     decimal.Decimal
		PendingRewards int64
	}
	err := tx.Model(&models.TokenTransaction{}).
		Select(balanceSelect).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		TotalEarned:    row.TotalEarned,
		TotalSpent:     row.TotalSpent,
		Balance:        row.TotalEarned.Sub(row.TotalSpent),
		PendingRewards: row.PendingRewards,
	}, nil
}

// AllBalances computes the balance of every member, ordered by descending
// balance. Members without transactions appear with zeros.
func (s *TokenService) AllBalances() ([]UserBalance, error) {
	var rows []struct {
		ID             uint
		Name           string
		Email          string
		TotalEarned    decimal.Decimal
		TotalSpent     decimal.Decimal
		PendingRewards int64
	}
	err := s.db.Table("users u").
		Select(`u.id, u.name, u.email,
			COALESCE(SUM(CASE WHEN tt.status = 'completed' AND tt.type = 'reward' THEN tt.amount ELSE 0 END), 0) AS total_earned,
			COALESCE(SUM(CASE WHEN tt.status = 'completed' AND tt.type IN ('deduction', 'transfer') THEN tt.amount ELSE 0 END), 0) AS total_spent,
			COUNT(CASE WHEN tt.status = 'pending' AND tt.type = 'reward' THEN 1 END) AS pending_rewards`).
		Joins("LEFT JOIN token_transactions tt ON u.id = tt.user_id").
		Where("u.role = ?", models.RoleMember).
		Group("u.id, u.name, u.email").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]UserBalance, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserBalance{
			UserID: r.ID,
			Name:   r.Name,
			Email:  r.Email,
			Balance: Balance{
				TotalEarned:    r.TotalEarned,
				TotalSpent:     r.TotalSpent,
				Balance:        r.TotalEarned.Sub(r.TotalSpent),
				PendingRewards: r.PendingRewards,
			},
		})
	}
	// Sort in Go rather than on the SQL alias; alias ordering differs across
	// the postgres and sqlite dialects we run against.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Balance.Balance.GreaterThan(out[j-1].Balance.Balance); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// Allocate credits or debits a member's ledger on behalf of actorID. With
// auto-approve the row lands completed and processed; otherwise it stays
// pending for later review. A reward referencing a tree bumps that tree's
// tokens_allocated immediately, whatever the row's status.
func (s *TokenService) Allocate(actorID uint, in AllocationInput) (*models.TokenTransaction, error) {
	if err := validateAllocation(in); err != nil {
		return nil, err
	}

	var created *models.TokenTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, in.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ErrNotFound, in.UserID)
			}
			return err
		}
		row, err := insertAllocation(tx, actorID, in)
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AllocateBulk applies a list of allocations atomically: one bad item rolls
// back the whole batch.
func (s *TokenService) AllocateBulk(actorID uint, ins []AllocationInput) ([]models.TokenTransaction, error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%w: allocations must not be empty", ErrValidation)
	}
	for _, in := range ins {
		if err := validateAllocation(in); err != nil {
			return nil, err
		}
	}

	var created []models.TokenTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, in := range ins {
			var user models.User
			if err := tx.Select("id").First(&user, in.UserID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: user %d", ErrNotFound, in.UserID)
				}
				return err
			}
			row, err := insertAllocation(tx, actorID, in)
			if err != nil {
				return err
			}
			created = append(created, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateAllocation(in AllocationInput) error {
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if !models.ValidTransactionType(in.Type) {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, in.Type)
	}
	return nil
}

func insertAllocation(tx *gorm.DB, actorID uint, in AllocationInput) (*models.TokenTransaction, error) {
	row := models.TokenTransaction{
		UserID: in.UserID,
		TreeID: in.TreeID,
		Amount: in.Amount,
		Type:   in.Type,
		Status: models.TransactionStatusPending,
		Notes:  in.Notes,
	}
	if in.AutoApprove {
		now := time.Now()
		row.Status = models.TransactionStatusCompleted
		row.ProcessedBy = &actorID
		row.ProcessedAt = &now
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}

	if in.TreeID != nil && in.Type == models.TransactionTypeReward {
		res := tx.Model(&models.Tree{}).
			Where("id = ?", *in.TreeID).
			Update("tokens_allocated", gorm.Expr("tokens_allocated + ?", in.Amount))
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("%w: tree %d", ErrNotFound, *in.TreeID)
		}
	}
	return &row, nil
}

// SetTransactionStatus resolves a pending row to completed or cancelled and
// stamps the acting admin. Rows in any other state are immutable.
func (s *TokenService) SetTransactionStatus(actorID uint, txID uint, status string) (*models.TokenTransaction, error) {
	if status != models.TransactionStatusCompleted && status != models.TransactionStatusCancelled {
		return nil, fmt.Errorf("%w: status must be completed or cancelled", ErrValidation)
	}

	var row models.TokenTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&row, txID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: transaction %d", ErrNotFound, txID)
			}
			return err
		}
		if row.Status != models.TransactionStatusPending {
			return fmt.Errorf("%w: transaction %d already processed", ErrConflict, txID)
		}
		now := time.Now()
		row.Status = status
		row.ProcessedBy = &actorID
		row.ProcessedAt = &now
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// lockForUpdate adds a FOR UPDATE row lock on dialects that support it. The
// sqlite dialect used in tests is single-writer, which covers the same window.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
