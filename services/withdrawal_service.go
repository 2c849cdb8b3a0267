package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/releafnow/backend/models"
)

// WithdrawalService drives the request/approve/complete state machine layered
// on the token ledger. The user row is locked for the duration of every
// balance check + write so concurrent requests cannot overdraw.
type WithdrawalService struct {
	db     *gorm.DB
	tokens *TokenService
}

func NewWithdrawalService(db *gorm.DB) *WithdrawalService {
	return &WithdrawalService{db: db, tokens: NewTokenService(db)}
}

// GetAddress reads the user's external wallet address. The address is free
// text; no chain-specific validation is applied.
func (s *WithdrawalService) GetAddress(userID uint) (*string, error) {
	var user models.User
	if err := s.db.Select("id", "withdrawal_address").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, err
	}
	return user.WithdrawalAddress, nil
}

// SetAddress stores the user's external wallet address.
func (s *WithdrawalService) SetAddress(userID uint, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("%w: withdrawal_address is required", ErrValidation)
	}
	res := s.db.Model(&models.User{}).Where("id = ?", userID).Update("withdrawal_address", address)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return nil
}

// CreateRequest opens a pending withdrawal for the member. The balance check,
// duplicate-pending check and insert run in one transaction with the user row
// locked, so two concurrent requests cannot both pass the check.
func (s *WithdrawalService) CreateRequest(userID uint, amount decimal.Decimal, address string, notes *string) (*models.WithdrawalRequest, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: withdrawal_address is required", ErrValidation)
	}

	var created *models.WithdrawalRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockForUpdate(tx).Select("id").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ErrNotFound, userID)
			}
			return err
		}

		bal, err := s.tokens.balanceWithin(tx, userID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(bal.Balance) {
			return ErrInsufficientBalance
		}

		var pending int64
		if err := tx.Model(&models.WithdrawalRequest{}).
			Where("user_id = ? AND status = ?", userID, models.WithdrawalStatusPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: a pending withdrawal request already exists", ErrConflict)
		}

		row := models.WithdrawalRequest{
			UserID:            userID,
			Amount:            amount,
			WithdrawalAddress: address,
			Status:            models.WithdrawalStatusPending,
			Notes:             notes,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		created = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetStatus transitions a withdrawal request on behalf of actorID.
//
//	pending  -> approved   books a completed deduction for the request amount
//	pending  -> rejected   pure status update
//	approved -> completed  records the external transaction hash
//
// rejected and completed are terminal.
func (s *WithdrawalService) SetStatus(actorID uint, reqID uint, status string, notes *string, transactionHash *string) (*models.WithdrawalRequest, error) {
	switch status {
	case models.WithdrawalStatusApproved, models.WithdrawalStatusRejected, models.WithdrawalStatusCompleted:
	default:
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	var row models.WithdrawalRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&row, reqID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: withdrawal request %d", ErrNotFound, reqID)
			}
			return err
		}

		switch status {
		case models.WithdrawalStatusApproved, models.WithdrawalStatusRejected:
			if row.Status != models.WithdrawalStatusPending {
				return fmt.Errorf("%w: request is %s, expected pending", ErrInvalidTransition, row.Status)
			}
		case models.WithdrawalStatusCompleted:
			if row.Status != models.WithdrawalStatusApproved {
				return fmt.Errorf("%w: request is %s, expected approved", ErrInvalidTransition, row.Status)
			}
			if transactionHash == nil || strings.TrimSpace(*transactionHash) == "" {
				return fmt.Errorf("%w: transaction_hash is required to complete", ErrValidation)
			}
		}

		if status == models.WithdrawalStatusApproved {
			// Lock the owner row: the deduction below must not race a
			// concurrent withdrawal creation for the same user.
			var user models.User
			if err := lockForUpdate(tx).Select("id").First(&user, row.UserID).Error; err != nil {
				return err
			}
			bal, err := s.tokens.balanceWithin(tx, row.UserID)
			if err != nil {
				return err
			}
			if row.Amount.GreaterThan(bal.Balance) {
				return ErrInsufficientBalance
			}

			now := time.Now()
			memo := "Withdrawal: Approved withdrawal request"
			if notes != nil && *notes != "" {
				memo = "Withdrawal: " + *notes
			}
			deduction := models.TokenTransaction{
				UserID:      row.UserID,
				Amount:      row.Amount,
				Type:        models.TransactionTypeDeduction,
				Status:      models.TransactionStatusCompleted,
				ProcessedBy: &actorID,
				ProcessedAt: &now,
				Notes:       &memo,
			}
			if err := tx.Create(&deduction).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		row.Status = status
		row.ProcessedBy = &actorID
		row.ProcessedAt = &now
		if notes != nil {
			row.Notes = notes
		}
		if status == models.WithdrawalStatusCompleted {
			row.TransactionHash = transactionHash
		}
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}
