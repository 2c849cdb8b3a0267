package services

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/releafnow/backend/models"
)

func TestWithdrawalAddress_SetAndGet(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	svc := NewWithdrawalService(db)

	addr, err := svc.GetAddress(user.ID)
	require.NoError(t, err)
	require.Nil(t, addr)

	require.NoError(t, svc.SetAddress(user.ID, "0xC0FFEE"))
	addr, err = svc.GetAddress(user.ID)
	require.NoError(t, err)
	require.NotNil(t, addr)
	require.Equal(t, "0xC0FFEE", *addr)

	require.ErrorIs(t, svc.SetAddress(user.ID, "   "), ErrValidation)
	require.ErrorIs(t, svc.SetAddress(9999, "0xC0FFEE"), ErrNotFound)

	_, err = svc.GetAddress(9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRequest_InsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)

	_, err := NewWithdrawalService(db).CreateRequest(user.ID, d(30), "0xC0FFEE", nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreateRequest_PendingDoesNotCover(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	// a pending reward is not spendable
	seedTransaction(t, db, user.ID, 50, models.TransactionTypeReward, models.TransactionStatusPending)

	_, err := NewWithdrawalService(db).CreateRequest(user.ID, d(10), "0xC0FFEE", nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreateRequest_Success(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)
	svc := NewWithdrawalService(db)

	row, err := svc.CreateRequest(user.ID, d(20), "0xC0FFEE", nil)
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalStatusPending, row.Status)
	require.True(t, row.Amount.Equal(d(20)))
	require.Equal(t, "0xC0FFEE", row.WithdrawalAddress)

	// opening a request does not touch the ledger
	bal, err := NewTokenService(db).UserBalance(user.ID)
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(d(25)))

	// one pending request per user
	_, err = svc.CreateRequest(user.ID, d(5), "0xC0FFEE", nil)
	require.ErrorIs(t, err, ErrConflict)
}

func TestCreateRequest_ExactBalanceAllowed(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)

	_, err := NewWithdrawalService(db).CreateRequest(user.ID, d(25), "0xC0FFEE", nil)
	require.NoError(t, err)
}

func TestCreateRequest_Validation(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	svc := NewWithdrawalService(db)

	_, err := svc.CreateRequest(user.ID, d(0), "0xC0FFEE", nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateRequest(user.ID, d(10), "  ", nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestSetStatus_ApproveBooksDeduction(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)
	svc := NewWithdrawalService(db)

	req, err := svc.CreateRequest(user.ID, d(20), "0xC0FFEE", nil)
	require.NoError(t, err)

	row, err := svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusApproved, nil, nil)
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalStatusApproved, row.Status)
	require.Equal(t, admin.ID, *row.ProcessedBy)
	require.NotNil(t, row.ProcessedAt)

	var deduction models.TokenTransaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, models.TransactionTypeDeduction).First(&deduction).Error)
	require.Equal(t, models.TransactionStatusCompleted, deduction.Status)
	require.True(t, deduction.Amount.Equal(d(20)))
	require.Equal(t, admin.ID, *deduction.ProcessedBy)
	require.NotNil(t, deduction.Notes)
	require.Equal(t, "Withdrawal: Approved withdrawal request", *deduction.Notes)

	bal, err := NewTokenService(db).UserBalance(user.ID)
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(d(5)), "balance=%s", bal.Balance)

	// approving twice must fail
	_, err = svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusApproved, nil, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSetStatus_ApproveRechecksBalance(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)
	svc := NewWithdrawalService(db)

	req, err := svc.CreateRequest(user.ID, d(20), "0xC0FFEE", nil)
	require.NoError(t, err)

	// balance drops between request and approval
	seedTransaction(t, db, user.ID, 10, models.TransactionTypeDeduction, models.TransactionStatusCompleted)

	_, err = svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusApproved, nil, nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSetStatus_Reject(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)
	svc := NewWithdrawalService(db)

	req, err := svc.CreateRequest(user.ID, d(20), "0xC0FFEE", nil)
	require.NoError(t, err)

	notes := "address looks wrong"
	row, err := svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusRejected, &notes, nil)
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalStatusRejected, row.Status)
	require.Equal(t, "address looks wrong", *row.Notes)

	// rejection books nothing on the ledger
	var count int64
	require.NoError(t, db.Model(&models.TokenTransaction{}).
		Where("type = ?", models.TransactionTypeDeduction).Count(&count).Error)
	require.Zero(t, count)

	// and the member may open a new request
	_, err = svc.CreateRequest(user.ID, d(20), "0xC0FFEE", nil)
	require.NoError(t, err)
}

func TestSetStatus_Complete(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)
	svc := NewWithdrawalService(db)

	req, err := svc.CreateRequest(user.ID, d(20), "0xC0FFEE", nil)
	require.NoError(t, err)

	hash := "0xabc"

	// completion is only reachable from approved
	_, err = svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusCompleted, nil, &hash)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusApproved, nil, nil)
	require.NoError(t, err)

	// and requires the on-chain hash
	_, err = svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusCompleted, nil, nil)
	require.ErrorIs(t, err, ErrValidation)

	row, err := svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusCompleted, nil, &hash)
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalStatusCompleted, row.Status)
	require.Equal(t, "0xabc", *row.TransactionHash)

	// completing settles nothing further; the deduction was booked at approval
	bal, err := NewTokenService(db).UserBalance(user.ID)
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(d(5)))

	_, err = svc.SetStatus(admin.ID, req.ID, models.WithdrawalStatusCompleted, nil, &hash)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreateRequest_ConcurrentSingleWinner(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "member@example.com", models.RoleMember)
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)
	svc := NewWithdrawalService(db)

	// racing requests for one user: exactly one may open, the rest must see
	// the pending request or the drained balance
	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateRequest(user.ID, d(20), "0xC0FFEE", nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.True(t, errors.Is(err, ErrConflict) || errors.Is(err, ErrInsufficientBalance), "unexpected error: %v", err)
	}
	require.Equal(t, 1, wins)

	var open int64
	require.NoError(t, db.Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status = ?", user.ID, models.WithdrawalStatusPending).
		Count(&open).Error)
	require.EqualValues(t, 1, open)
}

// Runs the same race against a real postgres so the FOR UPDATE row lock is the
// thing serializing the requests. Set TEST_DATABASE_URL to enable.
func TestCreateRequest_ConcurrentPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Tree{},
		&models.TokenTransaction{},
		&models.WithdrawalRequest{},
	))

	email := fmt.Sprintf("race-%d@example.com", time.Now().UnixNano())
	user := seedUser(t, db, email, models.RoleMember)
	t.Cleanup(func() {
		db.Where("user_id = ?", user.ID).Delete(&models.WithdrawalRequest{})
		db.Where("user_id = ?", user.ID).Delete(&models.TokenTransaction{})
		db.Delete(&models.User{}, user.ID)
	})
	seedTransaction(t, db, user.ID, 25, models.TransactionTypeReward, models.TransactionStatusCompleted)
	svc := NewWithdrawalService(db)

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateRequest(user.ID, d(20), "0xC0FFEE", nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.True(t, errors.Is(err, ErrConflict) || errors.Is(err, ErrInsufficientBalance), "unexpected error: %v", err)
	}
	require.Equal(t, 1, wins, "concurrent requests overdrew the balance")
}

func TestSetStatus_UnknownRequestAndStatus(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
	svc := NewWithdrawalService(db)

	_, err := svc.SetStatus(admin.ID, 9999, models.WithdrawalStatusApproved, nil, nil)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SetStatus(admin.ID, 1, "archived", nil, nil)
	require.ErrorIs(t, err, ErrValidation)
}
