package users

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/releafnow/backend/database"
	"github.com/releafnow/backend/models"
	"github.com/releafnow/backend/services"
	"github.com/releafnow/backend/utils"
)

// serviceError maps ledger service errors onto the response envelope. Shared
// by the other handlers in this package.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: err.Error()})
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Insufficient balance"})
	case errors.Is(err, services.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: err.Error()})
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInvalidTransition):
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: err.Error()})
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
	}
}

// GetBalanceHandler returns the caller's derived token balance.
// GET /api/tokens/balance
func GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	bal, err := services.NewTokenService(database.DB).UserBalance(uid)
	if err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    bal,
	})
}

type transactionDTO struct {
	ID           uint            `json:"id"`
	UserID       uint            `json:"user_id"`
	TreeID       *uint           `json:"tree_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	ProcessedBy  *uint           `json:"processed_by,omitempty"`
	ProcessedAt  *string         `json:"processed_at,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UserName     string          `json:"user_name"`
	UserEmail    string          `json:"user_email"`
	TreeLocation string          `json:"tree_location,omitempty"`
}

// GetTransactionsHandler lists ledger rows: members see their own, admins see
// everyone's, joined with user identity and tree location.
// GET /api/tokens/transactions
func GetTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	type row struct {
		models.TokenTransaction
		UserName     string
		UserEmail    string
		TreeLocation *string
	}

	q := database.DB.Model(&models.TokenTransaction{}).
		Select("token_transactions.*, users.name AS user_name, users.email AS user_email, trees.location AS tree_location").
		Joins("JOIN users ON token_transactions.user_id = users.id").
		Joins("LEFT JOIN trees ON token_transactions.tree_id = trees.id").
		Order("token_transactions.created_at DESC")

	if utils.GetUserRole(r) != models.RoleAdmin {
		q = q.Where("token_transactions.user_id = ?", uid)
	}

	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	items := make([]transactionDTO, 0, len(rows))
	for _, t := range rows {
		dto := transactionDTO{
			ID:           t.ID,
			UserID:       t.UserID,
			TreeID:       t.TreeID,
			Amount:       t.Amount,
			Type:         t.Type,
			Status:       t.Status,
			ProcessedBy:  t.ProcessedBy,
			Notes:        utils.GetStringValue(t.Notes),
			CreatedAt:    t.CreatedAt.Format(time.RFC3339),
			UserName:     t.UserName,
			UserEmail:    t.UserEmail,
			TreeLocation: utils.GetStringValue(t.TreeLocation),
		}
		if t.ProcessedAt != nil {
			s := t.ProcessedAt.Format(time.RFC3339)
			dto.ProcessedAt = &s
		}
		items = append(items, dto)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    items,
	})
}
