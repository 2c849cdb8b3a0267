package users

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/releafnow/backend/database"
	"github.com/releafnow/backend/middleware"
	"github.com/releafnow/backend/models"
	"github.com/releafnow/backend/services"
	"github.com/releafnow/backend/utils"
)

// GetWithdrawalAddressHandler returns the caller's external wallet address.
// GET /api/withdrawals/address
func GetWithdrawalAddressHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	addr, err := services.NewWithdrawalService(database.DB).GetAddress(uid)
	if err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    map[string]interface{}{"withdrawal_address": addr},
	})
}

type setAddressRequest struct {
	WithdrawalAddress string `json:"withdrawal_address" validate:"required,max=255"`
}

// SetWithdrawalAddressHandler stores the caller's wallet address. The value is
// free text; no chain-specific checksum is applied.
// PUT /api/withdrawals/address
func SetWithdrawalAddressHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	var req setAddressRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	if err := services.NewWithdrawalService(database.DB).SetAddress(uid, req.WithdrawalAddress); err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Withdrawal address updated successfully",
		Data:    map[string]interface{}{"withdrawal_address": req.WithdrawalAddress},
	})
}

type createWithdrawalRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	WithdrawalAddress string          `json:"withdrawal_address" validate:"required,max=255"`
	Notes             *string         `json:"notes,omitempty"`
}

// CreateWithdrawalRequestHandler opens a pending cash-out request for the
// caller. Balance sufficiency and the one-pending-request rule are enforced in
// the service, inside a single locked transaction.
// POST /api/withdrawals/requests
func CreateWithdrawalRequestHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	var req createWithdrawalRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	created, err := services.NewWithdrawalService(database.DB).CreateRequest(uid, req.Amount, req.WithdrawalAddress, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Withdrawal request created",
		Data:    created,
	})
}

type withdrawalRequestDTO struct {
	models.WithdrawalRequest
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// GetWithdrawalRequestsHandler lists requests: members see their own, admins
// see everyone's.
// GET /api/withdrawals/requests
func GetWithdrawalRequestsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	q := database.DB.Model(&models.WithdrawalRequest{}).
		Select("withdrawal_requests.*, users.name AS user_name, users.email AS user_email").
		Joins("JOIN users ON withdrawal_requests.user_id = users.id").
		Order("withdrawal_requests.created_at DESC")

	if utils.GetUserRole(r) != models.RoleAdmin {
		q = q.Where("withdrawal_requests.user_id = ?", uid)
	}

	var rows []withdrawalRequestDTO
	if err := q.Scan(&rows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    rows,
	})
}
