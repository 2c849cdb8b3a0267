package admins

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/releafnow/backend/database"
	"github.com/releafnow/backend/middleware"
	"github.com/releafnow/backend/services"
	"github.com/releafnow/backend/utils"
)

// serviceError maps ledger service errors onto the response envelope.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: err.Error()})
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "User has insufficient balance"})
	case errors.Is(err, services.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: err.Error()})
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInvalidTransition):
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: err.Error()})
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
	}
}

// GetBalancesHandler returns every member's derived balance, highest first.
// GET /api/tokens/balances
func GetBalancesHandler(w http.ResponseWriter, r *http.Request) {
	balances, err := services.NewTokenService(database.DB).AllBalances()
	if err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    balances,
	})
}

// AllocateHandler credits or debits a member's ledger on behalf of the acting
// admin.
// POST /api/tokens/allocate
func AllocateHandler(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserID(r)

	var req services.AllocationInput
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	created, err := services.NewTokenService(database.DB).Allocate(adminID, req)
	if err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Tokens allocated",
		Data:    created,
	})
}

type bulkAllocateRequest struct {
	Allocations []services.AllocationInput `json:"allocations" validate:"required,min=1,dive"`
}

// AllocateBulkHandler applies a batch of allocations atomically: any failing
// item rolls back the whole batch.
// POST /api/tokens/allocate/bulk
func AllocateBulkHandler(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserID(r)

	var req bulkAllocateRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	created, err := services.NewTokenService(database.DB).AllocateBulk(adminID, req.Allocations)
	if err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Tokens allocated",
		Data:    map[string]interface{}{"transactions": created},
	})
}

type setTransactionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed cancelled"`
}

// SetTransactionStatusHandler resolves a pending ledger row.
// PATCH /api/tokens/transactions/{id}/status
func SetTransactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserID(r)

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid transaction id"})
		return
	}

	var req setTransactionStatusRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	row, err := services.NewTokenService(database.DB).SetTransactionStatus(adminID, uint(id), req.Status)
	if err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Transaction updated",
		Data:    row,
	})
}
