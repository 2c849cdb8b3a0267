package admins

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/releafnow/backend/database"
	"github.com/releafnow/backend/middleware"
	"github.com/releafnow/backend/services"
	"github.com/releafnow/backend/utils"
)

type setRequestStatusRequest struct {
	Status          string  `json:"status" validate:"required,oneof=approved rejected completed"`
	Notes           *string `json:"notes,omitempty"`
	TransactionHash *string `json:"transaction_hash,omitempty" validate:"omitempty,max=255"`
}

// SetWithdrawalStatusHandler drives the withdrawal state machine on behalf of
// the acting admin. Approval books the deduction; completion records the
// external transaction hash.
// PATCH /api/withdrawals/requests/{id}/status
func SetWithdrawalStatusHandler(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserID(r)

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid withdrawal request id"})
		return
	}

	var req setRequestStatusRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	row, err := services.NewWithdrawalService(database.DB).SetStatus(adminID, uint(id), req.Status, req.Notes, req.TransactionHash)
	if err != nil {
		serviceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Withdrawal request updated",
		Data:    row,
	})
}
