package admins

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/releafnow/backend/database"
	"github.com/releafnow/backend/middleware"
	"github.com/releafnow/backend/models"
	"github.com/releafnow/backend/utils"
)

type setTreeStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=pending verified rejected"`
	Notes  *string `json:"notes,omitempty"`
}

// SetTreeStatusHandler verifies or rejects a planting submission. Verification
// stamps the acting admin and timestamp.
// PATCH /api/trees/{id}/status
func SetTreeStatusHandler(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserID(r)

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid tree id"})
		return
	}

	var req setTreeStatusRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	var tree models.Tree
	if err := database.DB.First(&tree, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Tree not found"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	tree.Status = req.Status
	tree.Notes = req.Notes
	if req.Status == models.TreeStatusVerified {
		now := time.Now()
		tree.VerifiedBy = &adminID
		tree.VerifiedAt = &now
	}

	if err := database.DB.Save(&tree).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Tree status updated", Data: tree})
}

// DeleteTreeHandler removes a submission. Ledger rows referencing it keep
// their history with tree_id nulled by the FK.
// DELETE /api/trees/{id}
func DeleteTreeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid tree id"})
		return
	}

	res := database.DB.Delete(&models.Tree{}, id)
	if res.Error != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	if res.RowsAffected == 0 {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Tree not found"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Tree deleted"})
}
