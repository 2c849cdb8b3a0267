package users

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

type treeDTO struct {
	models.Tree
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// ListTreesHandler lists planting submissions: members see their own, admins
// see everyone's.
// GET /api/trees
func ListTreesHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	q := database.DB.Model(&models.Tree{}).
		Select("trees.*, users.name AS user_name, users.email AS user_email").
		Joins("JOIN users ON trees.user_id = users.id").
		Order("trees.created_at DESC")

	if utils.GetUserRole(r) != models.RoleAdmin {
		q = q.Where("trees.user_id = ?", uid)
	}

	var rows []treeDTO
	if err := q.Scan(&rows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: rows})
}

// GetTreeHandler returns one submission. Members can only read their own.
// GET /api/trees/{id}
func GetTreeHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid tree id"})
		return
	}

	q := database.DB.Model(&models.Tree{}).
		Select("trees.*, users.name AS user_name, users.email AS user_email").
		Joins("JOIN users ON trees.user_id = users.id").
		Where("trees.id = ?", id)
	if utils.GetUserRole(r) != models.RoleAdmin {
		q = q.Where("trees.user_id = ?", uid)
	}

	var row treeDTO
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Tree not found"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: row})
}

type createTreeRequest struct {
	PlantedDate string   `json:"planted_date" validate:"required,datetime=2006-01-02"`
	Location    string   `json:"location" validate:"required,max=255"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	TreeType    string   `json:"tree_type" validate:"required,max=100"`
	Photo       string   `json:"photo" validate:"required,max=255"`
	Notes       *string  `json:"notes,omitempty"`
}

// CreateTreeHandler registers a new planting submission in pending status.
// Photo is a reference to an already-uploaded image.
// POST /api/trees
func CreateTreeHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	var req createTreeRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	planted, err := time.Parse("2006-01-02", req.PlantedDate)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid planted_date"})
		return
	}

	tree := models.Tree{
		UserID:      uid,
		PlantedDate: planted,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		TreeType:    req.TreeType,
		Photo:       req.Photo,
		Status:      models.TreeStatusPending,
		Notes:       req.Notes,
	}
	if err := database.DB.Create(&tree).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Tree submitted", Data: tree})
}

type updateTreeRequest struct {
	PlantedDate *string  `json:"planted_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Location    *string  `json:"location,omitempty" validate:"omitempty,max=255"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	TreeType    *string  `json:"tree_type,omitempty" validate:"omitempty,max=100"`
	Photo       *string  `json:"photo,omitempty" validate:"omitempty,max=255"`
	Notes       *string  `json:"notes,omitempty"`
}

// UpdateTreeHandler edits a submission. Members may only edit their own
// pending trees; admins may edit any.
// PUT /api/trees/{id}
func UpdateTreeHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid tree id"})
		return
	}

	var req updateTreeRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	isAdmin := utils.GetUserRole(r) == models.RoleAdmin

	var tree models.Tree
	q := database.DB.Where("id = ?", id)
	if !isAdmin {
		q = q.Where("user_id = ?", uid)
	}
	if err := q.First(&tree).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Tree not found"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	if !isAdmin && tree.Status != models.TreeStatusPending {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Can only update pending trees"})
		return
	}

	if req.PlantedDate != nil {
		planted, err := time.Parse("2006-01-02", *req.PlantedDate)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid planted_date"})
			return
		}
		tree.PlantedDate = planted
	}
	if req.Location != nil {
		tree.Location = *req.Location
	}
	if req.Latitude != nil {
		tree.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		tree.Longitude = req.Longitude
	}
	if req.TreeType != nil {
		tree.TreeType = *req.TreeType
	}
	if req.Photo != nil {
		tree.Photo = *req.Photo
	}
	if req.Notes != nil {
		tree.Notes = req.Notes
	}

	if err := database.DB.Save(&tree).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Tree updated", Data: tree})
}
