package admins

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/releafnow/backend/database"
	"github.com/releafnow/backend/models"
	"github.com/releafnow/backend/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	database.DB = db
	return db
}

func updateUserReq(t *testing.T, adminID uint, targetID string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/users/"+targetID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), utils.UserIDKey, adminID)
	ctx = context.WithValue(ctx, utils.UserRoleKey, models.RoleAdmin)
	return mux.SetURLVars(req.WithContext(ctx), map[string]string{"id": targetID})
}

func TestUpdateUser_PromoteToAdmin(t *testing.T) {
	db := setupTestDB(t)
	admin := models.User{Email: "admin@example.com", Name: "admin", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)
	member := models.User{Email: "member@example.com", Name: "member", Role: models.RoleMember}
	require.NoError(t, db.Create(&member).Error)

	w := httptest.NewRecorder()
	UpdateUserHandler(w, updateUserReq(t, admin.ID, fmt.Sprint(member.ID), `{"role":"admin"}`))
	require.Equal(t, http.StatusOK, w.Code)

	var got models.User
	require.NoError(t, db.First(&got, member.ID).Error)
	require.Equal(t, models.RoleAdmin, got.Role)
}

func TestUpdateUser_ProfileFields(t *testing.T) {
	db := setupTestDB(t)
	admin := models.User{Email: "admin@example.com", Name: "admin", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)
	member := models.User{Email: "member@example.com", Name: "member", Role: models.RoleMember}
	require.NoError(t, db.Create(&member).Error)

	w := httptest.NewRecorder()
	UpdateUserHandler(w, updateUserReq(t, admin.ID, fmt.Sprint(member.ID), `{"name":"New Name","country":"Kenya"}`))
	require.Equal(t, http.StatusOK, w.Code)

	var got models.User
	require.NoError(t, db.First(&got, member.ID).Error)
	require.Equal(t, "New Name", got.Name)
	require.NotNil(t, got.Country)
	require.Equal(t, "Kenya", *got.Country)
	require.Equal(t, models.RoleMember, got.Role, "role must be untouched when not sent")
}

func TestUpdateUser_Rejections(t *testing.T) {
	db := setupTestDB(t)
	admin := models.User{Email: "admin@example.com", Name: "admin", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)
	member := models.User{Email: "member@example.com", Name: "member", Role: models.RoleMember}
	require.NoError(t, db.Create(&member).Error)

	// nothing to update
	w := httptest.NewRecorder()
	UpdateUserHandler(w, updateUserReq(t, admin.ID, fmt.Sprint(member.ID), `{}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	// unknown role value
	w = httptest.NewRecorder()
	UpdateUserHandler(w, updateUserReq(t, admin.ID, fmt.Sprint(member.ID), `{"role":"superuser"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	// unknown user
	w = httptest.NewRecorder()
	UpdateUserHandler(w, updateUserReq(t, admin.ID, "9999", `{"role":"admin"}`))
	require.Equal(t, http.StatusNotFound, w.Code)
}
