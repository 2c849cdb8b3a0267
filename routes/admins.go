package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/releafnow/backend/controllers/admins"
	"github.com/releafnow/backend/middleware"
)

// SetAdminRoutes registers the admin-scoped API. Every route runs behind
// AdminAuthMiddleware.
func SetAdminRoutes(api *mux.Router) {
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.AdminAuthMiddleware(http.HandlerFunc(h))
	}

	// Token ledger
	api.Handle("/tokens/balances", admin(admins.GetBalancesHandler)).Methods(http.MethodGet)
	api.Handle("/tokens/allocate", admin(admins.AllocateHandler)).Methods(http.MethodPost)
	api.Handle("/tokens/allocate/bulk", admin(admins.AllocateBulkHandler)).Methods(http.MethodPost)
	api.Handle("/tokens/transactions/{id:[0-9]+}/status", admin(admins.SetTransactionStatusHandler)).Methods(http.MethodPatch)

	// Withdrawals
	api.Handle("/withdrawals/requests/{id:[0-9]+}/status", admin(admins.SetWithdrawalStatusHandler)).Methods(http.MethodPatch)

	// Tree verification
	api.Handle("/trees/{id:[0-9]+}/status", admin(admins.SetTreeStatusHandler)).Methods(http.MethodPatch)
	api.Handle("/trees/{id:[0-9]+}", admin(admins.DeleteTreeHandler)).Methods(http.MethodDelete)

	// User management
	api.Handle("/users", admin(admins.ListUsersHandler)).Methods(http.MethodGet)
	api.Handle("/users/{id:[0-9]+}", admin(admins.UpdateUserHandler)).Methods(http.MethodPut)
	api.Handle("/users/{id:[0-9]+}", admin(admins.DeleteUserHandler)).Methods(http.MethodDelete)
}
