package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/releafnow/backend/controllers/auth"
	"github.com/releafnow/backend/controllers/users"
	"github.com/releafnow/backend/middleware"
)

// UsersRoutes registers the public auth endpoints and the member-facing API.
func UsersRoutes(api *mux.Router) {
	// Login/register are the hot path for credential stuffing: 60 per IP per
	// 5 minutes.
	loginLimiter := middleware.NewIPRateLimiter(60, 5*time.Minute)
	// Session traffic: 120 reads / 60 writes per user per minute.
	userLimiter := middleware.NewUserRateLimiter(120, 60, 60)

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(h)))
	}

	// Register & Login
	api.Handle("/auth/register", loginLimiter.Middleware(http.HandlerFunc(auth.RegisterHandler))).Methods(http.MethodPost)
	api.Handle("/auth/login", loginLimiter.Middleware(http.HandlerFunc(auth.LoginHandler))).Methods(http.MethodPost)
	api.Handle("/auth/logout", loginLimiter.Middleware(http.HandlerFunc(auth.LogoutHandler))).Methods(http.MethodPost)

	// Token ledger (read side)
	api.Handle("/tokens/balance", authed(users.GetBalanceHandler)).Methods(http.MethodGet)
	api.Handle("/tokens/transactions", authed(users.GetTransactionsHandler)).Methods(http.MethodGet)

	// Withdrawals
	api.Handle("/withdrawals/address", authed(users.GetWithdrawalAddressHandler)).Methods(http.MethodGet)
	api.Handle("/withdrawals/address", authed(users.SetWithdrawalAddressHandler)).Methods(http.MethodPut)
	api.Handle("/withdrawals/requests", authed(users.GetWithdrawalRequestsHandler)).Methods(http.MethodGet)
	api.Handle("/withdrawals/requests", authed(users.CreateWithdrawalRequestHandler)).Methods(http.MethodPost)

	// Tree submissions
	api.Handle("/trees", authed(users.ListTreesHandler)).Methods(http.MethodGet)
	api.Handle("/trees", authed(users.CreateTreeHandler)).Methods(http.MethodPost)
	api.Handle("/trees/{id:[0-9]+}", authed(users.GetTreeHandler)).Methods(http.MethodGet)
	api.Handle("/trees/{id:[0-9]+}", authed(users.UpdateTreeHandler)).Methods(http.MethodPut)

	// Profile. The literal /users/profile/me route must register before the
	// /users/{id} wildcard.
	api.Handle("/users/profile/me", authed(users.ProfileHandler)).Methods(http.MethodGet)
	api.Handle("/users/profile/me", authed(users.UpdateProfileHandler)).Methods(http.MethodPut)
	api.Handle("/users/profile/password", authed(users.UpdatePasswordHandler)).Methods(http.MethodPut)
	api.Handle("/users/{id:[0-9]+}", authed(users.GetUserHandler)).Methods(http.MethodGet)
}
