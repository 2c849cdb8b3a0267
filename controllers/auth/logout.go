package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/releafnow/backend/utils"
)

// LogoutHandler revokes the presented access token by blacklisting its jti
// until the token would have expired anyway. Without Redis configured the
// revocation is a no-op and the client simply discards the token.
// POST /api/auth/logout
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Missing bearer token"})
		return
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))

	_, claims, err := utils.ValidateAccessToken(tokenStr)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Invalid token"})
		return
	}

	if jti, ok := claims["jti"].(string); ok && jti != "" {
		ttl := time.Duration(0)
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			ttl = time.Until(exp.Time)
		}
		if ttl < 0 {
			ttl = 0
		}
		// revocation is best effort; the token stays short-lived either way
		_ = utils.RevokeJTI(jti, ttl)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Logged out"})
}
