package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/northbuild/north-be/types"
	"github.com/northbuild/north-be/utils"
)

type JsonResponse struct {
	Error string `json:"error"`
}

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the claims AuthMiddleware stored for the
// request, or nil outside an authenticated route.
func UserFromContext(ctx context.Context) *utils.UserClaims {
	claims, _ := ctx.Value(userContextKey).(*utils.UserClaims)
	return claims
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := authenticate(w, r)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := authenticate(w, r)
		if !ok {
			return
		}
		if claims.Role != types.USER_ROLE_ADMIN {
			writeAuthError(w, http.StatusForbidden, "Admin role required")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authenticate(w http.ResponseWriter, r *http.Request) (*utils.UserClaims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeAuthError(w, http.StatusUnauthorized, "Authorization header is required")
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		writeAuthError(w, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
		return nil, false
	}

	claims, err := utils.ParseUserToken(parts[1])
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, "Invalid token")
		return nil, false
	}
	return claims, true
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(JsonResponse{Error: msg})
}
