package handler

import (
	"encoding/json"
	"net/http"

	"github.com/northbuild/north-be/service"
	"github.com/northbuild/north-be/types"
	"github.com/northbuild/north-be/utils"
)

type LoginHandler struct {
	userService service.UserService
}

func NewLoginHandler(userService service.UserService) *LoginHandler {
	return &LoginHandler{
		userService: userService,
	}
}

func (h *LoginHandler) HandleLogin() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req types.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		user, err := h.userService.GetUserByUsername(r.Context(), req.Username)
		if err != nil {
			sendError(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		if user.Password != req.Password {
			sendError(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		token, err := utils.GenerateUserToken(user)
		if err != nil {
			sendError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sendSuccess(w, types.LoginResponse{Token: token})
	})
}
