package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/northbuild/north-be/middleware"
	"github.com/northbuild/north-be/service"
	"github.com/northbuild/north-be/types"
)

type QueryHandler struct {
	orchestrator *service.OrchestratorService
}

func NewQueryHandler(orchestrator *service.OrchestratorService) *QueryHandler {
	return &QueryHandler{
		orchestrator: orchestrator,
	}
}

func (h *QueryHandler) HandleQuery() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req types.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		result, err := h.orchestrator.Query(r.Context(), requestUserID(r), req.Query)
		if err != nil {
			switch {
			case errors.Is(err, types.ErrInvalidQuery):
				sendError(w, "Query must not be empty", http.StatusBadRequest)
			case errors.Is(err, types.ErrAgentUnavailable):
				sendError(w, "All knowledge sources are unreachable right now, try again shortly", http.StatusServiceUnavailable)
			case errors.Is(err, context.DeadlineExceeded):
				sendError(w, "Query timed out", http.StatusGatewayTimeout)
			default:
				sendError(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		sendSuccess(w, result)
	})
}

func (h *QueryHandler) HandleClearContext() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodDelete {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.orchestrator.ClearContext(r.Context(), requestUserID(r))
		sendSuccess(w, nil)
	})
}

func requestUserID(r *http.Request) string {
	if claims := middleware.UserFromContext(r.Context()); claims != nil {
		return claims.ID
	}
	return "anonymous"
}
