package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/northbuild/north-be/service"
	"github.com/northbuild/north-be/types"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{
		search: search,
	}
}

// HandleSearch exposes retrieval directly, without the orchestrator.
// An empty source searches every source.
func (h *SearchHandler) HandleSearch() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req types.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		docs, plan, err := h.search.Search(r.Context(), req.Query, req.Source, req.Limit)
		if err != nil {
			if errors.Is(err, types.ErrInvalidQuery) {
				sendError(w, "Query must not be empty", http.StatusBadRequest)
				return
			}
			sendError(w, "Search failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		sendSuccess(w, types.SearchResponse{
			Documents: docs,
			Plan:      *plan,
		})
	})
}
