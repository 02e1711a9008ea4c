package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/northbuild/north-be/service"
	"github.com/northbuild/north-be/types"
)

type SyncHandler struct {
	sync *service.SyncService
}

func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{
		sync: sync,
	}
}

// HandleSync triggers an incremental sync. An empty source syncs all of
// them. Partial failures still report what was applied.
func (h *SyncHandler) HandleSync() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req types.SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if req.Source == "" {
			results, err := h.sync.SyncAll(r.Context())
			if err != nil {
				sendSyncError(w, results, err)
				return
			}
			sendSuccess(w, results)
			return
		}

		result, err := h.sync.Sync(r.Context(), req.Source)
		if err != nil {
			sendSyncError(w, []*types.SyncResult{result}, err)
			return
		}
		sendSuccess(w, result)
	})
}

// HandleReindex drops a source's index and cursor and rebuilds from
// scratch. The recovery path for cursor resets.
func (h *SyncHandler) HandleReindex() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req types.SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Source == "" {
			sendError(w, "Source is required for reindex", http.StatusBadRequest)
			return
		}

		result, err := h.sync.Rebuild(r.Context(), req.Source)
		if err != nil {
			sendSyncError(w, []*types.SyncResult{result}, err)
			return
		}
		sendSuccess(w, result)
	})
}

func (h *SyncHandler) HandleStatus() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sendSuccess(w, h.sync.Status())
	})
}

func sendSyncError(w http.ResponseWriter, results []*types.SyncResult, err error) {
	status := http.StatusInternalServerError
	var partial *types.SyncPartialError
	switch {
	case errors.As(err, &partial):
		status = http.StatusBadGateway
	case errors.Is(err, types.ErrCursorReset):
		status = http.StatusConflict
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.DataResponse{
		Status:  "error",
		Message: err.Error(),
		Data:    results,
	})
}
