package handler

import (
	"net/http"

	"github.com/northbuild/north-be/service"
)

type WebSocketHandler struct {
	ws *service.WebSocketService
}

func NewWebSocketHandler(ws *service.WebSocketService) *WebSocketHandler {
	return &WebSocketHandler{
		ws: ws,
	}
}

func (h *WebSocketHandler) HandleQuery() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ws.HandleQuery(requestUserID(r))(w, r)
	})
}
