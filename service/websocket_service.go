package service

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/northbuild/north-be/types"
)

type WebSocketService struct {
	orchestrator *OrchestratorService
	upgrader     websocket.Upgrader
}

func NewWebSocketService(orchestrator *OrchestratorService) *WebSocketService {
	return &WebSocketService{
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (adjust for production)
			},
		},
	}
}

// HandleQuery serves one websocket session. Each query message gets
// answer chunks as they are produced and then one result message;
// closing the socket cancels any in-flight query.
func (s *WebSocketService) HandleQuery(userID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("Upgrade error:", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(512 * 1024) // 512KB max message size
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket read error: %v", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var req types.WebsocketRequest
			if err := json.Unmarshal(p, &req); err != nil {
				log.Println("Unmarshal error:", err)
				s.writeError(conn, "invalid message")
				continue
			}
			switch req.Type {
			case types.TypeWebsocketQuery:
				payloadBytes, err := json.Marshal(req.Payload)
				if err != nil {
					s.writeError(conn, "invalid payload")
					continue
				}
				var payload types.WebSocketQueryPayload
				if err := json.Unmarshal(payloadBytes, &payload); err != nil {
					s.writeError(conn, "invalid payload")
					continue
				}
				// Answer text streams as chunk messages; the final
				// query message carries the whole result.
				result, err := s.orchestrator.QueryStream(ctx, userID, payload.Query, func(chunk string) {
					chunkRes := types.WebSocketResponse{
						Type:    types.TypeWebsocketAnswerChunk,
						Payload: chunk,
					}
					if err := conn.WriteJSON(chunkRes); err != nil {
						log.Println("Write error:", err)
					}
				})
				if err != nil {
					log.Println("query error:", err)
					s.writeError(conn, "could not answer that right now")
					continue
				}
				res := types.WebSocketResponse{
					Type:    types.TypeWebsocketQuery,
					Payload: result,
				}
				if err := conn.WriteJSON(res); err != nil {
					log.Println("Write error:", err)
					return
				}
			case types.TypeWebsocketPing:
				pongRes := types.WebSocketResponse{
					Type: types.TypeWebsocketPong,
				}
				if err := conn.WriteJSON(pongRes); err != nil {
					log.Println("Write error:", err)
					return
				}
			default:
				log.Println("Invalid message type")
			}
		}
	}
}

func (s *WebSocketService) writeError(conn *websocket.Conn, msg string) {
	res := types.WebSocketResponse{
		Type:    types.TypeWebsocketError,
		Payload: msg,
	}
	if err := conn.WriteJSON(res); err != nil {
		log.Println("Write error:", err)
	}
}
