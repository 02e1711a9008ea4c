package types

const (
	TypeWebsocketQuery       = "query"
	TypeWebsocketAnswerChunk = "answer_chunk"
	TypeWebsocketPing        = "ping"
	TypeWebsocketPong        = "pong"
	TypeWebsocketError       = "error"
)

type WebsocketRequest struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketResponse struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketQueryPayload struct {
	Query string `json:"query"`
}
