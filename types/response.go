package types

type DataResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type SearchResponse struct {
	Documents []Document    `json:"documents"`
	Plan      RetrievalPlan `json:"plan"`
}
