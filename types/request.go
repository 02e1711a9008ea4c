package types

type QueryRequest struct {
	Query string `json:"query"`
}

type SearchRequest struct {
	Query  string `json:"query"`
	Source string `json:"source,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type SyncRequest struct {
	Source string `json:"source"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
