package types

const (
	USER_ROLE_ADMIN = "admin"
	USER_ROLE_USER  = "user"
)

type User struct {
	ID        string `json:"id" bson:"_id,omitempty"`
	Username  string `json:"username" bson:"username"`
	Password  string `json:"password" bson:"password"`
	FullName  string `json:"full_name" bson:"full_name"`
	Role      string `json:"role" bson:"role"`
	CreatedAt int64  `json:"created_at" bson:"created_at"`
	UpdatedAt int64  `json:"updated_at" bson:"updated_at"`
}

// ConversationRecord is the durable form of a context turn, persisted
// outside the in-memory context store.
type ConversationRecord struct {
	ID          string `json:"id" bson:"_id,omitempty"`
	UserID      string `json:"user_id" bson:"user_id"`
	Query       string `json:"query" bson:"query"`
	Response    string `json:"response" bson:"response"`
	CompletedAt int64  `json:"completed_at" bson:"completed_at"`
}
