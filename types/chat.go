package types

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one completed query/response exchange in a user's session.
type Turn struct {
	Query       string `json:"query"`
	Response    string `json:"response"`
	CompletedAt int64  `json:"completed_at"`
}

// Agent names. The set is closed: adding an agent means adding a name
// here, an implementation of the agent interface, and a routing rule.
const (
	AgentKnowledgeBase = "knowledge_base"
	AgentDocuments     = "documents"
	AgentWebSearch     = "web_search"
)

// RoutingDecision records which agents an orchestrator invocation
// dispatched to. Kept on the response for evaluation and audit.
type RoutingDecision struct {
	Agents         []string `json:"agents"`
	Conversational bool     `json:"conversational"`
	Reason         string   `json:"reason,omitempty"`
}

// AgentResult carries a grounded answer plus the documents it cited, or
// an explicit unavailable signal when the agent's backing service is
// unreachable.
type AgentResult struct {
	Agent       string     `json:"agent"`
	Answer      string     `json:"answer,omitempty"`
	Citations   []Document `json:"citations,omitempty"`
	Unavailable bool       `json:"unavailable,omitempty"`
	Detail      string     `json:"detail,omitempty"`
}

// QueryResult is the orchestrator's final output for one query.
type QueryResult struct {
	Answer    string          `json:"answer"`
	Citations []Document      `json:"citations,omitempty"`
	Routing   RoutingDecision `json:"routing"`
	// Degraded is set when at least one dispatched agent failed and the
	// answer was produced from the surviving agents only.
	Degraded bool `json:"degraded,omitempty"`
}

// StreamHandler handles incremental response chunks.
type StreamHandler func(response string)
