package counsel

// Role values understood by the prompt builder and generation collaborator.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
