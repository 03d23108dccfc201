package contract

type EventType string

const (
	EventAgentStatus         EventType = "agent_status"
	EventStreamToken         EventType = "stream_token"
	EventStreamEnd           EventType = "stream_end"
	EventStreamStart         EventType = "stream_start"
	EventConversationCreated EventType = "conversation_created"
	EventError               EventType = "error"
)

const (
	StatusThinking  = "thinking"
	StatusToolCall  = "tool_call"
	StatusToolError = "tool_error"
)

// ToolFailure is attached to a tool_error status event so clients can react
// to failed tool calls without parsing the human-readable message.
type ToolFailure struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Unknown bool   `json:"unknown,omitempty"`
}

type Event struct {
	Type    EventType `json:"type"`
	Agent   string    `json:"agent,omitempty"`
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
	Token   string    `json:"token,omitempty"`

	// stream_end only
	Content          string   `json:"content,omitempty"`
	ToolsInvoked     []string `json:"tool_calls,omitempty"`
	RoundsUsed       int      `json:"rounds,omitempty"`
	ForcedCompletion bool     `json:"forced_completion,omitempty"`

	ToolError      *ToolFailure `json:"tool_error,omitempty"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Intent         string       `json:"intent,omitempty"`
}
