package contract

import (
	"github.com/cloudwego/eino/schema"
)

// Metadata keys carried on AgentContext.Metadata.
const (
	MetaForcedAgent = "forced_agent"
	MetaNLPResult   = "nlp_result"
	MetaIntent      = "intent"
	MetaEntities    = "entities"
)

const (
	IntentGeneralChat = "general_chat"
	AgentAdvisor      = "advisor_assistant"
)

// Bindings are request-scoped values injected into tool calls, such as a
// data-access handle. They win over model-supplied arguments on collision.
type Bindings map[string]any

// AgentContext is owned by a single turn and never shared across turns.
type AgentContext struct {
	UserID         string
	DelegatorID    string
	ConversationID string
	// Window is the short-term history, oldest first.
	Window   []*schema.Message
	Metadata map[string]any
	Bindings Bindings
}

func (c *AgentContext) SetMeta(key string, val any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any, 4)
	}
	c.Metadata[key] = val
}

func (c *AgentContext) MetaString(key string) string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata[key].(string)
	return s
}

type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type Entity struct {
	Type         string `json:"type"`
	Value        string `json:"value"`
	OriginalText string `json:"original_text"`
}

type Sentiment struct {
	Score          float64  `json:"score"`
	Classification string   `json:"classification"`
	Emotions       []string `json:"emotions"`
	Urgency        string   `json:"urgency"`
}

type ParsedQuery struct {
	Table      string         `json:"table"`
	Filters    map[string]any `json:"filters"`
	SortBy     string         `json:"sort_by,omitempty"`
	SortOrder  string         `json:"sort_order"`
	Limit      int            `json:"limit"`
	SearchText string         `json:"search_text,omitempty"`
}

func (q *ParsedQuery) Valid() bool {
	return q != nil && q.Table != ""
}

// ClassificationResult is computed per turn and only persisted as message metadata.
type ClassificationResult struct {
	Intent    Intent       `json:"intent"`
	Entities  []Entity     `json:"entities"`
	Sentiment Sentiment    `json:"sentiment"`
	Query     *ParsedQuery `json:"query,omitempty"`
}

type AgentResult struct {
	Content          string   `json:"content"`
	AgentName        string   `json:"agent_name"`
	Model            string   `json:"model"`
	ToolsInvoked     []string `json:"tools_invoked"`
	RoundsUsed       int      `json:"rounds_used"`
	ForcedCompletion bool     `json:"forced_completion"`
}

// ProcessResult is an AgentResult plus the intent the turn was routed on.
type ProcessResult struct {
	AgentResult
	Intent string `json:"intent"`
}

type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type CompletionRequest struct {
	Messages    []*schema.Message
	Model       string
	Tools       []*schema.ToolInfo
	Temperature *float32
	MaxTokens   *int
}
