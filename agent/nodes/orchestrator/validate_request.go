package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
	"github.com/cloudwego/eino/schema"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidUser    = errors.New("user id is empty")
)

// Agent types that mean "let routing decide".
var unforcedAgentTypes = map[string]bool{
	"":                     true,
	"general":              true,
	contractx.AgentAdvisor: true,
}

type GraphInput struct {
	UserID         string
	ConversationID string
	Text           string
	// AgentType pins a new conversation to an agent role, or forces one for
	// this turn on an existing conversation.
	AgentType string
}

type GraphOutput struct {
	ConversationID string
	Title          string
	Created        bool
	Result         contractx.ProcessResult
	Classification contractx.ClassificationResult
}

// GraphState carries one turn through the pipeline. It is owned by a single
// request.
type GraphState struct {
	UserID    string
	Text      string
	AgentType string
	Now       time.Time

	Conversation *statex.Conversation
	Created      bool
	Window       []*schema.Message

	Classification contractx.ClassificationResult
	AgentContext   *contractx.AgentContext
	Result         contractx.ProcessResult

	UserMessage      *statex.Message
	AssistantMessage *statex.Message
	conversationID   string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrInvalidUser
	}
	return &GraphState{
		UserID:         userID,
		Text:           text,
		AgentType:      strings.TrimSpace(in.AgentType),
		Now:            nowFn().UTC(),
		conversationID: strings.TrimSpace(in.ConversationID),
	}, nil
}

// ForcedAgent returns the agent the turn must use regardless of
// classification, or "".
func (s *GraphState) ForcedAgent() string {
	if !unforcedAgentTypes[s.AgentType] {
		return s.AgentType
	}
	if s.Conversation != nil && !unforcedAgentTypes[s.Conversation.AgentType] {
		return s.Conversation.AgentType
	}
	return ""
}
