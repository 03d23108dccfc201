package tool

import (
	"context"
	"errors"

	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
)

const ToolConversationRecent = "conversation.recent"

// Binding keys the turn service injects into every dispatch.
const (
	BindStore          = "store"
	BindConversationID = "conversation_id"
)

type RecentArgs struct {
	Limit          int          `json:"limit,omitempty" desc:"How many recent messages to return" default:"10"`
	Store          statex.Store `inject:"store"`
	ConversationID string       `inject:"conversation_id"`
}

type RecentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Agent   string `json:"agent,omitempty"`
}

func RecentConversation(ctx context.Context, in RecentArgs) (any, error) {
	if in.Store == nil || in.ConversationID == "" {
		return nil, errors.New("no conversation is bound to this request")
	}
	limit := in.Limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	msgs, err := in.Store.RecentMessages(ctx, in.ConversationID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RecentMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, RecentMessage{Role: string(m.Role), Content: m.Content, Agent: m.AgentName})
	}
	return out, nil
}

// RegisterBuiltins adds the tools shipped with the runtime itself.
func RegisterBuiltins(b *Builder) error {
	if err := RegisterTyped(b, ToolMathEvaluate, "Evaluate an arithmetic expression such as a SIP projection or allocation split.", nil, EvaluateMath); err != nil {
		return err
	}
	return RegisterTyped(b, ToolConversationRecent, "Read the most recent messages of the current conversation.", nil, RecentConversation)
}
