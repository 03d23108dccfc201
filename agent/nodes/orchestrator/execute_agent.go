package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	toolx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/tool"
)

// Processor routes a classified message to an agent and runs it.
type Processor interface {
	Process(ctx context.Context, text string, actx *contractx.AgentContext, cls *contractx.ClassificationResult) (contractx.ProcessResult, error)
}

func ExecuteAgent(
	ctx context.Context,
	in *GraphState,
	processor Processor,
	bindings contractx.Bindings,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	in.AgentContext = BuildAgentContext(in, bindings)
	cls := in.Classification
	res, err := processor.Process(ctx, in.Text, in.AgentContext, &cls)
	if err != nil {
		return nil, err
	}
	in.Result = res
	return in, nil
}

// BuildAgentContext assembles the per-turn AgentContext. bindings are copied
// and the conversation id is bound for conversation-scoped tools.
func BuildAgentContext(in *GraphState, bindings contractx.Bindings) *contractx.AgentContext {
	b := make(contractx.Bindings, len(bindings)+1)
	for k, v := range bindings {
		b[k] = v
	}
	b[toolx.BindConversationID] = in.Conversation.ID
	actx := &contractx.AgentContext{
		UserID:         in.UserID,
		DelegatorID:    in.UserID,
		ConversationID: in.Conversation.ID,
		Window:         in.Window,
		Bindings:       b,
	}
	if forced := in.ForcedAgent(); forced != "" {
		actx.SetMeta(contractx.MetaForcedAgent, forced)
	}
	return actx
}
