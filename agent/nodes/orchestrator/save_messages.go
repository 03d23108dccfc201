package orchestratornode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	memoryx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/memory"
	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
)

// Metadata keys stored on assistant messages.
const (
	MetaAgent            = "agent"
	MetaToolsUsed        = "tools_used"
	MetaRounds           = "rounds"
	MetaForcedCompletion = "forced_completion"
)

func SaveUserMessage(
	ctx context.Context,
	in *GraphState,
	memory *memoryx.Manager,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	msg, err := memory.SaveMessage(ctx, in.Conversation.ID, statex.RoleUser, in.Text, nil)
	if err != nil {
		return nil, err
	}
	in.UserMessage = msg
	return in, nil
}

func SaveAssistantMessage(
	ctx context.Context,
	in *GraphState,
	memory *memoryx.Manager,
	nowFn func() time.Time,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	res := in.Result
	meta := map[string]any{
		MetaAgent:              res.AgentName,
		contractx.MetaIntent:   res.Intent,
		contractx.MetaEntities: in.Classification.Entities,
		MetaToolsUsed:          res.ToolsInvoked,
		MetaRounds:             res.RoundsUsed,
		MetaForcedCompletion:   res.ForcedCompletion,
	}

	msg, err := memory.SaveMessage(ctx, in.Conversation.ID, statex.RoleAssistant, res.Content, meta,
		memoryx.WithAgent(res.AgentName),
		memoryx.WithModelUsed(res.Model),
		memoryx.WithResponseTime(nowFn().Sub(in.Now)),
	)
	if err != nil {
		return nil, err
	}
	in.AssistantMessage = msg
	return in, nil
}
