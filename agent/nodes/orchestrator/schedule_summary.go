package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	memoryx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/memory"
	"github.com/rs/zerolog/log"
)

// ScheduleSummary runs after the reply is persisted. Failures are logged and
// never fail the turn.
func ScheduleSummary(
	ctx context.Context,
	in *GraphState,
	memory *memoryx.Manager,
	scheduler memoryx.Scheduler,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if scheduler == nil {
		return in, nil
	}
	convID := in.Conversation.ID

	due, err := memory.ShouldSummarize(ctx, convID, 0)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", convID).Msg("summarize check failed")
		return in, nil
	}
	if !due {
		return in, nil
	}

	count := 0
	if in.AssistantMessage != nil {
		count = int(in.AssistantMessage.Seq)
	}
	if err := scheduler.Schedule(ctx, convID, count); err != nil {
		log.Error().Err(err).Str("conversation_id", convID).Msg("summarization failed")
	}
	return in, nil
}
