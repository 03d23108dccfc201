package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	memoryx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/memory"
	"github.com/rs/zerolog/log"
)

func LoadOrCreateConversation(
	ctx context.Context,
	in *GraphState,
	memory *memoryx.Manager,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.conversationID != "" {
		conv, err := memory.Conversation(ctx, in.conversationID)
		if err != nil {
			return nil, err
		}
		in.Conversation = conv
		return in, nil
	}

	conv, err := memory.CreateConversation(ctx, in.UserID, in.Text, in.AgentType)
	if err != nil {
		return nil, err
	}
	log.Info().Str("conversation_id", conv.ID).Str("user_id", in.UserID).Msg("conversation created")
	in.Conversation = conv
	in.Created = true
	return in, nil
}
