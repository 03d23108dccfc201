package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	memoryx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/memory"
)

// ReadContext loads the short-term window. It runs before the user message
// is saved so the current text is not replayed twice.
func ReadContext(
	ctx context.Context,
	in *GraphState,
	memory *memoryx.Manager,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if in.Created {
		return in, nil
	}

	window, err := memory.GetContext(ctx, in.Conversation.ID, 0)
	if err != nil {
		return nil, err
	}
	in.Window = window
	return in, nil
}
