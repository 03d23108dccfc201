package orchestratornode

import (
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Conversation == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	return GraphOutput{
		ConversationID: in.Conversation.ID,
		Title:          in.Conversation.Title,
		Created:        in.Created,
		Result:         in.Result,
		Classification: in.Classification,
	}, nil
}
