package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	"github.com/rs/zerolog/log"
)

// Classify never fails the turn; the classifier degrades to fallbacks.
func Classify(
	ctx context.Context,
	in *GraphState,
	classifier contractx.Classifier,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	in.Classification = classifier.Classify(ctx, in.Text)
	log.Debug().
		Str("intent", in.Classification.Intent.Name).
		Float64("confidence", in.Classification.Intent.Confidence).
		Int("entities", len(in.Classification.Entities)).
		Msg("message classified")
	return in, nil
}
