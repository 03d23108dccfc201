package contract

import (
	"context"
	"iter"

	"github.com/cloudwego/eino/schema"
)

// CompletionGateway is the black-box text completion service. A response
// proposing tool calls carries them in Message.ToolCalls; otherwise it is final.
type CompletionGateway interface {
	Complete(ctx context.Context, req CompletionRequest) (*schema.Message, error)
	CompleteStream(ctx context.Context, req CompletionRequest) (*schema.StreamReader[*schema.Message], error)
}

type Agent interface {
	Info() AgentInfo
	Run(ctx context.Context, text string, actx *AgentContext) (AgentResult, error)
	RunStream(ctx context.Context, text string, actx *AgentContext) iter.Seq2[Event, error]
}

type AgentLookup interface {
	Agent(name string) (Agent, bool)
	Agents() []Agent
}

type Classifier interface {
	Classify(ctx context.Context, text string) ClassificationResult
}
