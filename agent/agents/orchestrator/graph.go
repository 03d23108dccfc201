package orchestrator

import (
	"context"
	"fmt"

	nodex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/nodes/orchestrator"
	"github.com/cloudwego/eino/compose"
)

func (s *Service) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	nodes := []struct {
		name string
		fn   func(context.Context, *nodex.GraphState) (*nodex.GraphState, error)
	}{
		{"load_or_create_conversation", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateConversation(ctx, in, s.memory)
		}},
		{"read_context", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ReadContext(ctx, in, s.memory)
		}},
		{"save_user_message", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveUserMessage(ctx, in, s.memory)
		}},
		{"classify", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Classify(ctx, in, s.classifier)
		}},
		{"execute_agent", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteAgent(ctx, in, s.orchestrator, s.bindings)
		}},
		{"save_assistant_message", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveAssistantMessage(ctx, in, s.memory, s.now)
		}},
		{"schedule_summary", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ScheduleSummary(ctx, in, s.memory, s.scheduler)
		}},
	}

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, s.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}
	for _, n := range nodes {
		if err := graph.AddLambdaNode(n.name, compose.InvokableLambda(n.fn)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.name, err)
		}
	}
	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	order := []string{compose.START, "validate_request"}
	for _, n := range nodes {
		order = append(order, n.name)
	}
	order = append(order, "finalize_reply", compose.END)
	for i := 0; i+1 < len(order); i++ {
		if err := graph.AddEdge(order[i], order[i+1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", order[i], order[i+1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
