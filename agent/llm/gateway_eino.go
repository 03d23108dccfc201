package llm

import (
	"context"
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoGateway adapts an eino chat model to the completion gateway contract.
type EinoGateway struct {
	chatModel einomodel.ToolCallingChatModel
}

var _ contractx.CompletionGateway = (*EinoGateway)(nil)

func NewEinoGateway(chatModel einomodel.ToolCallingChatModel) *EinoGateway {
	return &EinoGateway{chatModel: chatModel}
}

func (g *EinoGateway) Complete(ctx context.Context, req contractx.CompletionRequest) (*schema.Message, error) {
	m, err := g.bind(req)
	if err != nil {
		return nil, err
	}
	msg, err := m.Generate(ctx, req.Messages, callOptions(req)...)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: empty completion", contractx.ErrModelInvoke)
	}
	return msg, nil
}

func (g *EinoGateway) CompleteStream(ctx context.Context, req contractx.CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	m, err := g.bind(req)
	if err != nil {
		return nil, err
	}
	sr, err := m.Stream(ctx, req.Messages, callOptions(req)...)
	if err != nil {
		return nil, fmt.Errorf("%w: stream: %v", contractx.ErrModelInvoke, err)
	}
	return sr, nil
}

func (g *EinoGateway) bind(req contractx.CompletionRequest) (einomodel.BaseChatModel, error) {
	if g == nil || g.chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is not configured", contractx.ErrConfiguration)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: completion requires at least one message", contractx.ErrValidation)
	}
	if len(req.Tools) == 0 {
		return g.chatModel, nil
	}
	m, err := g.chatModel.WithTools(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
	}
	return m, nil
}

func callOptions(req contractx.CompletionRequest) []einomodel.Option {
	var opts []einomodel.Option
	if req.Model != "" {
		opts = append(opts, einomodel.WithModel(req.Model))
	}
	if req.Temperature != nil {
		opts = append(opts, einomodel.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, einomodel.WithMaxTokens(*req.MaxTokens))
	}
	return opts
}
