package llm

import (
	"context"
	"encoding/json"
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
)

// OpenAIGateway talks to any OpenAI-compatible endpoint through openai-go.
type OpenAIGateway struct {
	client           *openai.Client
	model            string
	defaultMaxTokens int
}

type OpenAIOption func(*OpenAIGateway)

func WithDefaultMaxTokens(n int) OpenAIOption {
	return func(g *OpenAIGateway) {
		if n > 0 {
			g.defaultMaxTokens = n
		}
	}
}

var _ contractx.CompletionGateway = (*OpenAIGateway)(nil)

func NewOpenAIGateway(client *openai.Client, model string, opts ...OpenAIOption) *OpenAIGateway {
	g := &OpenAIGateway{client: client, model: model}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *OpenAIGateway) Complete(ctx context.Context, req contractx.CompletionRequest) (*schema.Message, error) {
	params, err := g.params(req)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: chat completion returned no choices", contractx.ErrModelInvoke)
	}
	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

// CompleteStream forwards content deltas as they arrive. Tool calls are only
// complete once the stream ends, so they are delivered in a trailing chunk.
func (g *OpenAIGateway) CompleteStream(ctx context.Context, req contractx.CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	params, err := g.params(req)
	if err != nil {
		return nil, err
	}

	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer sw.Close()
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if closed := sw.Send(schema.AssistantMessage(chunk.Choices[0].Delta.Content, nil), nil); closed {
				return
			}
		}
		if err := stream.Err(); err != nil {
			sw.Send(nil, fmt.Errorf("%w: chat completion stream: %v", contractx.ErrModelInvoke, err))
			return
		}
		if len(acc.Choices) > 0 && len(acc.Choices[0].Message.ToolCalls) > 0 {
			final := fromOpenAIMessage(acc.Choices[0].Message)
			final.Content = ""
			sw.Send(final, nil)
		}
	}()
	return sr, nil
}

func (g *OpenAIGateway) params(req contractx.CompletionRequest) (openai.ChatCompletionNewParams, error) {
	if g == nil || g.client == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("%w: openai client is not configured", contractx.ErrConfiguration)
	}
	if len(req.Messages) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("%w: completion requires at least one message", contractx.ErrValidation)
	}

	modelName := req.Model
	if modelName == "" {
		modelName = g.model
	}
	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(req.Messages),
		Model:    openai.ChatModel(modelName),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(float64(*req.Temperature))
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	} else if g.defaultMaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.defaultMaxTokens))
	}
	if len(req.Tools) > 0 {
		tools, err := toOpenAITools(req.Tools)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func toOpenAIMessages(msgs []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(m.Content))
		case schema.Tool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case schema.Assistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toOpenAITools(infos []*schema.ToolInfo) ([]openai.ChatCompletionToolParam, error) {
	tools := make([]openai.ChatCompletionToolParam, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		params := openai.FunctionParameters{"type": "object", "properties": map[string]any{}}
		if info.ParamsOneOf != nil {
			spec, err := info.ParamsOneOf.ToOpenAPIV3()
			if err != nil {
				return nil, fmt.Errorf("%w: tool %s schema: %v", contractx.ErrValidation, info.Name, err)
			}
			raw, err := json.Marshal(spec)
			if err != nil {
				return nil, fmt.Errorf("%w: tool %s schema: %v", contractx.ErrValidation, info.Name, err)
			}
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("%w: tool %s schema: %v", contractx.ErrValidation, info.Name, err)
			}
		}
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        info.Name,
				Description: openai.String(info.Desc),
				Parameters:  params,
			},
		})
	}
	return tools, nil
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) *schema.Message {
	msg := schema.AssistantMessage(m.Content, nil)
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return msg
}
