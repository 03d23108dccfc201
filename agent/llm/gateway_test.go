package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type fakeChatModel struct {
	tools   []*schema.ToolInfo
	lastOpt *einomodel.Options
	reply   *schema.Message
	err     error
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.lastOpt = einomodel.GetCommonOptions(nil, opts...)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	f.lastOpt = einomodel.GetCommonOptions(nil, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage("hel", nil),
		schema.AssistantMessage("lo", nil),
	}), nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return &fakeChatModel{tools: tools, reply: f.reply, err: f.err}, nil
}

func TestEinoGatewayPassesCallOptions(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: schema.AssistantMessage("ok", nil)}
	gw := NewEinoGateway(fake)

	temp := float32(0.1)
	maxTokens := 200
	msg, err := gw.Complete(context.Background(), contractx.CompletionRequest{
		Messages:    []*schema.Message{schema.UserMessage("hi")},
		Model:       "openai/gpt-4o-mini",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if msg.Content != "ok" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
	if fake.lastOpt.Model == nil || *fake.lastOpt.Model != "openai/gpt-4o-mini" {
		t.Fatalf("model option not forwarded: %#v", fake.lastOpt)
	}
	if fake.lastOpt.Temperature == nil || *fake.lastOpt.Temperature != temp {
		t.Fatal("temperature option not forwarded")
	}
	if fake.lastOpt.MaxTokens == nil || *fake.lastOpt.MaxTokens != 200 {
		t.Fatal("max tokens option not forwarded")
	}
}

func TestEinoGatewayStreams(t *testing.T) {
	t.Parallel()

	gw := NewEinoGateway(&fakeChatModel{})
	sr, err := gw.CompleteStream(context.Background(), contractx.CompletionRequest{
		Messages: []*schema.Message{schema.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("CompleteStream() error = %v", err)
	}
	defer sr.Close()

	var got string
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		got += chunk.Content
	}
	if got != "hello" {
		t.Fatalf("streamed %q, want hello", got)
	}
}

func TestEinoGatewayWrapsModelErrors(t *testing.T) {
	t.Parallel()

	gw := NewEinoGateway(&fakeChatModel{err: errors.New("upstream 502")})
	_, err := gw.Complete(context.Background(), contractx.CompletionRequest{
		Messages: []*schema.Message{schema.UserMessage("hi")},
		Tools:    []*schema.ToolInfo{{Name: "math.evaluate"}},
	})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Complete() error = %v, want ErrModelInvoke", err)
	}

	if _, err := gw.Complete(context.Background(), contractx.CompletionRequest{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty request error = %v, want ErrValidation", err)
	}
}

func TestOpenAIGatewayTranslatesToolCalls(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "math.evaluate", "arguments": "{\"expression\":\"1+1\"}"}
					}]
				}
			}]
		}`)
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"))
	gw := NewOpenAIGateway(&client, "gpt-4o")

	tools := []*schema.ToolInfo{{
		Name: "math.evaluate",
		Desc: "Evaluate",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"expression": {Type: schema.String, Required: true},
		}),
	}}
	msg, err := gw.Complete(context.Background(), contractx.CompletionRequest{
		Messages: []*schema.Message{
			schema.SystemMessage("sys"),
			schema.UserMessage("what is 1+1"),
		},
		Tools: tools,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "math.evaluate" || msg.ToolCalls[0].ID != "call_1" {
		t.Fatalf("unexpected tool calls: %#v", msg.ToolCalls)
	}

	if body["model"] != "gpt-4o" {
		t.Fatalf("model = %v", body["model"])
	}
	sent, _ := body["tools"].([]any)
	if len(sent) != 1 {
		t.Fatalf("expected one tool in request, got %v", body["tools"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected two messages in request, got %d", len(msgs))
	}
}

type flakyGateway struct {
	calls atomic.Int32
	fail  int32
	err   error
}

func (f *flakyGateway) Complete(context.Context, contractx.CompletionRequest) (*schema.Message, error) {
	if f.calls.Add(1) <= f.fail {
		return nil, f.err
	}
	return schema.AssistantMessage("done", nil), nil
}

func (f *flakyGateway) CompleteStream(context.Context, contractx.CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	return nil, f.err
}

func TestWithRetryRecoversTransientFailures(t *testing.T) {
	t.Parallel()

	flaky := &flakyGateway{fail: 2, err: errors.New("timeout")}
	gw := WithRetry(flaky, 3, time.Millisecond)

	msg, err := gw.Complete(context.Background(), contractx.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if msg.Content != "done" || flaky.calls.Load() != 3 {
		t.Fatalf("content=%q calls=%d", msg.Content, flaky.calls.Load())
	}
}

func TestWithRetryStopsOnValidationErrors(t *testing.T) {
	t.Parallel()

	flaky := &flakyGateway{fail: 5, err: contractx.ErrValidation}
	gw := WithRetry(flaky, 3, time.Millisecond)

	if _, err := gw.Complete(context.Background(), contractx.CompletionRequest{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Complete() error = %v", err)
	}
	if flaky.calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", flaky.calls.Load())
	}
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream 503")
	flaky := &flakyGateway{fail: 10, err: boom}
	gw := WithRetry(flaky, 3, time.Millisecond)

	if _, err := gw.Complete(context.Background(), contractx.CompletionRequest{}); !errors.Is(err, boom) {
		t.Fatalf("Complete() error = %v, want %v", err, boom)
	}
	if flaky.calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.calls.Load())
	}
}

func TestWithRetryHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	flaky := &flakyGateway{fail: 10, err: errors.New("timeout")}
	gw := WithRetry(flaky, 5, time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := gw.Complete(ctx, contractx.CompletionRequest{})
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error for a cancelled context")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry kept waiting after cancellation")
	}
	if flaky.calls.Load() > 1 {
		t.Fatalf("expected at most one attempt, got %d", flaky.calls.Load())
	}
}

func TestConfigOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:            "k",
		Model:             "openai/gpt-4o",
		AgentModels:       map[string]string{"tax_optimizer": "anthropic/claude-sonnet"},
		AgentTemperatures: map[string]float32{"tax_optimizer": 0.1},
	}
	if got := cfg.AgentModel("tax_optimizer", "openai/gpt-4o"); got != "anthropic/claude-sonnet" {
		t.Fatalf("AgentModel() = %q", got)
	}
	if got := cfg.AgentModel("growth_engine", "openai/gpt-4o-mini"); got != "openai/gpt-4o-mini" {
		t.Fatalf("AgentModel() fallback = %q", got)
	}
	if got := cfg.AgentTemperature("tax_optimizer", 0.3); got != 0.1 {
		t.Fatalf("AgentTemperature() = %v", got)
	}
	if err := (Config{APIKey: "k", Model: "m", Backend: "grpc"}).Validate(); !errors.Is(err, contractx.ErrConfiguration) {
		t.Fatalf("Validate() error = %v", err)
	}
}
