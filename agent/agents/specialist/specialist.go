package specialist

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	toolx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRounds   = 5
	DefaultTemperature = float32(0.3)
	CategoryAdvisory   = "advisory"
)

// Binding keys the runtime adds on top of the caller's bindings.
const (
	BindAgentContext = "agent_context"
	BindCaller       = "caller"
)

// Definition configures one agent role.
type Definition struct {
	Name         string
	Description  string
	Category     string
	Instructions string
	Tools        []string
	Model        string
	Temperature  float32
	MaxRounds    int
}

// Agent runs the bounded tool-calling loop for a single role. It holds no
// per-turn state and is safe for concurrent use.
type Agent struct {
	def     Definition
	tools   *toolx.Registry
	gateway contractx.CompletionGateway
}

var _ contractx.Agent = (*Agent)(nil)

func New(def Definition, tools *toolx.Registry, gateway contractx.CompletionGateway) (*Agent, error) {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return nil, fmt.Errorf("%w: agent name is required", contractx.ErrConfiguration)
	}
	if strings.TrimSpace(def.Instructions) == "" {
		return nil, fmt.Errorf("%w: agent %s has no instructions", contractx.ErrPromptMissing, def.Name)
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: agent %s has no completion gateway", contractx.ErrConfiguration, def.Name)
	}
	if def.MaxRounds <= 0 {
		def.MaxRounds = DefaultMaxRounds
	}
	if def.Category == "" {
		def.Category = CategoryAdvisory
	}
	if tools == nil {
		tools = toolx.NewBuilder().Build()
	}
	for _, name := range def.Tools {
		if !tools.Has(name) {
			log.Debug().Str("agent", def.Name).Str("tool", name).Msg("configured tool is not registered, skipping")
		}
	}
	return &Agent{def: def, tools: tools, gateway: gateway}, nil
}

func (a *Agent) Info() contractx.AgentInfo {
	return contractx.AgentInfo{Name: a.def.Name, Description: a.def.Description, Category: a.def.Category}
}

func (a *Agent) Definition() Definition { return a.def }

// Run executes up to MaxRounds tool-calling rounds. When every round asks for
// tools, one more call is made without tools so the caller always gets text.
func (a *Agent) Run(ctx context.Context, text string, actx *contractx.AgentContext) (contractx.AgentResult, error) {
	t := a.newTurn(text, actx)

	for round := 1; round <= a.def.MaxRounds; round++ {
		resp, err := a.gateway.Complete(ctx, a.request(t.msgs, t.defs))
		if err != nil {
			return contractx.AgentResult{}, a.invokeErr(round, err)
		}
		if len(resp.ToolCalls) == 0 {
			return a.result(t, resp.Content, round, false), nil
		}
		t.applyTools(ctx, resp, nil)
	}

	resp, err := a.gateway.Complete(ctx, a.request(t.msgs, nil))
	if err != nil {
		return contractx.AgentResult{}, a.invokeErr(a.def.MaxRounds+1, err)
	}
	log.Info().Str("agent", a.def.Name).Int("rounds", a.def.MaxRounds).Msg("tool rounds exhausted, forced final answer")
	return a.result(t, resp.Content, a.def.MaxRounds, true), nil
}

func (a *Agent) request(msgs []*schema.Message, defs []*schema.ToolInfo) contractx.CompletionRequest {
	temp := a.def.Temperature
	return contractx.CompletionRequest{
		Messages:    msgs,
		Model:       a.def.Model,
		Tools:       defs,
		Temperature: &temp,
	}
}

func (a *Agent) result(t *turn, content string, rounds int, forced bool) contractx.AgentResult {
	return contractx.AgentResult{
		Content:          content,
		AgentName:        a.def.Name,
		Model:            a.def.Model,
		ToolsInvoked:     t.invoked,
		RoundsUsed:       rounds,
		ForcedCompletion: forced,
	}
}

func (a *Agent) invokeErr(call int, err error) error {
	return fmt.Errorf("%w: agent %s call %d: %w", contractx.ErrModelInvoke, a.def.Name, call, err)
}

// turn is the transcript and bookkeeping of one Run or RunStream.
type turn struct {
	agent    *Agent
	msgs     []*schema.Message
	defs     []*schema.ToolInfo
	bindings contractx.Bindings
	invoked  []string
}

func (a *Agent) newTurn(text string, actx *contractx.AgentContext) *turn {
	if actx == nil {
		actx = &contractx.AgentContext{}
	}
	msgs := make([]*schema.Message, 0, len(actx.Window)+2)
	msgs = append(msgs, schema.SystemMessage(a.def.Instructions))
	msgs = append(msgs, actx.Window...)
	msgs = append(msgs, schema.UserMessage(text))

	bindings := make(contractx.Bindings, len(actx.Bindings)+2)
	for k, v := range actx.Bindings {
		bindings[k] = v
	}
	bindings[BindAgentContext] = actx
	bindings[BindCaller] = a.def.Name

	return &turn{
		agent:    a,
		msgs:     msgs,
		defs:     a.tools.Definitions(a.def.Tools),
		bindings: bindings,
		invoked:  []string{},
	}
}

// applyTools appends the assistant's tool-call message and one tool message
// per call, in proposal order. Dispatch failures become error payloads. emit,
// when set, is called after each dispatch; returning false stops early.
func (t *turn) applyTools(ctx context.Context, resp *schema.Message, emit func(call schema.ToolCall, res toolx.Result) bool) bool {
	t.msgs = append(t.msgs, resp)
	for _, call := range resp.ToolCalls {
		name := call.Function.Name
		t.invoked = append(t.invoked, name)

		res := t.agent.tools.Dispatch(ctx, name, call.Function.Arguments, t.bindings)
		if !res.OK() {
			log.Warn().Err(res.Err).Str("agent", t.agent.def.Name).Str("tool", name).Msg("tool dispatch failed")
		}
		t.msgs = append(t.msgs, schema.ToolMessage(res.Payload(), call.ID))

		if emit != nil && !emit(call, res) {
			return false
		}
	}
	return true
}

func (a *Agent) ModelName() string { return a.def.Model }
