package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"strings"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	"github.com/rs/zerolog/log"
)

type Option func(*Orchestrator)

// WithDefaultAgent replaces advisor_assistant as the fallback agent.
func WithDefaultAgent(name string) Option {
	return func(o *Orchestrator) {
		if name = strings.TrimSpace(name); name != "" {
			o.defaultAgent = name
		}
	}
}

// Orchestrator routes a classified message to one agent and runs it. It
// keeps no per-turn state.
type Orchestrator struct {
	agents       contractx.AgentLookup
	defaultAgent string
}

func New(agents contractx.AgentLookup, opts ...Option) (*Orchestrator, error) {
	if agents == nil {
		return nil, fmt.Errorf("%w: agent lookup is required", contractx.ErrConfiguration)
	}
	o := &Orchestrator{agents: agents, defaultAgent: contractx.AgentAdvisor}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// SelectAgent maps an intent to an agent name; unknown intents go to the
// default agent.
func (o *Orchestrator) SelectAgent(intent string) string {
	if name, ok := intentAgents[intent]; ok {
		return name
	}
	return o.defaultAgent
}

// route resolves the agent for a turn and enriches actx with the
// classification. A forced agent in actx wins over classification.
func (o *Orchestrator) route(actx *contractx.AgentContext, cls *contractx.ClassificationResult) (contractx.Agent, string, error) {
	var name, intent string
	if forced := actx.MetaString(contractx.MetaForcedAgent); forced != "" {
		name, intent = forced, forced
	} else {
		intent = routedIntent(cls)
		name = o.SelectAgent(intent)
	}

	agent, ok := o.agents.Agent(name)
	if !ok {
		log.Warn().Str("agent", name).Str("default", o.defaultAgent).Msg("agent not registered, falling back to default")
		agent, ok = o.agents.Agent(o.defaultAgent)
		if !ok {
			return nil, "", fmt.Errorf("%w: default agent %s is not registered", contractx.ErrConfiguration, o.defaultAgent)
		}
	}

	if cls != nil {
		actx.SetMeta(contractx.MetaNLPResult, *cls)
		actx.SetMeta(contractx.MetaIntent, intent)
		actx.SetMeta(contractx.MetaEntities, cls.Entities)
	}
	log.Info().Str("agent", agent.Info().Name).Str("intent", intent).Str("conversation_id", actx.ConversationID).Msg("routing turn")
	return agent, intent, nil
}

// Process runs the routed agent to completion. cls may be nil.
func (o *Orchestrator) Process(ctx context.Context, text string, actx *contractx.AgentContext, cls *contractx.ClassificationResult) (contractx.ProcessResult, error) {
	if actx == nil {
		return contractx.ProcessResult{}, fmt.Errorf("%w: agent context is required", contractx.ErrValidation)
	}
	agent, intent, err := o.route(actx, cls)
	if err != nil {
		return contractx.ProcessResult{}, err
	}
	res, err := agent.Run(ctx, text, actx)
	if err != nil {
		return contractx.ProcessResult{}, err
	}
	return contractx.ProcessResult{AgentResult: res, Intent: intent}, nil
}

// ProcessStream yields a thinking status and then the agent's own events.
func (o *Orchestrator) ProcessStream(ctx context.Context, text string, actx *contractx.AgentContext, cls *contractx.ClassificationResult) iter.Seq2[contractx.Event, error] {
	return func(yield func(contractx.Event, error) bool) {
		if actx == nil {
			yield(contractx.Event{}, fmt.Errorf("%w: agent context is required", contractx.ErrValidation))
			return
		}
		agent, intent, err := o.route(actx, cls)
		if err != nil {
			yield(contractx.Event{}, err)
			return
		}
		name := agent.Info().Name
		if !yield(contractx.Event{
			Type:    contractx.EventAgentStatus,
			Agent:   name,
			Status:  contractx.StatusThinking,
			Message: name + " is analyzing your request...",
			Intent:  intent,
		}, nil) {
			return
		}
		for ev, err := range agent.RunStream(ctx, text, actx) {
			if ev.Type == contractx.EventStreamEnd {
				ev.Intent = intent
			}
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

// Agents describes every registered agent in registration order.
func (o *Orchestrator) Agents() []contractx.AgentInfo {
	agents := o.agents.Agents()
	out := make([]contractx.AgentInfo, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Info())
	}
	return out
}
