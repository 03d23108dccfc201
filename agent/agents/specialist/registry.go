package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	toolx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/tool"
	"github.com/rs/zerolog/log"
)

const ToolDelegate = "agent.delegate"

// Registry maps agent names to agents. It is filled at startup and read
// concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]contractx.Agent
	order  []string
}

var _ contractx.AgentLookup = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]contractx.Agent, 16)}
}

func (r *Registry) Register(a contractx.Agent) error {
	if a == nil {
		return fmt.Errorf("%w: nil agent", contractx.ErrConfiguration)
	}
	name := a.Info().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.agents[name]; dup {
		return fmt.Errorf("%w: agent %s registered twice", contractx.ErrConfiguration, name)
	}
	r.agents[name] = a
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Agent(name string) (contractx.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Agents returns agents in registration order.
func (r *Registry) Agents() []contractx.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contractx.Agent, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

type delegationKey struct{}

func delegationDepth(ctx context.Context) int {
	d, _ := ctx.Value(delegationKey{}).(int)
	return d
}

// MaxDelegationDepth bounds nested delegation so two agents cannot bounce a
// query between each other.
const MaxDelegationDepth = 1

var errDelegationDepth = errors.New("delegation depth exceeded")

// Delegate runs subQuery on the named agent with a copy of the caller's
// context and returns only the text answer.
func (r *Registry) Delegate(ctx context.Context, name, subQuery string, actx *contractx.AgentContext) (string, error) {
	target, ok := r.Agent(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", contractx.ErrUnknownAgent, name)
	}
	depth := delegationDepth(ctx)
	if depth >= MaxDelegationDepth {
		return "", fmt.Errorf("%w: %s", errDelegationDepth, name)
	}

	sub := &contractx.AgentContext{}
	if actx != nil {
		sub.UserID = actx.UserID
		sub.ConversationID = actx.ConversationID
		sub.DelegatorID = actx.DelegatorID
		sub.Window = actx.Window
		sub.Bindings = actx.Bindings
		sub.Metadata = make(map[string]any, len(actx.Metadata))
		for k, v := range actx.Metadata {
			sub.Metadata[k] = v
		}
	}

	log.Info().Str("agent", name).Int("depth", depth+1).Msg("delegating sub-query")
	res, err := target.Run(context.WithValue(ctx, delegationKey{}, depth+1), subQuery, sub)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

type DelegateArgs struct {
	Agent   string                  `json:"agent" desc:"Name of the specialist agent to consult"`
	Query   string                  `json:"query" desc:"Self-contained question for that agent"`
	Context *contractx.AgentContext `inject:"agent_context"`
	Caller  string                  `inject:"caller"`
}

// RegisterDelegation adds the agent.delegate tool. The registry may still be
// empty at this point; lookups happen at call time.
func RegisterDelegation(b *toolx.Builder, agents *Registry) error {
	return toolx.RegisterTyped(b, ToolDelegate,
		"Ask another specialist agent a focused question and use its answer.",
		nil,
		func(ctx context.Context, in DelegateArgs) (any, error) {
			target := strings.TrimSpace(in.Agent)
			if target == "" || strings.TrimSpace(in.Query) == "" {
				return nil, fmt.Errorf("%w: agent and query are required", contractx.ErrValidation)
			}
			if target == in.Caller {
				return nil, fmt.Errorf("%w: agent %s cannot delegate to itself", contractx.ErrValidation, target)
			}
			answer, err := agents.Delegate(ctx, target, in.Query, in.Context)
			if err != nil {
				return nil, err
			}
			return map[string]string{"agent": target, "answer": answer}, nil
		})
}
