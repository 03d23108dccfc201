package orchestrator

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	memoryx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/memory"
	nodex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/nodes/orchestrator"
	toolx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidUser    = nodex.ErrInvalidUser
)

type (
	TurnRequest = nodex.GraphInput
	TurnResult  = nodex.GraphOutput
)

type ServiceOption func(*Service)

// WithScheduler enables summarization after each turn.
func WithScheduler(s memoryx.Scheduler) ServiceOption {
	return func(svc *Service) { svc.scheduler = s }
}

// WithBindings adds request-independent tool bindings.
func WithBindings(b contractx.Bindings) ServiceOption {
	return func(svc *Service) {
		for k, v := range b {
			svc.bindings[k] = v
		}
	}
}

func withClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// Service runs a full turn: conversation bookkeeping, classification,
// routing, agent execution, persistence and summarization.
type Service struct {
	memory       *memoryx.Manager
	classifier   contractx.Classifier
	orchestrator *Orchestrator
	scheduler    memoryx.Scheduler
	bindings     contractx.Bindings

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func NewService(
	memory *memoryx.Manager,
	classifier contractx.Classifier,
	orchestrator *Orchestrator,
	opts ...ServiceOption,
) (*Service, error) {
	if memory == nil {
		return nil, errors.New("memory manager is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}

	s := &Service{
		memory:       memory,
		classifier:   classifier,
		orchestrator: orchestrator,
		bindings:     contractx.Bindings{toolx.BindStore: memory.Store()},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	runner, err := s.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = runner
	return s, nil
}

func (s *Service) HandleTurn(ctx context.Context, in TurnRequest) (TurnResult, error) {
	out, err := s.graphRunner.Invoke(ctx, in)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", in.ConversationID).Msg("turn failed")
		return TurnResult{}, err
	}
	return out, nil
}

// HandleTurnStream runs the same pipeline as HandleTurn but yields events as
// they happen. The assistant message is persisted only once the agent's
// stream_end arrives; a consumer that stops early leaves nothing behind. The
// sequence can be ranged once.
func (s *Service) HandleTurnStream(ctx context.Context, in TurnRequest) iter.Seq2[contractx.Event, error] {
	var used atomic.Bool
	return func(yield func(contractx.Event, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(contractx.Event{}, contractx.ErrStreamConsumed)
			return
		}

		st, err := s.prepareStream(ctx, in)
		if err != nil {
			s.yieldError(yield, in.ConversationID, err)
			return
		}
		convID := st.Conversation.ID

		if st.Created {
			if !yield(contractx.Event{
				Type:           contractx.EventConversationCreated,
				ConversationID: convID,
				Message:        st.Conversation.Title,
			}, nil) {
				return
			}
		}
		if !yield(contractx.Event{
			Type:           contractx.EventStreamStart,
			ConversationID: convID,
			Intent:         st.Classification.Intent.Name,
		}, nil) {
			return
		}

		st.AgentContext = nodex.BuildAgentContext(st, s.bindings)
		cls := st.Classification
		var end *contractx.Event
		for ev, err := range s.orchestrator.ProcessStream(ctx, st.Text, st.AgentContext, &cls) {
			if err != nil {
				s.yieldError(yield, convID, err)
				return
			}
			if ev.Type == contractx.EventStreamEnd {
				ev.ConversationID = convID
				end = &ev
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
		if end == nil {
			s.yieldError(yield, convID, errors.New("agent stream ended without stream_end"))
			return
		}

		st.Result = contractx.ProcessResult{
			AgentResult: contractx.AgentResult{
				Content:          end.Content,
				AgentName:        end.Agent,
				Model:            s.modelOf(end.Agent),
				ToolsInvoked:     end.ToolsInvoked,
				RoundsUsed:       end.RoundsUsed,
				ForcedCompletion: end.ForcedCompletion,
			},
			Intent: end.Intent,
		}
		if st, err = nodex.SaveAssistantMessage(ctx, st, s.memory, s.now); err != nil {
			s.yieldError(yield, convID, err)
			return
		}
		// Runs even when the consumer stops reading at stream_end.
		defer func() { _, _ = nodex.ScheduleSummary(ctx, st, s.memory, s.scheduler) }()
		yield(*end, nil)
	}
}

func (s *Service) prepareStream(ctx context.Context, in TurnRequest) (*nodex.GraphState, error) {
	st, err := nodex.ValidateRequest(in, s.now)
	if err != nil {
		return nil, err
	}
	steps := []func(context.Context, *nodex.GraphState) (*nodex.GraphState, error){
		func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateConversation(ctx, st, s.memory)
		},
		func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ReadContext(ctx, st, s.memory)
		},
		func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveUserMessage(ctx, st, s.memory)
		},
		func(ctx context.Context, st *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Classify(ctx, st, s.classifier)
		},
	}
	for _, step := range steps {
		if st, err = step(ctx, st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *Service) yieldError(yield func(contractx.Event, error) bool, convID string, err error) {
	log.Error().Err(err).Str("conversation_id", convID).Msg("streamed turn failed")
	yield(contractx.Event{Type: contractx.EventError, ConversationID: convID, Message: err.Error()}, err)
}

// modelOf reports the model an agent is configured with, when it exposes one.
func (s *Service) modelOf(agentName string) string {
	a, ok := s.orchestrator.agents.Agent(agentName)
	if !ok {
		return ""
	}
	if m, ok := a.(interface{ ModelName() string }); ok {
		return m.ModelName()
	}
	return ""
}

// Classify exposes classification without running an agent.
func (s *Service) Classify(ctx context.Context, text string) contractx.ClassificationResult {
	return s.classifier.Classify(ctx, text)
}

func (s *Service) Agents() []contractx.AgentInfo {
	return s.orchestrator.Agents()
}

// Summarize runs summarization for one conversation immediately. It backs the
// QStash callback.
func (s *Service) Summarize(ctx context.Context, conversationID string, threshold int) (string, error) {
	return s.memory.Summarize(ctx, conversationID, threshold)
}
