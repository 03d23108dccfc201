package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	memoryx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/memory"
	nodex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/nodes/orchestrator"
	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
	toolx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/tool"
	"github.com/cloudwego/eino/schema"
)

type fakeClassifier struct {
	result contractx.ClassificationResult
}

func (f fakeClassifier) Classify(context.Context, string) contractx.ClassificationResult {
	return f.result
}

type nopGateway struct{}

func (nopGateway) Complete(context.Context, contractx.CompletionRequest) (*schema.Message, error) {
	return schema.AssistantMessage("summary", nil), nil
}

func (nopGateway) CompleteStream(context.Context, contractx.CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not used")
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingScheduler) Schedule(_ context.Context, convID string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, convID)
	return r.err
}

type serviceFixture struct {
	svc       *Service
	store     *statex.MemoryStore
	lookup    *fakeLookup
	scheduler *recordingScheduler
}

func newFixture(t *testing.T, intent string, confidence float64) serviceFixture {
	t.Helper()
	store := statex.NewMemoryStore()
	mem := memoryx.NewManager(store, nopGateway{}, memoryx.WithWindow(1))
	lookup := newLookup(contractx.AgentAdvisor, "portfolio_intelligence", "compliance_sentinel")
	orch, err := New(lookup)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sched := &recordingScheduler{}
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(mem, fakeClassifier{result: contractx.ClassificationResult{
		Intent: contractx.Intent{Name: intent, Confidence: confidence},
	}}, orch, WithScheduler(sched), withClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return serviceFixture{svc: svc, store: store, lookup: lookup, scheduler: sched}
}

func TestHandleTurnCreatesConversationAndPersists(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "portfolio_analysis", 0.9)
	ctx := context.Background()

	out, err := f.svc.HandleTurn(ctx, TurnRequest{UserID: "u1", Text: "What's my portfolio drift?"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !out.Created || out.ConversationID == "" || out.Title != "What's my portfolio drift?" {
		t.Fatalf("unexpected output: %#v", out)
	}
	if out.Result.AgentName != "portfolio_intelligence" || out.Result.Content != "reply from portfolio_intelligence" {
		t.Fatalf("unexpected result: %#v", out.Result)
	}

	msgs, err := f.store.RecentMessages(ctx, out.ConversationID, 10)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != statex.RoleUser || msgs[1].Role != statex.RoleAssistant {
		t.Fatalf("unexpected messages: %#v", msgs)
	}
	if msgs[1].AgentName != "portfolio_intelligence" || msgs[1].Metadata[contractx.MetaIntent] != "portfolio_analysis" {
		t.Fatalf("assistant metadata missing: %#v", msgs[1])
	}
	if len(f.scheduler.calls) != 0 {
		t.Fatal("summarization must not run below the threshold")
	}

	seen := f.lookup.agents["portfolio_intelligence"].seen
	if seen.ConversationID != out.ConversationID || seen.Bindings[toolx.BindConversationID] != out.ConversationID {
		t.Fatalf("agent context not bound to the conversation: %#v", seen)
	}
}

func TestHandleTurnContinuesConversationAndSummarizes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "general_chat", 0.9)
	ctx := context.Background()

	first, err := f.svc.HandleTurn(ctx, TurnRequest{UserID: "u1", Text: "hello"})
	if err != nil {
		t.Fatalf("first HandleTurn() error = %v", err)
	}
	second, err := f.svc.HandleTurn(ctx, TurnRequest{UserID: "u1", ConversationID: first.ConversationID, Text: "and again"})
	if err != nil {
		t.Fatalf("second HandleTurn() error = %v", err)
	}
	if second.Created || second.ConversationID != first.ConversationID {
		t.Fatalf("expected the same conversation: %#v", second)
	}
	seen := f.lookup.agents[contractx.AgentAdvisor].seen
	if len(seen.Window) != 1 || seen.Window[0].Content != "reply from advisor_assistant" {
		t.Fatalf("window should hold the last message only: %#v", seen.Window)
	}
	if len(f.scheduler.calls) != 1 || f.scheduler.calls[0] != first.ConversationID {
		t.Fatalf("expected one summarize schedule, got %v", f.scheduler.calls)
	}
}

func TestHandleTurnPinnedConversationForcesAgent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "portfolio_analysis", 0.95)
	out, err := f.svc.HandleTurn(context.Background(), TurnRequest{UserID: "u1", Text: "check KYC", AgentType: "compliance_sentinel"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if out.Result.AgentName != "compliance_sentinel" {
		t.Fatalf("forced agent ignored: %#v", out.Result)
	}
	next, err := f.svc.HandleTurn(context.Background(), TurnRequest{UserID: "u1", ConversationID: out.ConversationID, Text: "anything else?"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if next.Result.AgentName != "compliance_sentinel" {
		t.Fatalf("pinned conversation lost its agent: %#v", next.Result)
	}
}

func TestHandleTurnRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "general_chat", 0.9)
	_, err := f.svc.HandleTurn(context.Background(), TurnRequest{UserID: "u1", Text: "   "})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("HandleTurn() error = %v, want ErrInvalidMessage", err)
	}
}

func TestHandleTurnUnknownConversation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "general_chat", 0.9)
	_, err := f.svc.HandleTurn(context.Background(), TurnRequest{UserID: "u1", ConversationID: "missing", Text: "hi"})
	if !errors.Is(err, statex.ErrConversationNotFound) {
		t.Fatalf("HandleTurn() error = %v, want ErrConversationNotFound", err)
	}
}

func TestHandleTurnSurfacesAgentFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "general_chat", 0.9)
	f.lookup.agents[contractx.AgentAdvisor].err = errors.New("boom")

	_, err := f.svc.HandleTurn(context.Background(), TurnRequest{UserID: "u1", Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("HandleTurn() error = %v", err)
	}
}

func TestHandleTurnStreamEventsAndPersistence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "portfolio_analysis", 0.9)
	ctx := context.Background()

	var types []contractx.EventType
	var convID string
	for ev, err := range f.svc.HandleTurnStream(ctx, TurnRequest{UserID: "u1", Text: "drift?"}) {
		if err != nil {
			t.Fatalf("HandleTurnStream() error = %v", err)
		}
		types = append(types, ev.Type)
		if ev.Type == contractx.EventConversationCreated {
			convID = ev.ConversationID
		}
	}
	want := []contractx.EventType{
		contractx.EventConversationCreated,
		contractx.EventStreamStart,
		contractx.EventAgentStatus,
		contractx.EventStreamToken,
		contractx.EventStreamEnd,
	}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
	n, _ := f.store.CountMessages(ctx, convID)
	if n != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", n)
	}
}

func TestHandleTurnStreamAbandonedPersistsNoReply(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "portfolio_analysis", 0.9)
	ctx := context.Background()

	var convID string
	for ev, err := range f.svc.HandleTurnStream(ctx, TurnRequest{UserID: "u1", Text: "drift?"}) {
		if err != nil {
			t.Fatalf("HandleTurnStream() error = %v", err)
		}
		if ev.Type == contractx.EventConversationCreated {
			convID = ev.ConversationID
		}
		if ev.Type == contractx.EventStreamToken {
			break
		}
	}
	msgs, _ := f.store.RecentMessages(ctx, convID, 10)
	if len(msgs) != 1 || msgs[0].Role != statex.RoleUser {
		t.Fatalf("only the user message may be persisted: %#v", msgs)
	}
}

func TestHandleTurnStreamSchedulesSummaryWhenConsumerStopsAtEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "general_chat", 0.9)
	ctx := context.Background()

	first, err := f.svc.HandleTurn(ctx, TurnRequest{UserID: "u1", Text: "hello"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	for ev, err := range f.svc.HandleTurnStream(ctx, TurnRequest{UserID: "u1", ConversationID: first.ConversationID, Text: "and again"}) {
		if err != nil {
			t.Fatalf("HandleTurnStream() error = %v", err)
		}
		if ev.Type == contractx.EventStreamEnd {
			break
		}
	}
	if len(f.scheduler.calls) != 1 || f.scheduler.calls[0] != first.ConversationID {
		t.Fatalf("expected one summarize schedule, got %v", f.scheduler.calls)
	}
}

func TestHandleTurnStreamReportsErrorEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "general_chat", 0.9)
	f.lookup.agents[contractx.AgentAdvisor].err = errors.New("gateway down")

	var last contractx.Event
	var gotErr error
	for ev, err := range f.svc.HandleTurnStream(context.Background(), TurnRequest{UserID: "u1", Text: "hi"}) {
		last = ev
		if err != nil {
			gotErr = err
		}
	}
	if gotErr == nil || last.Type != contractx.EventError || last.Message != "gateway down" {
		t.Fatalf("unexpected terminal event %#v, err %v", last, gotErr)
	}
}

func TestForcedAgentIgnoresGeneralTypes(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{"", "general", contractx.AgentAdvisor} {
		st := &nodex.GraphState{AgentType: typ}
		if got := st.ForcedAgent(); got != "" {
			t.Fatalf("ForcedAgent(%q) = %q, want empty", typ, got)
		}
	}
	st := &nodex.GraphState{Conversation: &statex.Conversation{AgentType: "tax_optimizer"}}
	if st.ForcedAgent() != "tax_optimizer" {
		t.Fatal("conversation agent type should force the agent")
	}
}
