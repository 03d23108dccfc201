package nlp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	cachex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/pkg/cache"
	"github.com/cloudwego/eino/schema"
)

type taskGateway struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   atomic.Int32
	models  []string
}

func taskOf(req contractx.CompletionRequest) string {
	text := req.Messages[0].Content
	switch {
	case strings.HasPrefix(text, "You classify the intent"):
		return "intent"
	case strings.HasPrefix(text, "You extract named entities"):
		return "entities"
	case strings.HasPrefix(text, "You analyse the sentiment"):
		return "sentiment"
	case strings.HasPrefix(text, "You turn natural language"):
		return "query"
	}
	return "unknown"
}

func (g *taskGateway) Complete(_ context.Context, req contractx.CompletionRequest) (*schema.Message, error) {
	g.calls.Add(1)
	task := taskOf(req)
	g.mu.Lock()
	g.models = append(g.models, req.Model)
	g.mu.Unlock()
	if err := g.errs[task]; err != nil {
		return nil, err
	}
	return schema.AssistantMessage(g.replies[task], nil), nil
}

func (g *taskGateway) CompleteStream(context.Context, contractx.CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not used")
}

func happyReplies() map[string]string {
	return map[string]string{
		"intent":    "```json\n{\"intent\": \"portfolio_analysis\", \"confidence\": 0.92, \"reasoning\": \"asks about drift\"}\n```",
		"entities":  `{"entities": [{"type": "CLIENT_NAME", "value": "Rajesh Kumar", "original_text": "Rajesh"}, {"type": "PLANET", "value": "Mars"}]}`,
		"sentiment": `Sure! {"score": -1.7, "classification": "negative", "emotions": ["anxious"], "urgency": "high"}`,
		"query":     `{"table": "client", "filters": {"risk_profile": "aggressive"}, "limit": 5}`,
	}
}

func TestClassifyMergesAllTasks(t *testing.T) {
	t.Parallel()

	gw := &taskGateway{replies: happyReplies()}
	res := New(gw).Classify(context.Background(), "What's Rajesh's portfolio drift?")

	if res.Intent.Name != "portfolio_analysis" || res.Intent.Confidence != 0.92 {
		t.Fatalf("unexpected intent: %#v", res.Intent)
	}
	if len(res.Entities) != 1 || res.Entities[0].Value != "Rajesh Kumar" || res.Entities[0].OriginalText != "Rajesh" {
		t.Fatalf("unexpected entities: %#v", res.Entities)
	}
	if res.Sentiment.Score != -1 || res.Sentiment.Classification != "negative" || res.Sentiment.Urgency != "high" {
		t.Fatalf("unexpected sentiment: %#v", res.Sentiment)
	}
	if !res.Query.Valid() || res.Query.Table != "client" || res.Query.Limit != 5 || res.Query.SortOrder != "desc" {
		t.Fatalf("unexpected query: %#v", res.Query)
	}
	if gw.calls.Load() != 4 {
		t.Fatalf("expected 4 gateway calls, got %d", gw.calls.Load())
	}
	for _, m := range gw.models {
		if m != DefaultModel {
			t.Fatalf("unexpected model %q", m)
		}
	}
}

func TestClassifyIsolatesEntityFailure(t *testing.T) {
	t.Parallel()

	gw := &taskGateway{
		replies: happyReplies(),
		errs:    map[string]error{"entities": errors.New("gateway timeout")},
	}
	res := New(gw).Classify(context.Background(), "What's Rajesh's portfolio drift?")

	if res.Entities == nil || len(res.Entities) != 0 {
		t.Fatalf("expected empty entity set, got %#v", res.Entities)
	}
	if res.Intent.Name != "portfolio_analysis" {
		t.Fatalf("intent affected by sibling failure: %#v", res.Intent)
	}
	if res.Sentiment.Classification != "negative" {
		t.Fatalf("sentiment affected by sibling failure: %#v", res.Sentiment)
	}
}

func TestClassifyFallbacks(t *testing.T) {
	t.Parallel()

	gw := &taskGateway{
		replies: map[string]string{
			"intent":    `{"intent": "buy_crypto", "confidence": 0.99}`,
			"entities":  `not json at all`,
			"sentiment": `{"score": 0.2, "classification": "ecstatic", "urgency": "now"}`,
			"query":     `{"table": null, "filters": {}}`,
		},
	}
	res := New(gw).Classify(context.Background(), "hello")

	if res.Intent.Name != contractx.IntentGeneralChat {
		t.Fatalf("out-of-taxonomy intent not coerced: %#v", res.Intent)
	}
	if len(res.Entities) != 0 {
		t.Fatalf("expected no entities, got %#v", res.Entities)
	}
	if res.Sentiment.Classification != "neutral" || res.Sentiment.Urgency != "low" || res.Sentiment.Score != 0.2 {
		t.Fatalf("unexpected sentiment: %#v", res.Sentiment)
	}
	if res.Query != nil {
		t.Fatalf("expected no query, got %#v", res.Query)
	}
}

func TestClassifyAllFailing(t *testing.T) {
	t.Parallel()

	boom := errors.New("down")
	gw := &taskGateway{errs: map[string]error{"intent": boom, "entities": boom, "sentiment": boom, "query": boom}}
	res := New(gw).Classify(context.Background(), "hello")

	if res.Intent.Name != contractx.IntentGeneralChat || res.Intent.Confidence != 0 {
		t.Fatalf("unexpected intent fallback: %#v", res.Intent)
	}
	if s := res.Sentiment; s.Score != 0 || s.Classification != "neutral" || s.Urgency != "low" || len(s.Emotions) != 0 {
		t.Fatalf("unexpected sentiment fallback: %#v", res.Sentiment)
	}
	if res.Query != nil {
		t.Fatalf("unexpected query fallback: %#v", res.Query)
	}
}

func TestClassifySkipsQueryWhenDisabled(t *testing.T) {
	t.Parallel()

	gw := &taskGateway{replies: happyReplies()}
	res := New(gw, WithQueryParsing(false)).Classify(context.Background(), "hi")
	if res.Query != nil || gw.calls.Load() != 3 {
		t.Fatalf("query=%#v calls=%d", res.Query, gw.calls.Load())
	}
}

func TestClassifyCachesCompleteResults(t *testing.T) {
	t.Parallel()

	c, err := cachex.New(1 << 20)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer c.Close()

	gw := &taskGateway{replies: happyReplies()}
	p := New(gw, WithCache(c, time.Minute))

	first := p.Classify(context.Background(), "Show drift for Rajesh")
	c.Wait()
	second := p.Classify(context.Background(), "  show drift for rajesh ")

	if gw.calls.Load() != 4 {
		t.Fatalf("expected cached second call, gateway calls = %d", gw.calls.Load())
	}
	if second.Intent != first.Intent || len(second.Entities) != len(first.Entities) {
		t.Fatalf("cached result differs: %#v vs %#v", second, first)
	}
}
