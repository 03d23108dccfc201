package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	"github.com/cloudwego/eino/schema"
)

func TestAgentsShipInstructions(t *testing.T) {
	t.Parallel()

	names := Agents()
	if len(names) != 13 {
		t.Fatalf("expected 13 agent templates, got %d: %v", len(names), names)
	}
	for _, name := range names {
		text, err := Agent(name)
		if err != nil {
			t.Fatalf("Agent(%s) error = %v", name, err)
		}
		if text == "" {
			t.Fatalf("Agent(%s) is empty", name)
		}
	}
}

func TestAgentMissing(t *testing.T) {
	t.Parallel()

	if _, err := Agent("lead_scoring"); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("Agent() error = %v, want ErrPromptMissing", err)
	}
}

func TestRenderSubstitutesVariables(t *testing.T) {
	t.Parallel()

	msgs, err := Render(context.Background(), TaskSentiment, map[string]any{"message": "Markets are crashing {help}"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != schema.User {
		t.Fatalf("unexpected messages: %#v", msgs)
	}
	if !strings.Contains(msgs[0].Content, `"Markets are crashing {help}"`) {
		t.Fatalf("message not substituted: %s", msgs[0].Content)
	}
}

func TestSummarizeIncludesPreviousSummary(t *testing.T) {
	t.Parallel()

	msgs, err := Summarize(context.Background(), "user: hi", "Client wants to rebalance.")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != schema.System {
		t.Fatalf("unexpected messages: %#v", msgs)
	}
	if !strings.Contains(msgs[1].Content, "Client wants to rebalance.") || !strings.Contains(msgs[1].Content, "user: hi") {
		t.Fatalf("request missing content: %s", msgs[1].Content)
	}

	fresh, err := Summarize(context.Background(), "user: hi", "")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if !strings.HasPrefix(fresh[1].Content, "Summarise this conversation") {
		t.Fatalf("unexpected fresh request: %s", fresh[1].Content)
	}
}
