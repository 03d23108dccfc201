package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	promptx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/prompt"
	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultWindow       = 20
	DefaultSummaryModel = "openai/gpt-4o-mini"

	summaryTemperature = float32(0.2)
	summaryMaxTokens   = 500
)

// Manager keeps conversation context bounded: a short-term window of recent
// messages plus a rolling summary of everything older.
type Manager struct {
	store        statex.Store
	gateway      contractx.CompletionGateway
	window       int
	summaryModel string
	now          func() time.Time
	inflight     singleflight.Group
}

type Option func(*Manager)

func WithWindow(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.window = n
		}
	}
}

func WithSummaryModel(model string) Option {
	return func(m *Manager) {
		if strings.TrimSpace(model) != "" {
			m.summaryModel = model
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store statex.Store, gateway contractx.CompletionGateway, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		gateway:      gateway,
		window:       DefaultWindow,
		summaryModel: DefaultSummaryModel,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Manager) Window() int { return m.window }

func (m *Manager) Store() statex.Store { return m.store }

// CreateConversation starts a conversation titled after its first message.
func (m *Manager) CreateConversation(ctx context.Context, userID, firstText, agentType string) (*statex.Conversation, error) {
	conv := statex.NewConversation(userID, firstText, agentType, m.now())
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (m *Manager) Conversation(ctx context.Context, id string) (*statex.Conversation, error) {
	return m.store.GetConversation(ctx, id)
}

// GetContext returns the newest maxMessages messages oldest first, preceded by
// the latest summary as a system message when one exists. maxMessages <= 0
// uses the configured window.
func (m *Manager) GetContext(ctx context.Context, conversationID string, maxMessages int) ([]*schema.Message, error) {
	if maxMessages <= 0 {
		maxMessages = m.window
	}
	recent, err := m.replayable(ctx, conversationID, maxMessages)
	if err != nil {
		return nil, err
	}

	out := make([]*schema.Message, 0, len(recent)+1)
	summary, err := m.latestSummary(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if summary != nil && strings.TrimSpace(summary.Summary) != "" {
		out = append(out, schema.SystemMessage("[Conversation summary up to this point: "+summary.Summary+"]"))
	}

	for _, msg := range recent {
		switch msg.Role {
		case statex.RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case statex.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		case statex.RoleSystem:
			out = append(out, schema.SystemMessage(msg.Content))
		}
	}
	return out, nil
}

// replayable returns the last n stored messages that are not tool results,
// widening the read until n are found or the conversation is exhausted. A
// tool result cannot be replayed without the call that produced it.
func (m *Manager) replayable(ctx context.Context, conversationID string, n int) ([]*statex.Message, error) {
	limit := n
	for {
		recent, err := m.store.RecentMessages(ctx, conversationID, limit)
		if err != nil {
			return nil, err
		}
		kept := make([]*statex.Message, 0, len(recent))
		for _, msg := range recent {
			if msg.Role == statex.RoleTool {
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) >= n || len(recent) < limit {
			if len(kept) > n {
				kept = kept[len(kept)-n:]
			}
			if skipped := len(recent) - len(kept); skipped > 0 {
				log.Debug().Str("conversation_id", conversationID).Int("skipped", skipped).Msg("tool messages left out of context window")
			}
			return kept, nil
		}
		limit += n - len(kept)
	}
}

type MessageOption func(*statex.Message)

func WithAgent(name string) MessageOption {
	return func(m *statex.Message) { m.AgentName = name }
}

func WithModelUsed(model string) MessageOption {
	return func(m *statex.Message) { m.ModelUsed = model }
}

func WithResponseTime(d time.Duration) MessageOption {
	return func(m *statex.Message) { m.ResponseTimeMS = d.Milliseconds() }
}

// SaveMessage appends a message; earlier messages are never touched.
func (m *Manager) SaveMessage(ctx context.Context, conversationID string, role statex.Role, content string, metadata map[string]any, opts ...MessageOption) (*statex.Message, error) {
	msg := &statex.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		TokenCount:     estimateTokens(content),
		CreatedAt:      m.now(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(msg)
		}
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ShouldSummarize reports whether the messages not yet covered by a summary
// exceed threshold. threshold <= 0 uses twice the window.
func (m *Manager) ShouldSummarize(ctx context.Context, conversationID string, threshold int) (bool, error) {
	unsummarized, _, err := m.unsummarized(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return unsummarized > m.threshold(threshold), nil
}

// Summarize folds up to threshold of the oldest unsummarized messages into a
// new summary and returns its text, or "" when there is nothing to summarize.
// Concurrent calls for one conversation share a single run.
func (m *Manager) Summarize(ctx context.Context, conversationID string, threshold int) (string, error) {
	v, err, _ := m.inflight.Do(conversationID, func() (any, error) {
		return m.summarize(ctx, conversationID, m.threshold(threshold))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) summarize(ctx context.Context, conversationID string, limit int) (string, error) {
	unsummarized, prev, err := m.unsummarized(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if unsummarized <= 0 {
		return "", nil
	}

	offset, previous := 0, ""
	if prev != nil {
		offset, previous = prev.MessagesSummarized, prev.Summary
	}
	batch, err := m.store.MessagesFrom(ctx, conversationID, offset, limit)
	if err != nil {
		return "", err
	}
	if len(batch) == 0 {
		return "", nil
	}

	msgs, err := promptx.Summarize(ctx, transcript(batch), previous)
	if err != nil {
		return "", err
	}
	temp, maxTokens := summaryTemperature, summaryMaxTokens
	resp, err := m.gateway.Complete(ctx, contractx.CompletionRequest{
		Messages:    msgs,
		Model:       m.summaryModel,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: summarize conversation %s: %v", contractx.ErrModelInvoke, conversationID, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty summary for conversation %s", contractx.ErrSchemaViolation, conversationID)
	}

	summary := &statex.Summary{
		ConversationID:     conversationID,
		Summary:            text,
		KeyEntities:        keyEntities(batch),
		MessagesSummarized: offset + len(batch),
		CreatedAt:          m.now(),
	}
	if err := m.store.SaveSummary(ctx, summary); err != nil {
		return "", err
	}
	log.Info().
		Str("conversation_id", conversationID).
		Int("messages_summarized", summary.MessagesSummarized).
		Msg("conversation summarized")
	return text, nil
}

func (m *Manager) unsummarized(ctx context.Context, conversationID string) (int, *statex.Summary, error) {
	count, err := m.store.CountMessages(ctx, conversationID)
	if err != nil {
		return 0, nil, err
	}
	summary, err := m.latestSummary(ctx, conversationID)
	if err != nil {
		return 0, nil, err
	}
	if summary == nil {
		return count, nil, nil
	}
	return count - summary.MessagesSummarized, summary, nil
}

func (m *Manager) latestSummary(ctx context.Context, conversationID string) (*statex.Summary, error) {
	summary, err := m.store.LatestSummary(ctx, conversationID)
	if errors.Is(err, statex.ErrSummaryNotFound) {
		return nil, nil
	}
	return summary, err
}

func (m *Manager) threshold(n int) int {
	if n > 0 {
		return n
	}
	return 2 * m.window
}

func transcript(msgs []*statex.Message) string {
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return b.String()
}

// keyEntities collects the distinct entity values recorded in message
// metadata, grouped by entity type.
func keyEntities(msgs []*statex.Message) map[string]any {
	seen := map[string]map[string]struct{}{}
	out := map[string]any{}
	add := func(typ, value string) {
		if typ == "" || value == "" {
			return
		}
		if seen[typ] == nil {
			seen[typ] = map[string]struct{}{}
		}
		if _, dup := seen[typ][value]; dup {
			return
		}
		seen[typ][value] = struct{}{}
		values, _ := out[typ].([]string)
		out[typ] = append(values, value)
	}

	for _, msg := range msgs {
		switch entities := msg.Metadata[contractx.MetaEntities].(type) {
		case []contractx.Entity:
			for _, e := range entities {
				add(e.Type, e.Value)
			}
		case []any:
			// Stores that round-trip metadata through JSON.
			for _, raw := range entities {
				if e, ok := raw.(map[string]any); ok {
					typ, _ := e["type"].(string)
					value, _ := e["value"].(string)
					add(typ, value)
				}
			}
		}
	}
	return out
}

// estimateTokens is a rough four-characters-per-token estimate.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
