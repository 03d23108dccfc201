package state

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSummaryNotFound      = errors.New("conversation summary not found")
	ErrInvalidConversation  = errors.New("conversation id is empty")
	ErrNilRecord            = errors.New("record is nil")
)

const titleMaxRunes = 100

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

type Conversation struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	// AgentType pins the conversation to one agent role when set.
	AgentType     string    `json:"agent_type,omitempty"`
	IsArchived    bool      `json:"is_archived"`
	IsPinned      bool      `json:"is_pinned"`
	MessageCount  int       `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Message is immutable once appended. Seq is assigned by the store and is
// strictly increasing within a conversation.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Seq            int64          `json:"seq"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	AgentName      string         `json:"agent_name,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	TokenCount     int            `json:"token_count,omitempty"`
	ModelUsed      string         `json:"model_used,omitempty"`
	ResponseTimeMS int64          `json:"response_time_ms,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Summary stands in for the first MessagesSummarized messages of a conversation.
type Summary struct {
	ID                 string         `json:"id"`
	ConversationID     string         `json:"conversation_id"`
	Summary            string         `json:"summary"`
	KeyEntities        map[string]any `json:"key_entities,omitempty"`
	MessagesSummarized int            `json:"messages_summarized"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Store persists conversations, messages and summaries. Implementations
// serialize writes per conversation.
type Store interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// AppendMessage assigns Seq, bumps MessageCount and LastMessageAt.
	AppendMessage(ctx context.Context, m *Message) error
	// RecentMessages returns the newest limit messages, oldest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	// MessagesFrom returns up to limit messages starting at offset, oldest first.
	MessagesFrom(ctx context.Context, conversationID string, offset, limit int) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)
	SaveSummary(ctx context.Context, s *Summary) error
	LatestSummary(ctx context.Context, conversationID string) (*Summary, error)
}

func NewConversation(userID, firstText, agentType string, now time.Time) *Conversation {
	now = now.UTC()
	return &Conversation{
		ID:            uuid.NewString(),
		UserID:        strings.TrimSpace(userID),
		Title:         TitleFrom(firstText),
		AgentType:     strings.TrimSpace(agentType),
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TitleFrom keeps the first 100 runes of the opening message.
func TitleFrom(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "New Conversation"
	}
	runes := []rune(text)
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}
	return string(runes)
}

func (m *Message) prepare(now time.Time) error {
	if m == nil {
		return ErrNilRecord
	}
	if strings.TrimSpace(m.ConversationID) == "" {
		return ErrInvalidConversation
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now.UTC()
	}
	return nil
}

func (s *Summary) prepare(now time.Time) error {
	if s == nil {
		return ErrNilRecord
	}
	if strings.TrimSpace(s.ConversationID) == "" {
		return ErrInvalidConversation
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now.UTC()
	}
	return nil
}

func validateConversation(c *Conversation) error {
	if c == nil {
		return ErrNilRecord
	}
	if strings.TrimSpace(c.ID) == "" {
		return ErrInvalidConversation
	}
	return nil
}
