package bunstore

import (
	"time"

	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID            string    `bun:"id,pk,type:uuid"`
	UserID        string    `bun:"user_id,notnull"`
	Title         string    `bun:"title,notnull"`
	AgentType     string    `bun:"agent_type,nullzero"`
	IsArchived    bool      `bun:"is_archived,notnull,default:false"`
	IsPinned      bool      `bun:"is_pinned,notnull,default:false"`
	MessageCount  int       `bun:"message_count,notnull,default:0"`
	LastMessageAt time.Time `bun:"last_message_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             string         `bun:"id,pk,type:uuid"`
	ConversationID string         `bun:"conversation_id,notnull,type:uuid"`
	Seq            int64          `bun:"seq,notnull"`
	Role           string         `bun:"role,notnull"`
	Content        string         `bun:"content,notnull"`
	AgentName      string         `bun:"agent_name,nullzero"`
	Metadata       map[string]any `bun:"metadata,type:jsonb"`
	TokenCount     int            `bun:"token_count"`
	ModelUsed      string         `bun:"model_used,nullzero"`
	ResponseTimeMS int64          `bun:"response_time_ms"`
	CreatedAt      time.Time      `bun:"created_at,notnull"`
}

type summaryRow struct {
	bun.BaseModel `bun:"table:conversation_summaries,alias:s"`

	ID                 string         `bun:"id,pk,type:uuid"`
	ConversationID     string         `bun:"conversation_id,notnull,type:uuid"`
	Summary            string         `bun:"summary,notnull"`
	KeyEntities        map[string]any `bun:"key_entities,type:jsonb"`
	MessagesSummarized int            `bun:"messages_summarized,notnull"`
	CreatedAt          time.Time      `bun:"created_at,notnull"`
}

func fromConversation(c *statex.Conversation) *conversationRow {
	return &conversationRow{
		ID:            c.ID,
		UserID:        c.UserID,
		Title:         c.Title,
		AgentType:     c.AgentType,
		IsArchived:    c.IsArchived,
		IsPinned:      c.IsPinned,
		MessageCount:  c.MessageCount,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (r *conversationRow) toConversation() *statex.Conversation {
	return &statex.Conversation{
		ID:            r.ID,
		UserID:        r.UserID,
		Title:         r.Title,
		AgentType:     r.AgentType,
		IsArchived:    r.IsArchived,
		IsPinned:      r.IsPinned,
		MessageCount:  r.MessageCount,
		LastMessageAt: r.LastMessageAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func fromMessage(m *statex.Message) *messageRow {
	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &messageRow{
		ID:             id,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		Role:           string(m.Role),
		Content:        m.Content,
		AgentName:      m.AgentName,
		Metadata:       m.Metadata,
		TokenCount:     m.TokenCount,
		ModelUsed:      m.ModelUsed,
		ResponseTimeMS: m.ResponseTimeMS,
		CreatedAt:      m.CreatedAt,
	}
}

func (r *messageRow) toMessage() *statex.Message {
	return &statex.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Seq:            r.Seq,
		Role:           statex.Role(r.Role),
		Content:        r.Content,
		AgentName:      r.AgentName,
		Metadata:       r.Metadata,
		TokenCount:     r.TokenCount,
		ModelUsed:      r.ModelUsed,
		ResponseTimeMS: r.ResponseTimeMS,
		CreatedAt:      r.CreatedAt,
	}
}

func fromSummary(s *statex.Summary) *summaryRow {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &summaryRow{
		ID:                 id,
		ConversationID:     s.ConversationID,
		Summary:            s.Summary,
		KeyEntities:        s.KeyEntities,
		MessagesSummarized: s.MessagesSummarized,
		CreatedAt:          s.CreatedAt,
	}
}

func (r *summaryRow) toSummary() *statex.Summary {
	return &statex.Summary{
		ID:                 r.ID,
		ConversationID:     r.ConversationID,
		Summary:            r.Summary,
		KeyEntities:        r.KeyEntities,
		MessagesSummarized: r.MessagesSummarized,
		CreatedAt:          r.CreatedAt,
	}
}
