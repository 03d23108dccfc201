package state

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]*Message
	summaries     map[string][]*Summary
	now           func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		summaries:     make(map[string][]*Summary),
		now:           time.Now,
	}
}

func (s *MemoryStore) CreateConversation(_ context.Context, c *Conversation) error {
	if err := validateConversation(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conversations[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (*Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidConversation
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, m *Message) error {
	now := s.now()
	if err := m.prepare(now); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[m.ConversationID]
	if !ok {
		return ErrConversationNotFound
	}

	m.Seq = int64(len(s.messages[m.ConversationID]) + 1)
	cp := *m
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], &cp)

	c.MessageCount++
	c.LastMessageAt = m.CreatedAt
	c.UpdatedAt = now.UTC()
	return nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, conversationID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	return copyMessages(all[len(all)-limit:]), nil
}

func (s *MemoryStore) MessagesFrom(_ context.Context, conversationID string, offset, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return copyMessages(all[offset:end]), nil
}

func (s *MemoryStore) CountMessages(_ context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[conversationID]), nil
}

func (s *MemoryStore) SaveSummary(_ context.Context, sum *Summary) error {
	if err := sum.prepare(s.now()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sum
	s.summaries[sum.ConversationID] = append(s.summaries[sum.ConversationID], &cp)
	return nil
}

func (s *MemoryStore) LatestSummary(_ context.Context, conversationID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.summaries[conversationID]
	if len(list) == 0 {
		return nil, ErrSummaryNotFound
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

func copyMessages(in []*Message) []*Message {
	out := make([]*Message, len(in))
	for i, m := range in {
		cp := *m
		out[i] = &cp
	}
	return out
}
