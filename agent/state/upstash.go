package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultStoreKeyPrefix = "wn:conv:"
	maxResponseSizeBytes  = 4 << 20
)

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

// WithTTL expires every key of a conversation ttl after its last write.
// Zero keeps conversations forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

func withClock(now func() time.Time) StoreOption {
	return func(s *UpstashRedisStore) {
		s.now = now
	}
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"0s"`
}

// UpstashRedisStore keeps each conversation as three keys over the Upstash
// REST API: the conversation record, a message list and a summary list.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
	now        func() time.Time
}

var _ Store = (*UpstashRedisStore)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultStoreKeyPrefix,
		ttl:        cfg.TTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return store, nil
}

func (s *UpstashRedisStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if err := validateConversation(c); err != nil {
		return err
	}
	return s.putConversation(ctx, c)
}

func (s *UpstashRedisStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	key, err := s.conversationKey(id)
	if err != nil {
		return nil, err
	}
	resp, err := s.exec(ctx, "GET", key)
	if err != nil {
		return nil, err
	}

	encoded, ok, err := decodeBulkString(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("decode conversation payload: %w", err)
	}
	if !ok {
		return nil, ErrConversationNotFound
	}

	var c Conversation
	if err := json.Unmarshal([]byte(encoded), &c); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &c, nil
}

func (s *UpstashRedisStore) AppendMessage(ctx context.Context, m *Message) error {
	now := s.now()
	if err := m.prepare(now); err != nil {
		return err
	}
	c, err := s.GetConversation(ctx, m.ConversationID)
	if err != nil {
		return err
	}

	m.Seq = 0
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	listKey := s.keyPrefix + m.ConversationID + ":messages"
	resp, err := s.exec(ctx, "RPUSH", listKey, string(payload))
	if err != nil {
		return err
	}
	var length int64
	if err := json.Unmarshal(resp.Result, &length); err != nil {
		return fmt.Errorf("decode RPUSH result: %w", err)
	}
	m.Seq = length

	c.MessageCount = int(length)
	c.LastMessageAt = m.CreatedAt
	c.UpdatedAt = now.UTC()
	if err := s.putConversation(ctx, c); err != nil {
		return err
	}
	return s.touch(ctx, listKey)
}

func (s *UpstashRedisStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	count, err := s.CountMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	start := 0
	if limit > 0 && count > limit {
		start = count - limit
	}
	return s.messageRange(ctx, conversationID, start, -1)
}

func (s *UpstashRedisStore) MessagesFrom(ctx context.Context, conversationID string, offset, limit int) ([]*Message, error) {
	if offset < 0 {
		offset = 0
	}
	stop := -1
	if limit > 0 {
		stop = offset + limit - 1
	}
	return s.messageRange(ctx, conversationID, offset, stop)
}

func (s *UpstashRedisStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	if _, err := s.conversationKey(conversationID); err != nil {
		return 0, err
	}
	resp, err := s.exec(ctx, "LLEN", s.keyPrefix+conversationID+":messages")
	if err != nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(resp.Result, &n); err != nil {
		return 0, fmt.Errorf("decode LLEN result: %w", err)
	}
	return n, nil
}

func (s *UpstashRedisStore) SaveSummary(ctx context.Context, sum *Summary) error {
	if err := sum.prepare(s.now()); err != nil {
		return err
	}
	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	key := s.keyPrefix + sum.ConversationID + ":summaries"
	if _, err := s.exec(ctx, "RPUSH", key, string(payload)); err != nil {
		return err
	}
	return s.touch(ctx, key)
}

func (s *UpstashRedisStore) LatestSummary(ctx context.Context, conversationID string) (*Summary, error) {
	if _, err := s.conversationKey(conversationID); err != nil {
		return nil, err
	}
	resp, err := s.exec(ctx, "LINDEX", s.keyPrefix+conversationID+":summaries", -1)
	if err != nil {
		return nil, err
	}
	encoded, ok, err := decodeBulkString(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("decode summary payload: %w", err)
	}
	if !ok {
		return nil, ErrSummaryNotFound
	}
	var sum Summary
	if err := json.Unmarshal([]byte(encoded), &sum); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &sum, nil
}

func (s *UpstashRedisStore) messageRange(ctx context.Context, conversationID string, start, stop int) ([]*Message, error) {
	if _, err := s.conversationKey(conversationID); err != nil {
		return nil, err
	}
	resp, err := s.exec(ctx, "LRANGE", s.keyPrefix+conversationID+":messages", start, stop)
	if err != nil {
		return nil, err
	}
	var raw []string
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("decode LRANGE result: %w", err)
	}

	out := make([]*Message, 0, len(raw))
	for i, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message %d: %w", start+i, err)
		}
		m.Seq = int64(start + i + 1)
		out = append(out, &m)
	}
	return out, nil
}

func (s *UpstashRedisStore) putConversation(ctx context.Context, c *Conversation) error {
	key, err := s.conversationKey(c.ID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	cmd := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}
	_, err = s.exec(ctx, cmd...)
	return err
}

func (s *UpstashRedisStore) touch(ctx context.Context, key string) error {
	if s.ttl <= 0 {
		return nil
	}
	_, err := s.exec(ctx, "EXPIRE", key, ttlSeconds(s.ttl))
	return err
}

func (s *UpstashRedisStore) conversationKey(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrInvalidConversation
	}
	return s.keyPrefix + id, nil
}

func (s *UpstashRedisStore) exec(ctx context.Context, command ...any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis %v: %w", command[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("redis %v: %s", command[0], parsed.Error)
	}
	return &parsed, nil
}

// decodeBulkString reports ok=false for a nil reply.
func decodeBulkString(raw json.RawMessage) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, true, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
