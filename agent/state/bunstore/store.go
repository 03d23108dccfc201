// Package bunstore persists conversations in Postgres through bun.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"10s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
}

func Open(cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
		pgdriver.WithReadTimeout(cfg.ReadTimeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

type Store struct {
	db  *bun.DB
	now func() time.Time
}

var _ statex.Store = (*Store)(nil)

func New(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// CreateSchema creates the three tables when missing.
func (s *Store) CreateSchema(ctx context.Context) error {
	models := []any{(*conversationRow)(nil), (*messageRow)(nil), (*summaryRow)(nil)}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	_, err := s.db.NewCreateIndex().
		Model((*messageRow)(nil)).
		Index("messages_conversation_seq_idx").
		Unique().
		IfNotExists().
		Column("conversation_id", "seq").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}
	return nil
}

func (s *Store) CreateConversation(ctx context.Context, c *statex.Conversation) error {
	if c == nil || strings.TrimSpace(c.ID) == "" {
		return statex.ErrInvalidConversation
	}
	row := fromConversation(c)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*statex.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, statex.ErrInvalidConversation
	}
	row := new(conversationRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, statex.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	return row.toConversation(), nil
}

// AppendMessage locks the conversation row so seq assignment stays gap free.
func (s *Store) AppendMessage(ctx context.Context, m *statex.Message) error {
	if m == nil {
		return statex.ErrNilRecord
	}
	if strings.TrimSpace(m.ConversationID) == "" {
		return statex.ErrInvalidConversation
	}
	now := s.now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		conv := new(conversationRow)
		err := tx.NewSelect().Model(conv).Where("id = ?", m.ConversationID).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return statex.ErrConversationNotFound
		}
		if err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}

		m.Seq = int64(conv.MessageCount + 1)
		row := fromMessage(m)
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		m.ID = row.ID

		_, err = tx.NewUpdate().Model((*conversationRow)(nil)).
			Set("message_count = message_count + 1").
			Set("last_message_at = ?", m.CreatedAt).
			Set("updated_at = ?", now).
			Where("id = ?", m.ConversationID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update conversation counters: %w", err)
		}
		return nil
	})
}

func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]*statex.Message, error) {
	var rows []messageRow
	q := s.db.NewSelect().Model(&rows).Where("conversation_id = ?", conversationID).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select recent messages: %w", err)
	}
	out := make([]*statex.Message, len(rows))
	for i := range rows {
		out[len(rows)-1-i] = rows[i].toMessage()
	}
	return out, nil
}

func (s *Store) MessagesFrom(ctx context.Context, conversationID string, offset, limit int) ([]*statex.Message, error) {
	var rows []messageRow
	q := s.db.NewSelect().Model(&rows).Where("conversation_id = ?", conversationID).Order("seq ASC").Offset(max(offset, 0))
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	out := make([]*statex.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toMessage()
	}
	return out, nil
}

func (s *Store) CountMessages(ctx context.Context, conversationID string) (int, error) {
	n, err := s.db.NewSelect().Model((*messageRow)(nil)).Where("conversation_id = ?", conversationID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *Store) SaveSummary(ctx context.Context, sum *statex.Summary) error {
	if sum == nil {
		return statex.ErrNilRecord
	}
	if strings.TrimSpace(sum.ConversationID) == "" {
		return statex.ErrInvalidConversation
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = s.now().UTC()
	}
	row := fromSummary(sum)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	sum.ID = row.ID
	return nil
}

func (s *Store) LatestSummary(ctx context.Context, conversationID string) (*statex.Summary, error) {
	row := new(summaryRow)
	err := s.db.NewSelect().Model(row).
		Where("conversation_id = ?", conversationID).
		OrderExpr("messages_summarized DESC, created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, statex.ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select latest summary: %w", err)
	}
	return row.toSummary(), nil
}
