package memory

import (
	"context"
	"fmt"
	"strings"

	qstashx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/pkg/qstash"
	"github.com/rs/zerolog/log"
)

// Scheduler runs or enqueues summarization once a turn has been persisted.
type Scheduler interface {
	Schedule(ctx context.Context, conversationID string, messageCount int) error
}

// InlineScheduler summarizes synchronously on the calling goroutine.
type InlineScheduler struct {
	Manager   *Manager
	Threshold int
}

func (s InlineScheduler) Schedule(ctx context.Context, conversationID string, _ int) error {
	_, err := s.Manager.Summarize(ctx, conversationID, s.Threshold)
	return err
}

// SummarizeJob is the QStash payload delivered to the summarize callback.
type SummarizeJob struct {
	ConversationID string `json:"conversation_id"`
	Threshold      int    `json:"threshold,omitempty"`
}

type publisher interface {
	Publish(ctx context.Context, destination string, body any, opts qstashx.PublishOptions) (string, error)
}

// QStashScheduler hands summarization to QStash, which calls back into
// CallbackURL with {id} replaced by the conversation id.
type QStashScheduler struct {
	Client      publisher
	CallbackURL string
	Threshold   int
}

func NewQStashScheduler(client *qstashx.Client, callbackURL string, threshold int) *QStashScheduler {
	return &QStashScheduler{Client: client, CallbackURL: callbackURL, Threshold: threshold}
}

func (s *QStashScheduler) Schedule(ctx context.Context, conversationID string, messageCount int) error {
	dest := strings.ReplaceAll(s.CallbackURL, "{id}", conversationID)
	// One job per conversation length, so a retried turn does not enqueue twice.
	dedup := fmt.Sprintf("summarize-%s-%d", conversationID, messageCount)
	id, err := s.Client.Publish(ctx, dest, SummarizeJob{ConversationID: conversationID, Threshold: s.Threshold}, qstashx.PublishOptions{
		DeduplicationID: dedup,
	})
	if err != nil {
		return err
	}
	log.Debug().Str("conversation_id", conversationID).Str("qstash_message_id", id).Msg("summarization enqueued")
	return nil
}
