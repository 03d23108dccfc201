package llm

import (
	"context"
	"errors"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

type retryGateway struct {
	next     contractx.CompletionGateway
	attempts uint
	initial  time.Duration
}

// WithRetry retries failed calls with exponential backoff starting at
// initial. Only opening a stream is retried; errors raised mid-stream reach
// the caller unchanged.
func WithRetry(next contractx.CompletionGateway, attempts int, initial time.Duration) contractx.CompletionGateway {
	if attempts < 1 {
		attempts = 1
	}
	return &retryGateway{next: next, attempts: uint(attempts), initial: initial}
}

func (r *retryGateway) Complete(ctx context.Context, req contractx.CompletionRequest) (*schema.Message, error) {
	return retry(ctx, r, func() (*schema.Message, error) {
		return r.next.Complete(ctx, req)
	})
}

func (r *retryGateway) CompleteStream(ctx context.Context, req contractx.CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	return retry(ctx, r, func() (*schema.StreamReader[*schema.Message], error) {
		return r.next.CompleteStream(ctx, req)
	})
}

func retry[T any](ctx context.Context, r *retryGateway, call func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	if r.initial > 0 {
		policy.InitialInterval = r.initial
	}

	return backoff.Retry(ctx, func() (T, error) {
		out, err := call()
		if err != nil && !retryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("backoff", wait).Msg("llm call failed, retrying")
		}),
	)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, contractx.ErrValidation), errors.Is(err, contractx.ErrConfiguration):
		return false
	}
	return true
}
