package nlp

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	promptx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/prompt"
	cachex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/pkg/cache"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/tidwall/gjson"
)

const (
	DefaultModel    = "openai/gpt-4o-mini"
	defaultCacheTTL = 10 * time.Minute
	cacheKeyPrefix  = "nlp:v1:"
	temperature     = float32(0.1)
)

// Per-task completion budgets.
const (
	intentMaxTokens    = 200
	entitiesMaxTokens  = 500
	sentimentMaxTokens = 200
	queryMaxTokens     = 300
)

// Preprocessor fans a message out to the intent, entity, sentiment and query
// classifiers and merges their results. A failing classifier degrades to its
// neutral default without affecting the others.
type Preprocessor struct {
	gateway      contractx.CompletionGateway
	model        string
	parseQueries bool
	cache        *cachex.Cache
	cacheTTL     time.Duration
}

type Option func(*Preprocessor)

func WithModel(model string) Option {
	return func(p *Preprocessor) {
		if strings.TrimSpace(model) != "" {
			p.model = model
		}
	}
}

// WithQueryParsing toggles the structured query classifier.
func WithQueryParsing(enabled bool) Option {
	return func(p *Preprocessor) { p.parseQueries = enabled }
}

// WithCache memoises complete, non-degraded results for ttl.
func WithCache(c *cachex.Cache, ttl time.Duration) Option {
	return func(p *Preprocessor) {
		p.cache = c
		if ttl > 0 {
			p.cacheTTL = ttl
		}
	}
}

var _ contractx.Classifier = (*Preprocessor)(nil)

func New(gateway contractx.CompletionGateway, opts ...Option) *Preprocessor {
	p := &Preprocessor{
		gateway:      gateway,
		model:        DefaultModel,
		parseQueries: true,
		cacheTTL:     defaultCacheTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Preprocessor) Classify(ctx context.Context, text string) contractx.ClassificationResult {
	key := cacheKeyPrefix + strings.ToLower(strings.TrimSpace(text))
	if cached, ok := p.cached(ctx, key); ok {
		return cached
	}

	res := Fallback()
	var (
		degraded atomic.Bool
		wg       conc.WaitGroup
	)
	fail := func(task string, err error) {
		degraded.Store(true)
		log.Warn().Err(err).Str("task", task).Msg("nlp classifier degraded to fallback")
	}

	wg.Go(func() {
		intent, err := p.classifyIntent(ctx, text)
		if err != nil {
			fail(promptx.TaskIntent, err)
			res.Intent.Reasoning = "classification failed: " + err.Error()
			return
		}
		res.Intent = intent
	})
	wg.Go(func() {
		entities, err := p.extractEntities(ctx, text)
		if err != nil {
			fail(promptx.TaskEntities, err)
			return
		}
		res.Entities = entities
	})
	wg.Go(func() {
		sentiment, err := p.analyzeSentiment(ctx, text)
		if err != nil {
			fail(promptx.TaskSentiment, err)
			return
		}
		res.Sentiment = sentiment
	})
	if p.parseQueries {
		wg.Go(func() {
			query, err := p.parseQuery(ctx, text)
			if err != nil {
				fail(promptx.TaskQuery, err)
				return
			}
			res.Query = query
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		degraded.Store(true)
		log.Error().Str("panic", r.String()).Msg("nlp classifier panicked")
	}

	if !degraded.Load() {
		p.store(ctx, key, res)
	}
	return res
}

// Fallback is the result used when every classifier fails.
func Fallback() contractx.ClassificationResult {
	return contractx.ClassificationResult{
		Intent:    contractx.Intent{Name: contractx.IntentGeneralChat, Confidence: 0},
		Entities:  []contractx.Entity{},
		Sentiment: neutralSentiment(),
	}
}

func (p *Preprocessor) classifyIntent(ctx context.Context, text string) (contractx.Intent, error) {
	r, err := p.ask(ctx, promptx.TaskIntent, intentMaxTokens, map[string]any{
		"intents": bulleted(Intents),
		"message": text,
	})
	if err != nil {
		return contractx.Intent{}, err
	}
	intent, known := parseIntent(r)
	if !known {
		log.Warn().Str("raw", r.Get("intent").String()).Msg("intent outside taxonomy, using general_chat")
	}
	return intent, nil
}

func (p *Preprocessor) extractEntities(ctx context.Context, text string) ([]contractx.Entity, error) {
	r, err := p.ask(ctx, promptx.TaskEntities, entitiesMaxTokens, map[string]any{
		"entity_types": bulleted(EntityTypes),
		"message":      text,
	})
	if err != nil {
		return nil, err
	}
	entities, dropped := parseEntities(r)
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("entities outside taxonomy dropped")
	}
	return entities, nil
}

func (p *Preprocessor) analyzeSentiment(ctx context.Context, text string) (contractx.Sentiment, error) {
	r, err := p.ask(ctx, promptx.TaskSentiment, sentimentMaxTokens, map[string]any{"message": text})
	if err != nil {
		return contractx.Sentiment{}, err
	}
	return parseSentiment(r), nil
}

func (p *Preprocessor) parseQuery(ctx context.Context, text string) (*contractx.ParsedQuery, error) {
	r, err := p.ask(ctx, promptx.TaskQuery, queryMaxTokens, map[string]any{"message": text})
	if err != nil {
		return nil, err
	}
	return parseQuery(r), nil
}

func (p *Preprocessor) ask(ctx context.Context, task string, maxTokens int, vars map[string]any) (gjson.Result, error) {
	msgs, err := promptx.Render(ctx, task, vars)
	if err != nil {
		return gjson.Result{}, err
	}
	temp := temperature
	resp, err := p.gateway.Complete(ctx, contractx.CompletionRequest{
		Messages:    msgs,
		Model:       p.model,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return jsonObject(resp.Content)
}

func (p *Preprocessor) cached(ctx context.Context, key string) (contractx.ClassificationResult, bool) {
	if p.cache == nil {
		return contractx.ClassificationResult{}, false
	}
	raw, ok := p.cache.Get(ctx, key)
	if !ok {
		return contractx.ClassificationResult{}, false
	}
	var res contractx.ClassificationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		p.cache.Delete(ctx, key)
		return contractx.ClassificationResult{}, false
	}
	return res, true
}

func (p *Preprocessor) store(ctx context.Context, key string, res contractx.ClassificationResult) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	p.cache.Set(ctx, key, raw, p.cacheTTL)
}
