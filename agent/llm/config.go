package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	openrouterx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/pkg/openrouter"
)

const (
	BackendEino   = "eino"
	BackendOpenAI = "openai"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-4o"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"4096"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	Backend            string        `envconfig:"BACKEND" split_words:"true" default:"eino"`
	RetryAttempts      int           `envconfig:"RETRY_ATTEMPTS" split_words:"true" default:"3"`
	RetryBackoff       time.Duration `envconfig:"RETRY_BACKOFF" split_words:"true" default:"500ms"`

	NLPModel     string `envconfig:"NLP_MODEL" split_words:"true" default:"openai/gpt-4o-mini"`
	SummaryModel string `envconfig:"SUMMARY_MODEL" split_words:"true" default:"openai/gpt-4o-mini"`

	// Per-agent overrides, e.g. LLM_AGENT_MODELS=tax_optimizer:openai/gpt-4o,communications:openai/gpt-4o-mini
	AgentModels       map[string]string  `envconfig:"AGENT_MODELS" split_words:"true"`
	AgentTemperatures map[string]float32 `envconfig:"AGENT_TEMPERATURES" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrConfiguration)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrConfiguration)
	}
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", BackendEino, BackendOpenAI:
	default:
		return fmt.Errorf("%w: unsupported llm backend %q", contractx.ErrConfiguration, c.Backend)
	}
	return nil
}

// AgentModel returns the override configured for name, or fallback.
func (c Config) AgentModel(name, fallback string) string {
	if v := strings.TrimSpace(c.AgentModels[name]); v != "" {
		return v
	}
	return fallback
}

func (c Config) AgentTemperature(name string, fallback float32) float32 {
	if v, ok := c.AgentTemperatures[name]; ok && v >= 0 {
		return v
	}
	return fallback
}

func (c Config) openRouter() openrouterx.Config {
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(c.Model),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// NewGateway builds the completion gateway selected by Backend, wrapped with
// retries when RetryAttempts > 1.
func NewGateway(ctx context.Context, cfg Config) (contractx.CompletionGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orCfg := cfg.openRouter()
	var gw contractx.CompletionGateway
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendOpenAI:
		client := openrouterx.NewClient(orCfg)
		if client == nil {
			return nil, fmt.Errorf("%w: openai client requires an api key", contractx.ErrConfiguration)
		}
		gw = NewOpenAIGateway(client, orCfg.Model, WithDefaultMaxTokens(cfg.MaxCompletionToken))
	default:
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create chat model: %v", contractx.ErrModelInvoke, err)
		}
		gw = NewEinoGateway(chatModel)
	}

	if cfg.RetryAttempts > 1 {
		gw = WithRetry(gw, cfg.RetryAttempts, cfg.RetryBackoff)
	}
	return gw, nil
}
