package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	orchestratorx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/agents/orchestrator"
	specialistx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/agents/specialist"
	llmx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/llm"
	memoryx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/memory"
	nlpx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/nlp"
	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
	"github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state/bunstore"
	toolx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/tool"
	cachex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/pkg/cache"
	configx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/pkg/config"
	_ "github.com/AakashRaj-AidenAi/wealth-navigator-ai/pkg/logger/autoload"
	qstashx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/pkg/qstash"
	"github.com/AakashRaj-AidenAi/wealth-navigator-ai/transport/httpapi"
	"github.com/rs/zerolog/log"
)

const (
	storeMemory   = "memory"
	storeUpstash  = "upstash"
	storePostgres = "postgres"

	summarizeInline = "inline"
	summarizeQStash = "qstash"
)

type AppConfig struct {
	ListenAddr    string        `split_words:"true" default:":8080"`
	PublicURL     string        `split_words:"true"`
	StoreBackend  string        `split_words:"true" default:"memory"`
	MemoryWindow  int           `split_words:"true" default:"20"`
	ParseQueries  bool          `split_words:"true" default:"true"`
	CacheTTL      time.Duration `split_words:"true" default:"10m"`
	CacheMaxBytes int64         `split_words:"true" default:"8388608"`
	SummarizeMode string        `split_words:"true" default:"inline"`
	// SummarizeCallbackURL is the QStash destination; {id} becomes the
	// conversation id.
	SummarizeCallbackURL string `split_words:"true"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("wealth navigator stopped")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")

	gateway, err := llmx.NewGateway(ctx, *llmCfg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, appCfg.StoreBackend)
	if err != nil {
		return err
	}
	defer closeStore()

	memory := memoryx.NewManager(store, gateway,
		memoryx.WithWindow(appCfg.MemoryWindow),
		memoryx.WithSummaryModel(llmCfg.SummaryModel),
	)

	nlpOpts := []nlpx.Option{
		nlpx.WithModel(llmCfg.NLPModel),
		nlpx.WithQueryParsing(appCfg.ParseQueries),
	}
	if appCfg.CacheTTL > 0 {
		cache, err := cachex.New(appCfg.CacheMaxBytes)
		if err != nil {
			return fmt.Errorf("create classification cache: %w", err)
		}
		defer cache.Close()
		nlpOpts = append(nlpOpts, nlpx.WithCache(cache, appCfg.CacheTTL))
	}
	preprocessor := nlpx.New(gateway, nlpOpts...)

	agents := specialistx.NewRegistry()
	builder := toolx.NewBuilder()
	if err := toolx.RegisterBuiltins(builder); err != nil {
		return err
	}
	if err := specialistx.RegisterDelegation(builder, agents); err != nil {
		return err
	}
	tools := builder.Build()
	log.Debug().Strs("tools", tools.Names()).Msg("tool registry built")
	if err := specialistx.NewCatalog(*llmCfg, tools, gateway, agents); err != nil {
		return err
	}

	orch, err := orchestratorx.New(agents)
	if err != nil {
		return err
	}

	handlers := &httpapi.Handlers{PublicURL: appCfg.PublicURL}
	var scheduler memoryx.Scheduler
	switch strings.ToLower(appCfg.SummarizeMode) {
	case summarizeQStash:
		if appCfg.SummarizeCallbackURL == "" {
			return errors.New("APP_SUMMARIZE_CALLBACK_URL is required for qstash summarization")
		}
		client := qstashx.MustNew(*configx.MustNew[qstashx.Config]("QSTASH"))
		scheduler = memoryx.NewQStashScheduler(client, appCfg.SummarizeCallbackURL, 0)
		handlers.Verifier = client
	case summarizeInline, "":
		scheduler = memoryx.InlineScheduler{Manager: memory}
	default:
		return fmt.Errorf("unknown summarize mode %q", appCfg.SummarizeMode)
	}

	svc, err := orchestratorx.NewService(memory, preprocessor, orch, orchestratorx.WithScheduler(scheduler))
	if err != nil {
		return err
	}
	handlers.Turns = svc

	srv := &http.Server{
		Addr:              appCfg.ListenAddr,
		Handler:           httpapi.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", appCfg.ListenAddr).Int("agents", len(agents.Agents())).
			Str("store", appCfg.StoreBackend).Str("summarize", appCfg.SummarizeMode).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, backend string) (statex.Store, func(), error) {
	switch strings.ToLower(backend) {
	case storeMemory, "":
		return statex.NewMemoryStore(), func() {}, nil
	case storeUpstash:
		cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case storePostgres:
		cfg := configx.MustNew[bunstore.Config]("POSTGRES")
		db, err := bunstore.Open(*cfg)
		if err != nil {
			return nil, nil, err
		}
		store := bunstore.New(db)
		if err := store.CreateSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
