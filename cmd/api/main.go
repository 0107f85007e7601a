// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/internal/chain"
	"github.com/capitalize-ai/chat-chain/internal/config"
	"github.com/capitalize-ai/chat-chain/internal/handler"
	"github.com/capitalize-ai/chat-chain/internal/knowledge"
	"github.com/capitalize-ai/chat-chain/internal/llm"
	"github.com/capitalize-ai/chat-chain/internal/modes/chatty"
	natsclient "github.com/capitalize-ai/chat-chain/internal/nats"
	"github.com/capitalize-ai/chat-chain/internal/service"
	"github.com/capitalize-ai/chat-chain/internal/store"
	"github.com/capitalize-ai/chat-chain/pkg/logger"
	"github.com/capitalize-ai/chat-chain/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	newLogger := logger.New
	if cfg.LogFormat == "console" {
		newLogger = logger.NewDevelopment
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", zap.String("llm_provider", cfg.LLMProvider))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-chain", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	natsClient, err := natsclient.Connect(connectCtx, natsclient.Config{
		Name:     cfg.NATSName,
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	cancelConnect()
	if err != nil {
		log.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	// Ensure JetStream stream exists
	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Fatal("failed to ensure stream", zap.Error(err))
	}

	// Knowledge store
	db, err := store.NewGormDB(cfg.DatabaseDSN, store.PoolConfig{
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, log)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	if err := store.Migrate(ctx, db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	parts := store.NewPartStore(db)
	tagPrompts := store.NewCachedTagPrompts(store.NewTagPromptStore(db), cfg.TagPromptCacheTTL)

	// Initialize LLM clients
	embedder, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	if err != nil {
		log.Fatal("failed to create embedding client", zap.Error(err))
	}
	embedder.WithEmbeddingModel(cfg.EmbeddingModel)

	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), cfg.APIKey())
	if err != nil {
		log.Fatal("failed to create LLM client", zap.Error(err))
	}

	counter, err := llm.NewTokenCounter(cfg.TokenModel)
	if err != nil {
		log.Fatal("failed to create token counter", zap.String("model", cfg.TokenModel), zap.Error(err))
	}
	budget := llm.NewBudget(counter)
	budget.PromptCap = cfg.PromptCap
	budget.ContextWindow = cfg.ContextWindow
	budget.MaxResponse = cfg.MaxResponse

	// Knowledge augmentation
	composerCfg := knowledge.DefaultComposerConfig()
	composerCfg.Intro = chatty.Intro
	overrideString(&composerCfg.Intro, cfg.PromptIntro)
	overrideString(&composerCfg.KnowledgePrompt, cfg.PromptKnowledge)
	overrideString(&composerCfg.NoKnowledgePrompt, cfg.PromptNoKnowledge)
	overrideString(&composerCfg.EndingPrompt, cfg.PromptEnding)
	composerCfg.KnowledgeBar = cfg.KnowledgeBar

	ingester := knowledge.NewIngester(embedder, parts, tagPrompts, cfg.KnowledgeCollection, log)
	augmenter := knowledge.NewService(
		knowledge.NewMatcher(embedder, parts, knowledge.MatcherConfig{
			DefaultCollection: cfg.KnowledgeCollection,
			MaxKnowledge:      cfg.MaxKnowledge,
		}, log),
		knowledge.NewComposer(tagPrompts, composerCfg, log),
	)

	// Mode graph
	graph, err := chatty.NewGraph(service.NewCommentRecorder(streamManager, log), cfg.KnowledgeCollection)
	if err != nil {
		log.Fatal("invalid mode graph", zap.Error(err))
	}

	dispatcher := chain.NewDispatcher(llmClient, augmenter, chain.DispatcherConfig{
		Model:                   cfg.ClassificationModel,
		ClassificationMaxTokens: cfg.ClassificationMaxTokens,
	}, log)

	// Initialize services
	conversationSvc := service.NewConversationService(graph, cfg.SessionTTL, log)
	messageSvc := service.NewMessageService(conversationSvc, dispatcher, llmClient, budget, streamManager,
		service.MessageConfig{Model: cfg.ChatModel}, log)

	router := handler.NewRouter(handler.RouterConfig{
		Conversations: conversationSvc,
		Messages:      messageSvc,
		Knowledge:     ingester,
		Checks: map[string]handler.Checker{
			"nats": natsClient.Ping,
			"postgres": func(ctx context.Context) error {
				return store.Ping(ctx, db)
			},
		},
		Logger:            log,
		JWTSecret:         cfg.JWTSecret,
		RequiredScope:     cfg.JWTRequiredScope,
		KnowledgeScope:    cfg.KnowledgeScope,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		TurnRateLimit:     cfg.TurnRateLimit,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
