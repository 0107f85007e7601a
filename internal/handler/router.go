package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/chat-chain/internal/middleware"
	"github.com/capitalize-ai/chat-chain/internal/service"
	"github.com/capitalize-ai/chat-chain/pkg/logger"
)

// RouterConfig holds the router dependencies and HTTP policies.
type RouterConfig struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Knowledge     KnowledgeWriter
	Checks        map[string]Checker
	Logger        *logger.Logger

	JWTSecret      string
	RequiredScope  string
	KnowledgeScope string
	AllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	TurnRateLimit     int
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Global()
	}

	healthHandler := NewHealthHandler(cfg.Checks)
	conversationHandler := NewConversationHandler(cfg.Conversations, log)
	messageHandler := NewMessageHandler(cfg.Messages, cfg.Conversations, log)
	streamHandler := NewStreamHandler(cfg.Messages, cfg.Conversations, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RequiredScope != "" {
			r.Use(middleware.RequireScope(cfg.RequiredScope))
		}
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Delete("/", conversationHandler.Delete)
				r.Get("/messages", messageHandler.List)

				// Per-user limit on turns.
				r.Group(func(r chi.Router) {
					if cfg.TurnRateLimit > 0 {
						r.Use(middleware.UserRateLimit(cfg.TurnRateLimit, cfg.RateLimitWindow))
					}
					r.Post("/messages", messageHandler.Send)
					r.Post("/stream", streamHandler.StreamWithMessage)
				})
			})
		})

		// Ingestion is mounted only when a writer is configured.
		if cfg.Knowledge != nil {
			knowledgeHandler := NewKnowledgeHandler(cfg.Knowledge, log)
			r.Route("/knowledge", func(r chi.Router) {
				if cfg.KnowledgeScope != "" {
					r.Use(middleware.RequireScope(cfg.KnowledgeScope))
				}
				r.Post("/{collection}/parts", knowledgeHandler.AddParts)
				r.Put("/tags/{tag}", knowledgeHandler.SetTagPrompt)
			})
		}
	})

	return r
}
