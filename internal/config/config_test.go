package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Empty(t, cfg.ChatModel)
	assert.Empty(t, cfg.ClassificationModel)
	assert.Zero(t, cfg.ClassificationMaxTokens)
	assert.Equal(t, "gpt-3.5-turbo", cfg.TokenModel)
	assert.InDelta(t, 0.80, cfg.KnowledgeBar, 1e-9)
	assert.Equal(t, 5, cfg.MaxKnowledge)
	assert.Equal(t, "knowledge", cfg.KnowledgeCollection)
	assert.Equal(t, 2500, cfg.PromptCap)
	assert.Equal(t, 4096, cfg.ContextWindow)
	assert.Equal(t, 500, cfg.MaxResponse)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	t.Setenv("KNOWLEDGE_BAR", "0.65")
	t.Setenv("MAX_KNOWLEDGE", "8")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "sk-ant", cfg.APIKey())
	assert.InDelta(t, 0.65, cfg.KnowledgeBar, 1e-9)
	assert.Equal(t, 8, cfg.MaxKnowledge)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_KNOWLEDGE", "many")
	t.Setenv("KNOWLEDGE_BAR", "high")
	t.Setenv("SESSION_TTL", "forever")
	t.Setenv("TRACING_ENABLED", "perhaps")
	t.Setenv("CORS_ALLOWED_ORIGINS", " , ")

	cfg := Load()

	assert.Equal(t, 5, cfg.MaxKnowledge)
	assert.InDelta(t, 0.80, cfg.KnowledgeBar, 1e-9)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.TracingEnabled)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadAnthropicLeavesModelsToProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg := Load()

	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, "sk-ant", cfg.APIKey())
	assert.Empty(t, cfg.ChatModel)
	assert.Empty(t, cfg.ClassificationModel)

	t.Setenv("CHAT_MODEL", "claude-3-5-sonnet-20241022")
	t.Setenv("CLASSIFICATION_MODEL", "claude-3-5-haiku-20241022")
	t.Setenv("CLASSIFICATION_MAX_TOKENS", "64")

	cfg = Load()

	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.ChatModel)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.ClassificationModel)
	assert.Equal(t, 64, cfg.ClassificationMaxTokens)
}
