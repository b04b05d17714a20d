// Package app wires configuration into the collaborators shared by the
// dashboard binaries.
package app

import (
	"time"

	"github.com/stywzn/qdashboard/internal/config"
	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/qubic"
	"github.com/stywzn/qdashboard/pkg/ai"
	"github.com/stywzn/qdashboard/pkg/cache"
	"github.com/stywzn/qdashboard/pkg/resilience"
)

const redisPrefix = "qdashboard:"

// Logger builds the process logger from cfg.
func Logger(cfg config.LogConfig) (logger.Logger, error) {
	return logger.New(logger.Config{Level: cfg.Level, Development: cfg.Development})
}

// Cache returns a Redis-backed cache when an address is configured, else an
// in-process one. The close func is always safe to call.
func Cache(cfg config.RedisConfig, log logger.Logger) (cache.Cache, func()) {
	if cfg.Address == "" {
		log.Info("redis not configured, using in-memory cache")
		return cache.NewMemory(), func() {}
	}
	client, err := cache.NewRedisClient(cache.RedisConfig{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		log.Warn("redis unavailable, using in-memory cache",
			logger.String("address", cfg.Address), logger.Error(err))
		return cache.NewMemory(), func() {}
	}
	log.Info("redis cache connected", logger.String("address", cfg.Address))
	return cache.NewRedis(client, redisPrefix), func() { _ = client.Close() }
}

// QubicClient builds the upstream RPC client with retries.
func QubicClient(cfg config.RPCConfig) *qubic.Client {
	retry := resilience.DefaultRetryConfig()
	if cfg.Retries > 0 {
		retry.MaxAttempts = cfg.Retries
	}
	return qubic.NewClient(cfg.URL, cfg.Timeout, qubic.WithRetry(retry))
}

// Generator selects the model backend. A misconfigured backend degrades to
// ai.Unavailable rather than failing startup.
func Generator(cfg config.AIConfig, log logger.Logger) ai.Generator {
	switch cfg.Provider {
	case config.ProviderOrchestrator:
		if cfg.OrchestratorURL == "" {
			log.Warn("orchestrator url empty, ai disabled")
			return ai.Unavailable{}
		}
		return ai.NewOrchestratorClient(cfg.OrchestratorURL, cfg.Timeout, cfg.RetryAttempts)
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			log.Warn("anthropic api key empty, ai disabled")
			return ai.Unavailable{}
		}
		return ai.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.Model, cfg.Timeout)
	default:
		return ai.Unavailable{}
	}
}

// Engine builds the AI engine for cfg over c.
func Engine(cfg config.AIConfig, c cache.Cache, log logger.Logger) *ai.Engine {
	gen := Generator(cfg, log)
	log.Info("ai engine configured", logger.String("provider", gen.Name()))
	return ai.NewEngine(gen, c, ai.Config{
		MaxTokens:   cfg.MaxNewTokens,
		Temperature: cfg.Temperature,
		CacheTTL:    cfg.ResponseCacheTTL,
		Cooldown:    30 * time.Second,
	}, log)
}
