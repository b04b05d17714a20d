// Package config loads dashboard configuration from .env, an optional
// config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AI providers.
const (
	ProviderOrchestrator = "orchestrator"
	ProviderAnthropic    = "anthropic"
	ProviderNone         = "none"
)

var (
	ErrInvalidPort     = errors.New("port must be between 1 and 65535")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrUnknownProvider = errors.New("unknown ai provider")
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	RPC      RPCConfig      `mapstructure:"rpc"`
	Poll     PollConfig     `mapstructure:"poll"`
	AI       AIConfig       `mapstructure:"ai"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	GRPCPort int    `mapstructure:"grpc_port"`
	Debug    bool   `mapstructure:"debug"`
}

// Addr is the HTTP listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCAddr is the gRPC listen address.
func (s ServerConfig) GRPCAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort) }

type RPCConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Retries  int           `mapstructure:"retries"`
}

type PollConfig struct {
	Tick   time.Duration `mapstructure:"tick"`
	Stats  time.Duration `mapstructure:"stats"`
	Health time.Duration `mapstructure:"health"`
}

type AIConfig struct {
	Provider         string        `mapstructure:"provider"`
	OrchestratorURL  string        `mapstructure:"orchestrator_url"`
	AnthropicAPIKey  string        `mapstructure:"anthropic_api_key"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	MaxNewTokens     int           `mapstructure:"max_new_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
	ResponseCacheTTL time.Duration `mapstructure:"response_cache_ttl"`
	Workers          int           `mapstructure:"workers"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration. Missing .env and config files are not errors.
func Load(configPaths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{".", "./config"}
	}
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.debug", false)

	v.SetDefault("rpc.url", "https://rpc.qubic.org/v1")
	v.SetDefault("rpc.timeout", 10*time.Second)
	v.SetDefault("rpc.cache_ttl", 3*time.Second)
	v.SetDefault("rpc.retries", 3)

	v.SetDefault("poll.tick", 5*time.Second)
	v.SetDefault("poll.stats", 30*time.Second)
	v.SetDefault("poll.health", 10*time.Second)

	v.SetDefault("ai.provider", ProviderOrchestrator)
	v.SetDefault("ai.orchestrator_url", "http://vm-1:5000")
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.retry_attempts", 2)
	v.SetDefault("ai.max_new_tokens", 200)
	v.SetDefault("ai.temperature", 0.6)
	v.SetDefault("ai.response_cache_ttl", 300*time.Second)
	v.SetDefault("ai.workers", 5)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.queue", "analysis_tasks")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate checks the values Load cannot default away.
func (c *Config) Validate() error {
	for _, p := range []int{c.Server.Port, c.Server.GRPCPort} {
		if p < 1 || p > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPort, p)
		}
	}
	durations := map[string]time.Duration{
		"rpc.timeout":   c.RPC.Timeout,
		"rpc.cache_ttl": c.RPC.CacheTTL,
		"poll.tick":     c.Poll.Tick,
		"poll.stats":    c.Poll.Stats,
		"poll.health":   c.Poll.Health,
		"ai.timeout":    c.AI.Timeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidDuration, name)
		}
	}
	switch c.AI.Provider {
	case ProviderOrchestrator, ProviderAnthropic, ProviderNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.AI.Provider)
	}
	return nil
}
