package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:3000", cfg.Server.Addr())
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.GRPCAddr())
	assert.Equal(t, "https://rpc.qubic.org/v1", cfg.RPC.URL)
	assert.Equal(t, 3*time.Second, cfg.RPC.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Poll.Tick)
	assert.Equal(t, ProviderOrchestrator, cfg.AI.Provider)
	assert.Equal(t, 200, cfg.AI.MaxNewTokens)
	assert.InDelta(t, 0.6, cfg.AI.Temperature, 1e-9)
	assert.Equal(t, "analysis_tasks", cfg.RabbitMQ.Queue)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  port: 4000\nai:\n  provider: none\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	t.Setenv("SERVER_PORT", "5000")
	t.Setenv("RPC_CACHE_TTL", "7s")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, ProviderNone, cfg.AI.Provider)
	assert.Equal(t, 7*time.Second, cfg.RPC.CacheTTL)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	bad := *cfg
	bad.Server.Port = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPort)

	bad = *cfg
	bad.Poll.Tick = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDuration)

	bad = *cfg
	bad.AI.Provider = "gpt"
	assert.ErrorIs(t, bad.Validate(), ErrUnknownProvider)
}
