package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, NodeTypeAPIGateway, cfg.NodeType)
	assert.Equal(t, 30*time.Second, cfg.RPC.ResponseTimeout)
	assert.Equal(t, 60*time.Second, cfg.RPC.MessageExpiration)
	assert.Equal(t, 3, cfg.RPC.Retries)
	assert.Equal(t, 5*time.Minute, cfg.Presence.SweepInterval)
	assert.Equal(t, 60*time.Minute, cfg.Presence.SyncInterval)
	assert.Equal(t, time.Minute, cfg.Presence.GateInterval)
}

func TestMessageExpirationNeverBelowResponseTimeout(t *testing.T) {
	t.Setenv("AP_RPC_RESPONSE_TIMEOUT", "90s")
	t.Setenv("AP_RPC_MESSAGE_EXPIRATION", "60s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.RPC.ResponseTimeout)
	assert.GreaterOrEqual(t, cfg.RPC.MessageExpiration, cfg.RPC.ResponseTimeout)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AP_NODE_TYPE", NodeTypeAuthNode)
	t.Setenv("AP_REDIS_ADDR", "10.0.0.1:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, NodeTypeAuthNode, cfg.NodeType)
	assert.Equal(t, "10.0.0.1:6379", cfg.Redis.Addr)
}
