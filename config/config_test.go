package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"RELAY_SOURCE_ADDR", "RELAY_SINK_ADDR",
		"RELAY_TURN_HOST", "RELAY_TURN_PORT", "RELAY_TURN_USER", "RELAY_TURN_PASS",
		"RELAY_LOG_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":9002", cfg.SourceAddr)
	assert.Equal(t, ":9003", cfg.SinkAddr)
	assert.Equal(t, "127.0.0.1", cfg.TURNHost)
	assert.Equal(t, "3478", cfg.TURNPort)
	assert.Equal(t, "relay", cfg.TURNUser)
	assert.Equal(t, "", cfg.TURNPass)
	assert.Equal(t, "relay.log", cfg.LogFile)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_SOURCE_ADDR", ":7000")
	t.Setenv("RELAY_TURN_HOST", "turn.example.com")
	t.Setenv("RELAY_TURN_PORT", "443")

	cfg := FromEnv()
	assert.Equal(t, ":7000", cfg.SourceAddr)
	assert.Equal(t, "turn:turn.example.com:443?transport=tcp", cfg.TURNURL())
}
