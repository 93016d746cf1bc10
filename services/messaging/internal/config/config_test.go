package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8004, cfg.HTTPPort)
	assert.Equal(t, "messaging_db", cfg.PostgresDB)
	assert.Equal(t, int64(1000), cfg.StreamMaxLen)
	assert.Equal(t, "messaging-service", cfg.FanoutGroup)
	assert.Equal(t, 24*time.Hour, cfg.Retention())
	assert.Equal(t, 30*24*time.Hour, cfg.SyncStateTTL())
}

func TestLoad_RejectsZeroStreamMaxLen(t *testing.T) {
	t.Setenv("NOVA_MESSAGING_STREAM_MAXLEN", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream maxlen")
}

func TestLoad_ProductionRejectsDefaultPassword(t *testing.T) {
	t.Setenv("NOVA_ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
}
