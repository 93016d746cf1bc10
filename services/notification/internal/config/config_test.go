package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8005, cfg.HTTPPort)
	assert.Equal(t, "notification_db", cfg.PostgresDB)
	assert.Equal(t, "notification-service", cfg.ConsumerGroup)
	assert.Equal(t, 5*time.Second, cfg.WorkerInterval())
	assert.Equal(t, 50, cfg.WorkerBatch)

	policy := cfg.SendPolicy()
	assert.Equal(t, 100*time.Millisecond, policy.Backoff)
	assert.Equal(t, 5*time.Second, policy.MaxBackoff)
	assert.True(t, policy.Jitter)

	assert.True(t, cfg.ChannelEnabled(domain.ChannelPush))
	assert.True(t, cfg.ChannelEnabled(domain.ChannelEmail))
	assert.False(t, cfg.ChannelEnabled("sms"))
}

func TestLoad_RejectsInvertedBackoff(t *testing.T) {
	t.Setenv("NOVA_NOTIFICATION_SEND_BACKOFF_MS", "6000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send backoff")
}

func TestLoad_ChannelListFromEnv(t *testing.T) {
	t.Setenv("NOVA_NOTIFICATION_CHANNELS", "push")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ChannelEnabled(domain.ChannelPush))
	assert.False(t, cfg.ChannelEnabled(domain.ChannelEmail))
}

func TestLoad_ProductionRejectsDefaultPassword(t *testing.T) {
	t.Setenv("NOVA_ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
}
