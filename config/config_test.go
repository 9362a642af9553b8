package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"POS_LISTEN_ADDR", "POS_DB_PATH", "POS_REMOTE_URL", "POS_SYNC_INTERVAL",
		"POS_SYNC_DEBOUNCE", "POS_SYNC_TIMEOUT", "POS_SYNC_CONCURRENCY",
		"POS_REMOTE_RPS", "POS_ORDER_RETENTION", "POS_TIMEZONE",
	} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "posledger.db", cfg.DBPath)
	assert.False(t, cfg.SyncEnabled())
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, 2*time.Second, cfg.SyncDebounce)
	assert.Equal(t, 10*time.Second, cfg.SyncTimeout)
	assert.Equal(t, 4, cfg.SyncConcurrency)
	assert.Equal(t, 5.0, cfg.RemoteRPS)
	assert.Equal(t, 500, cfg.OrderRetention)
	assert.Equal(t, time.Local, cfg.Location)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("POS_REMOTE_URL", "http://hq.example/api")
	t.Setenv("POS_SYNC_INTERVAL", "1m")
	t.Setenv("POS_SYNC_CONCURRENCY", "8")
	t.Setenv("POS_REMOTE_RPS", "2.5")
	t.Setenv("POS_TIMEZONE", "UTC")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.SyncEnabled())
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.Equal(t, 8, cfg.SyncConcurrency)
	assert.Equal(t, 2.5, cfg.RemoteRPS)
	assert.Equal(t, "UTC", cfg.Location.String())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"POS_SYNC_INTERVAL":    "soon",
		"POS_SYNC_TIMEOUT":     "-1s",
		"POS_SYNC_CONCURRENCY": "0",
		"POS_ORDER_RETENTION":  "lots",
		"POS_REMOTE_RPS":       "fast",
		"POS_TIMEZONE":         "Mars/Olympus",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := FromEnv()
			assert.ErrorContains(t, err, k)
		})
	}
}
