package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"MATCH_FEE", "MATCH_REQUEST_TTL", "MATCH_REFUND_ON_EXPIRY", "STORE_BACKEND"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, int64(300), cfg.Match.Fee)
	assert.Equal(t, 20, cfg.Match.MinMessageLength)
	assert.Equal(t, 72*time.Hour, cfg.Match.RequestTTL)
	assert.False(t, cfg.Match.RefundOnExpiry)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "coins:balance:", cfg.BalanceChannelPrefix)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MATCH_FEE", "150")
	t.Setenv("MATCH_REQUEST_TTL", "30m")
	t.Setenv("MATCH_REFUND_ON_EXPIRY", "true")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("WORKERS", "not-a-number")

	cfg := Load()
	assert.Equal(t, int64(150), cfg.Match.Fee)
	assert.Equal(t, 30*time.Minute, cfg.Match.RequestTTL)
	assert.True(t, cfg.Match.RefundOnExpiry)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 4, cfg.Workers)
}
