package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ADMIN_IDS", "")
	t.Setenv("REQUIRED_CHANNELS", "")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PAYOUT_CURRENCY", "USDT")
	t.Setenv("PAYOUT_INTERVAL", "")
	t.Setenv("MEMBERSHIP_TIMEOUT", "")
	t.Setenv("XROCKET_API_KEY", "")

	cfg := LoadConfig()

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "USDT", cfg.Currency)
	assert.Equal(t, time.Minute, cfg.PayoutEvery)
	assert.Equal(t, 5*time.Second, cfg.MembershipTimeout)
	assert.Empty(t, cfg.Channels)
	assert.False(t, cfg.PayoutEnabled())
}

func TestLoadConfigParsesLists(t *testing.T) {
	t.Setenv("ADMIN_IDS", "42, 7,oops")
	t.Setenv("REQUIRED_CHANNELS", "@news, -1001234 ,")
	t.Setenv("PAYOUT_INTERVAL", "30s")
	t.Setenv("MEMBERSHIP_TIMEOUT", "nonsense")
	t.Setenv("XROCKET_API_KEY", "secret")
	t.Setenv("LOG_PRODUCTION", "true")

	cfg := LoadConfig()

	assert.Equal(t, []int64{42, 7}, cfg.AdminIDs)
	assert.Equal(t, []string{"@news", "-1001234"}, cfg.Channels)
	assert.Equal(t, 30*time.Second, cfg.PayoutEvery)
	assert.Equal(t, 5*time.Second, cfg.MembershipTimeout)
	assert.True(t, cfg.PayoutEnabled())
	assert.True(t, cfg.LogProduction)
	assert.True(t, cfg.IsAdmin(7))
	assert.False(t, cfg.IsAdmin(8))
}
