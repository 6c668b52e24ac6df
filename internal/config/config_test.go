package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.OrderExpiryWindow)
	assert.Equal(t, 10*time.Minute, cfg.PromotionWindow)
	assert.True(t, cfg.Points.Enabled)
	assert.Equal(t, 1000, cfg.Points.MinimumRedemption)
	assert.Equal(t, 50, cfg.Points.MaxRedemptionPercent)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("ORDER_EXPIRY_WINDOW", "48h")
	t.Setenv("POINTS_ENABLED", "false")
	t.Setenv("POINTS_MIN_REDEMPTION", "500")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 48*time.Hour, cfg.OrderExpiryWindow)
	assert.False(t, cfg.Points.Enabled)
	assert.Equal(t, 500, cfg.Points.MinimumRedemption)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TX_TIMEOUT", "soon")
	t.Setenv("POINTS_EARN_RATE_PCT", "one")

	cfg := Load()

	assert.Equal(t, 3*time.Second, cfg.TxTimeout)
	assert.Equal(t, 1, cfg.Points.EarnRatePercent)
}
