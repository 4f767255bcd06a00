package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: an empty directory and no overrides
	dir := t.TempDir()

	// WHEN: loading
	cfg, err := config.Load(dir)

	// THEN: defaults apply
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 7, cfg.Booking.ExpiryWindowDays)
	assert.Equal(t, time.Hour, cfg.Sweep.Interval)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())

	fee, err := cfg.LateFee()
	require.NoError(t, err)
	assert.True(t, fee.Equal(decimal.NewFromInt(1000)))
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	// GIVEN: a config file and an environment override
	dir := t.TempDir()
	yaml := []byte(`
server:
  address: ":9090"
booking:
  expiry_window_days: 3
sweep:
  interval: 10m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("WAREHOUSE_SERVER_ADDRESS", ":7070")
	t.Setenv("WAREHOUSE_SHIPPING_LATE_FEE", "250.50")

	// WHEN: loading
	cfg, err := config.Load(dir)

	// THEN: the environment wins over the file, the file over defaults
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 3, cfg.Booking.ExpiryWindowDays)
	assert.Equal(t, 10*time.Minute, cfg.Sweep.Interval)

	fee, err := cfg.LateFee()
	require.NoError(t, err)
	assert.Equal(t, "250.5", fee.String())
}

func TestValidate(t *testing.T) {
	base, err := config.Load(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative window", func(c *config.Config) { c.Booking.ExpiryWindowDays = -1 }},
		{"no id attempts", func(c *config.Config) { c.Booking.IDAttempts = 0 }},
		{"zero sweep interval", func(c *config.Config) { c.Sweep.Interval = 0 }},
		{"bad late fee", func(c *config.Config) { c.Shipping.LateFee = "lots" }},
		{"negative late fee", func(c *config.Config) { c.Shipping.LateFee = "-5" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
