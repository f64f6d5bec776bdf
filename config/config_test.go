package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/statarb/config"
)

func TestLoad_Full(t *testing.T) {
	cfg, err := config.Load("testdata/full.yaml")
	require.NoError(t, err)

	assert.Equal(t, "EWA", cfg.Pair.LegA.Ticker)
	assert.Equal(t, "adj_close", cfg.Pair.LegA.PriceColumn)
	assert.Equal(t, "USDCAD", cfg.Pair.FX["EWC"])
	assert.Equal(t, "USD", cfg.Pair.BaseCurrency)
	assert.Equal(t, "data/usdcad.csv", cfg.Data.Files["USDCAD"].Path)

	assert.False(t, cfg.Intercept())
	assert.True(t, cfg.Stationarity.Enforce)
	assert.InDelta(t, 0.1, cfg.Stationarity.MaxPValue, 1e-12)

	assert.Equal(t, []int{15, 30, 60}, cfg.Backtest.Windows)
	assert.InDelta(t, 2.5, cfg.Backtest.PerWindowNumStd[60], 1e-12)
	// fee: 0 explícito no se pisa con el default
	assert.Zero(t, cfg.Fee())
	assert.True(t, cfg.Backtest.SkipReentry)
	assert.Equal(t, 4, cfg.Backtest.Workers)

	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
	start, end, err := cfg.Range(time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Data.Provider)
	assert.Equal(t, "USD", cfg.Pair.BaseCurrency)
	assert.Equal(t, "1d", cfg.Pair.Interval)
	assert.True(t, cfg.Intercept())
	assert.InDelta(t, 0.05, cfg.Stationarity.MaxPValue, 1e-12)
	assert.Equal(t, []int{10, 20, 40}, cfg.Backtest.Windows)
	assert.InDelta(t, 1.5, cfg.Backtest.NumStd, 1e-12)
	assert.InDelta(t, 0.1, cfg.Fee(), 1e-12)
	assert.Equal(t, "statarb.db", cfg.Storage.DSN)
	assert.Equal(t, 90, cfg.Storage.RetentionDays)
	assert.Equal(t, "practice", cfg.OANDA.Environment)
	assert.Equal(t, 30*time.Second, cfg.OANDATimeout())
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())

	start, _, err := cfg.Range(time.Now())
	require.NoError(t, err)
	assert.True(t, start.IsZero())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OANDA_API_KEY", "secret")
	t.Setenv("STATARB_DSN", "/tmp/other.db")
	t.Setenv("API_PORT", "7000")

	cfg, err := config.Load("testdata/minimal.yaml")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "secret", cfg.OANDA.APIKey)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.DSN)
	assert.Equal(t, 7000, cfg.API.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backtest: [unclosed"), 0o644))
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"window too small", func(c *config.Config) { c.Backtest.Windows = []int{1, 20} }, "must be >= 2"},
		{"non-positive num_std", func(c *config.Config) { c.Backtest.NumStd = -1 }, "num_std"},
		{"negative fee", func(c *config.Config) { f := -0.5; c.Backtest.Fee = &f }, "fee"},
		{"bad per-window k", func(c *config.Config) { c.Backtest.PerWindowNumStd = map[int]float64{20: 0} }, "per_window_num_std"},
		{"unknown provider", func(c *config.Config) { c.Data.Provider = "bloomberg" }, "data.provider"},
		{"oanda without key", func(c *config.Config) { c.Data.Provider = "oanda"; c.OANDA.APIKey = "" }, "API key"},
		{"csv without path", func(c *config.Config) { c.Pair.LegB.Path = "" }, "needs a path"},
		{"missing leg", func(c *config.Config) { c.Pair.LegA.Ticker = "" }, "required"},
		{"start after end", func(c *config.Config) { c.Pair.Start = "2024-01-01"; c.Pair.End = "2023-01-01" }, "not before"},
		{"bad date", func(c *config.Config) { c.Pair.Start = "yesterday" }, "cannot parse"},
		{"p-value out of range", func(c *config.Config) { c.Stationarity.MaxPValue = 1.5 }, "max_p_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OANDA_API_KEY", "")
			cfg, err := config.Load("testdata/minimal.yaml")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
