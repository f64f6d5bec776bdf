package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/statarb/config"
	"github.com/alejandrodnm/statarb/internal/adapters/csvdata"
	"github.com/alejandrodnm/statarb/internal/adapters/oanda"
	"github.com/alejandrodnm/statarb/internal/adapters/yahoo"
)

func testConfig() *config.Config {
	fee := 0.05
	return &config.Config{
		Pair: config.PairConfig{
			LegA:         config.LegConfig{Ticker: "EWA", Path: "ewa.csv"},
			LegB:         config.LegConfig{Ticker: "EWC", Path: "ewc.csv", Currency: "CAD", PriceColumn: "adj_close"},
			FX:           map[string]string{"EWC": "USDCAD"},
			BaseCurrency: "USD",
			Interval:     "1d",
			Start:        "2021-01-01",
			End:          "2022-01-01",
		},
		Data: config.DataConfig{
			Provider: "csv",
			Files:    map[string]config.LegConfig{"USDCAD": {Path: "usdcad.csv"}},
		},
		Stationarity: config.StationarityConfig{MaxPValue: 0.05},
		Backtest: config.BacktestConfig{
			Windows:         []int{10, 20},
			NumStd:          1.5,
			PerWindowNumStd: map[int]float64{20: 2},
			Fee:             &fee,
			Workers:         3,
			SkipReentry:     true,
		},
	}
}

func TestCSVFiles(t *testing.T) {
	files := csvFiles(testConfig())
	require.Len(t, files, 3)
	assert.Equal(t, "ewa.csv", files["EWA"].Path)
	assert.Equal(t, "adj_close", files["EWC"].PriceColumn)
	assert.Equal(t, "CAD", files["EWC"].Currency)
	assert.Equal(t, "usdcad.csv", files["USDCAD"].Path)
}

func TestBuildProvider(t *testing.T) {
	cfg := testConfig()

	p, err := buildProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &csvdata.Provider{}, p)

	cfg.Data.Provider = "yahoo"
	p, err = buildProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &yahoo.Provider{}, p)

	cfg.Data.Provider = "oanda"
	cfg.OANDA = config.OANDAConfig{APIKey: "k", Environment: "practice", TimeoutSeconds: 5}
	p, err = buildProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &oanda.Provider{}, p)

	cfg.Data.Provider = "nope"
	_, err = buildProvider(cfg)
	assert.Error(t, err)
}

func TestPipelineConfig(t *testing.T) {
	pc, err := pipelineConfig(testConfig())
	require.NoError(t, err)

	assert.Equal(t, "EWA", pc.Pair.LegA)
	assert.Equal(t, "USDCAD", pc.Pair.FX["EWC"])
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), pc.Pair.Start)
	assert.True(t, pc.Intercept)
	assert.InDelta(t, 0.05, pc.Fee, 1e-12)
	require.Len(t, pc.Specs, 2)
	assert.InDelta(t, 1.5, pc.Specs[0].NumStd, 1e-12)
	assert.InDelta(t, 2, pc.Specs[1].NumStd, 1e-12)
	assert.Equal(t, 3, pc.Runner.Workers)
	assert.True(t, pc.Runner.SkipReentry)
}

func TestPipelineConfig_BadRange(t *testing.T) {
	cfg := testConfig()
	cfg.Pair.Start = "2030-01-01"
	_, err := pipelineConfig(cfg)
	assert.Error(t, err)
}
