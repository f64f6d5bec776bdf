package backtest_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/statarb/internal/application/backtest"
	"github.com/alejandrodnm/statarb/internal/domain"
)

func TestSimulator_SpikeEntersShortAndExitsAtMean(t *testing.T) {
	spread := spreadOf(0, 0, 0, 0, 3, 3, 3, 0, 0, 0)

	res, err := backtest.NewSimulator(4, 1, 0, backtest.WithReentryOnExit(false)).Run(spread)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, domain.ShortSpread, tr.Direction)
	assert.Equal(t, spread.Points[4].Time, tr.EntryTime, "entry at spike onset")
	assert.Equal(t, spread.Points[7].Time, tr.ExitTime, "exit when spread returns to the mean")
	assert.Equal(t, 3.0, tr.EntrySpread)
	assert.Equal(t, 0.0, tr.ExitSpread)
	assert.InDelta(t, 3.0, tr.PnL, 1e-12)
	assert.False(t, tr.Forced)
	assert.InDelta(t, 3.0, res.FinalEquity(), 1e-12)
}

// Con re-entrada habilitada, la misma barra que cierra el short (spread 0,
// debajo de la banda inferior) abre un long: salida y entrada en el mismo tick.
func TestSimulator_SpikeReversalIsExitThenEntry(t *testing.T) {
	spread := spreadOf(0, 0, 0, 0, 3, 3, 3, 0, 0, 0)

	res, err := backtest.NewSimulator(4, 1, 0).Run(spread)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	first, second := res.Trades[0], res.Trades[1]
	assert.Equal(t, domain.ShortSpread, first.Direction)
	assert.InDelta(t, 3.0, first.PnL, 1e-12)

	assert.Equal(t, domain.LongSpread, second.Direction)
	assert.Equal(t, first.ExitTime, second.EntryTime)
	assert.Equal(t, spread.Points[9].Time, second.ExitTime)
	assert.True(t, second.Forced)
	assert.InDelta(t, 0.0, second.PnL, 1e-12)

	assert.Equal(t, domain.ShortSpread, res.EquityCurve[6].Position)
	assert.Equal(t, domain.LongSpread, res.EquityCurve[7].Position)
	assert.Equal(t, domain.Flat, res.EquityCurve[9].Position)
}

func TestSimulator_FlatLineNeverTrades(t *testing.T) {
	spread := spreadOf(make([]float64, 50)...)
	for _, w := range []int{2, 5, 20, 50} {
		for _, k := range []float64{0.5, 1, 2} {
			res, err := backtest.NewSimulator(w, k, 0.1).Run(spread)
			require.NoError(t, err)
			assert.Empty(t, res.Trades)
			for _, p := range res.EquityCurve {
				assert.Equal(t, 0.0, p.Equity)
			}
		}
	}
}

func TestSimulator_FeeChargedOnBothLegs(t *testing.T) {
	spread := spreadOf(0, 0, 0, 0, 3, 1.5, 1.5, 1.5, 1.5, 1.5)

	res, err := backtest.NewSimulator(4, 1, 0.1).Run(spread)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.InDelta(t, 1.5, tr.PnL, 1e-12)
	assert.InDelta(t, 0.2, tr.FeePaid, 1e-12)
	assert.InDelta(t, 1.3, res.Stats.TotalPnL, 1e-12)
	assert.InDelta(t, 1.3, res.FinalEquity(), 1e-12)

	// el fee de entrada se descuenta en la barra de entrada
	assert.InDelta(t, -0.1, res.EquityCurve[4].Equity, 1e-12)
}

func TestSimulator_Invariants(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		spread := ouSpread(seed, 300)
		for _, w := range []int{5, 20, 60} {
			for _, k := range []float64{0.5, 1.5} {
				res, err := backtest.NewSimulator(w, k, 0.05).Run(spread)
				require.NoError(t, err)
				assertInvariants(t, spread, res)
			}
		}
	}
}

func assertInvariants(t *testing.T, spread domain.Spread, res domain.BacktestResult) {
	t.Helper()
	require.Len(t, res.EquityCurve, spread.Len())

	var raw, fees float64
	for i, tr := range res.Trades {
		assert.True(t, tr.ExitTime.After(tr.EntryTime), "trade %d exits after entry", i)
		if i > 0 {
			assert.False(t, tr.EntryTime.Before(res.Trades[i-1].ExitTime), "trades do not overlap")
		}
		raw += tr.PnL
		fees += tr.FeePaid
	}
	assert.InDelta(t, raw-fees, res.FinalEquity(), 1e-9)
	assert.InDelta(t, res.Stats.TotalPnL, res.FinalEquity(), 1e-9)
	assert.Equal(t, domain.Flat, res.EquityCurve[len(res.EquityCurve)-1].Position)

	// LONG <-> SHORT solo vía salida + entrada en la misma barra.
	exits := make(map[int64]bool)
	entries := make(map[int64]bool)
	for _, tr := range res.Trades {
		exits[tr.ExitTime.UnixNano()] = true
		entries[tr.EntryTime.UnixNano()] = true
	}
	for i := 1; i < len(res.EquityCurve); i++ {
		prev, cur := res.EquityCurve[i-1].Position, res.EquityCurve[i].Position
		if prev != domain.Flat && cur != domain.Flat && prev != cur {
			ts := res.EquityCurve[i].Time.UnixNano()
			assert.True(t, exits[ts] && entries[ts], "reversal at index %d must be exit then entry", i)
		}
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	spread := ouSpread(42, 500)
	sim := backtest.NewSimulator(20, 1.5, 0.1)

	first, err := sim.Run(spread)
	require.NoError(t, err)
	second, err := sim.Run(spread)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSimulator_NonFiniteSpread(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		spread := ouSpread(3, 40)
		spread.Points[25].Value = bad

		res, err := backtest.NewSimulator(5, 1, 0).Run(spread)
		assert.ErrorIs(t, err, domain.ErrSimulation)
		assert.Empty(t, res.Trades)
		assert.Empty(t, res.EquityCurve)
	}
}

func TestSimulator_InvalidParameters(t *testing.T) {
	spread := ouSpread(3, 40)

	_, err := backtest.NewSimulator(41, 1, 0).Run(spread)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = backtest.NewSimulator(1, 1, 0).Run(spread)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = backtest.NewSimulator(5, 0, 0).Run(spread)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = backtest.NewSimulator(5, 1, -0.1).Run(spread)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSimulator_NoEntryOnLastBar(t *testing.T) {
	// el único cruce de banda ocurre en la última barra
	res, err := backtest.NewSimulator(3, 1, 0).Run(spreadOf(0, 1, 0, 1, 0, 9))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}
