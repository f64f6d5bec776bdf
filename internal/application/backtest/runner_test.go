package backtest_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/statarb/internal/application/backtest"
	"github.com/alejandrodnm/statarb/internal/domain"
)

func TestRunner_PreservesCallerOrder(t *testing.T) {
	spread := ouSpread(5, 200)
	windows := []int{40, 10, 20, 5, 60}

	results, err := backtest.RunMultiWindowBacktest(context.Background(), spread, windows, 1.5, 0.1)
	require.NoError(t, err)
	require.Len(t, results, len(windows))
	for i, w := range windows {
		assert.Equal(t, w, results[i].Window)
	}
}

func TestRunner_MatchesSequentialSimulator(t *testing.T) {
	spread := ouSpread(8, 250)
	specs := backtest.SpecsFor([]int{10, 20, 40}, 1.5, map[int]float64{20: 2})

	for _, workers := range []int{1, 2, 16} {
		r := backtest.NewRunner(backtest.RunnerConfig{Workers: workers})
		results, err := r.Run(context.Background(), spread, specs, 0.1)
		require.NoError(t, err)
		require.Len(t, results, len(specs))

		for i, spec := range specs {
			want, err := backtest.NewSimulator(spec.Window, spec.NumStd, 0.1).Run(spread)
			require.NoError(t, err)
			assert.Equal(t, want, results[i], "workers=%d window=%d", workers, spec.Window)
		}
	}
	assert.Equal(t, 2.0, specs[1].NumStd)
	assert.Equal(t, 1.5, specs[2].NumStd)
}

func TestRunner_FailedWindowDoesNotBlockOthers(t *testing.T) {
	spread := ouSpread(2, 100)

	results, err := backtest.RunMultiWindowBacktest(context.Background(), spread, []int{10, 1000, 20}, 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	var we *domain.WindowError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, 1000, we.Window)

	require.Len(t, results, 2)
	assert.Equal(t, 10, results[0].Window)
	assert.Equal(t, 20, results[1].Window)

	werrs := backtest.WindowErrors(err)
	require.Len(t, werrs, 1)
	assert.Equal(t, 1000, werrs[0].Window)
}

func TestRunner_NonFiniteSpreadFailsEveryWindow(t *testing.T) {
	spread := ouSpread(2, 100)
	spread.Points[50].Value = math.NaN()

	results, err := backtest.RunMultiWindowBacktest(context.Background(), spread, []int{10, 20}, 1, 0)
	assert.Empty(t, results)
	assert.ErrorIs(t, err, domain.ErrSimulation)
	assert.Len(t, backtest.WindowErrors(err), 2)
}

func TestRunner_InvalidFee(t *testing.T) {
	for _, fee := range []float64{-1, math.NaN(), math.Inf(1)} {
		results, err := backtest.RunMultiWindowBacktest(context.Background(), ouSpread(1, 50), []int{5}, 1, fee)
		assert.Nil(t, results)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		assert.Empty(t, backtest.WindowErrors(err))
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := backtest.RunMultiWindowBacktest(ctx, ouSpread(1, 50), []int{5, 10}, 1, 0)
	assert.Empty(t, results)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_NoSpecs(t *testing.T) {
	results, err := backtest.NewRunner(backtest.RunnerConfig{}).Run(context.Background(), ouSpread(1, 10), nil, 0)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunner_SkipReentry(t *testing.T) {
	spread := spreadOf(0, 0, 0, 0, 3, 3, 3, 0, 0, 0)
	r := backtest.NewRunner(backtest.RunnerConfig{SkipReentry: true})

	results, err := r.Run(context.Background(), spread, []backtest.WindowSpec{{Window: 4, NumStd: 1}}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Trades, 1)
}
