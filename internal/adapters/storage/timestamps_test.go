package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedRun(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	run := domain.Run{
		ID:        "corrupt",
		CreatedAt: ts,
		LegA:      "KO",
		LegB:      "PEP",
		NumPoints: 2,
		Results: []domain.BacktestResult{{
			Window: 2,
			NumStd: 1,
			Trades: []domain.Trade{{
				EntryTime: ts, ExitTime: ts.Add(24 * time.Hour),
				Direction: domain.LongSpread, PnL: 1,
			}},
			EquityCurve: []domain.EquityPoint{
				{Time: ts, Equity: 0, Position: domain.LongSpread},
				{Time: ts.Add(24 * time.Hour), Equity: 1, Position: domain.Flat},
			},
		}},
	}
	require.NoError(t, s.SaveRun(context.Background(), run))
	return s, run.ID
}

func TestStoredTimestamps_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		update string
		list   bool // ListRuns también debe fallar
	}{
		{"run created_at", `UPDATE runs SET created_at = 'ayer'`, true},
		{"trade entry", `UPDATE trades SET entry_time = '2024-03-01'`, false},
		{"trade exit", `UPDATE trades SET exit_time = ''`, false},
		{"equity ts", `UPDATE equity SET ts = 'x' WHERE seq = 1`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, id := savedRun(t)
			ctx := context.Background()
			_, err := s.db.ExecContext(ctx, tt.update)
			require.NoError(t, err)

			_, err = s.GetRun(ctx, id)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse stored time")

			_, err = s.ListRuns(ctx, 10)
			if tt.list {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
