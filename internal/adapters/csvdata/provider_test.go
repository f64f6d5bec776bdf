package csvdata_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/statarb/internal/adapters/csvdata"
	"github.com/alejandrodnm/statarb/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFetch_DefaultColumns(t *testing.T) {
	path := writeFile(t, "a.csv", "timestamp,open,close\n"+
		"2024-01-03,1,12.5\n"+
		"2024-01-01,1,10\n"+
		"2024-01-02,1,\n"+
		"2024-01-04,1,13\n")
	p := csvdata.New(map[string]csvdata.FileSpec{"A": {Path: path, Currency: "eur"}})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	data, err := p.Fetch(context.Background(), "A", start, end, "1d")
	require.NoError(t, err)

	assert.Equal(t, "EUR", data.Currency)
	assert.Equal(t, "A", data.Series.Name)
	assert.Equal(t, []float64{10, 12.5}, data.Series.Values(), "sorted, blank price skipped, end inclusive")
}

func TestFetch_CustomColumnsAndNoRange(t *testing.T) {
	path := writeFile(t, "b.csv", "date,px\n2024-01-01T10:00:00Z,1.5\n1704196800,1.6\n")
	p := csvdata.New(map[string]csvdata.FileSpec{
		"B": {Path: path, PriceColumn: "px", TimestampColumn: "date"},
	})

	data, err := p.Fetch(context.Background(), "B", time.Time{}, time.Time{}, "")
	require.NoError(t, err)
	assert.Equal(t, "USD", data.Currency)
	assert.Equal(t, []float64{1.5, 1.6}, data.Series.Values())
}

func TestFetch_Errors(t *testing.T) {
	missingCol := writeFile(t, "c.csv", "timestamp,last\n2024-01-01,1\n")
	badTs := writeFile(t, "d.csv", "timestamp,close\nyesterday,1\n")
	p := csvdata.New(map[string]csvdata.FileSpec{
		"C":    {Path: missingCol},
		"D":    {Path: badTs},
		"GONE": {Path: filepath.Join(t.TempDir(), "nope.csv")},
	})
	ctx := context.Background()

	_, err := p.Fetch(ctx, "X", time.Time{}, time.Time{}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = p.Fetch(ctx, "C", time.Time{}, time.Time{}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = p.Fetch(ctx, "D", time.Time{}, time.Time{}, "")
	assert.ErrorContains(t, err, "yesterday")

	_, err = p.Fetch(ctx, "GONE", time.Time{}, time.Time{}, "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 6, 7, 8, 0, 0, time.UTC)
	for _, in := range []string{"2024-05-06T07:08:00Z", "2024-05-06T09:08:00+02:00", "2024-05-06 07:08", "2024-05-06T07:08:00"} {
		got, err := csvdata.ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}
}
