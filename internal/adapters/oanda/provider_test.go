package oanda_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/statarb/internal/adapters/oanda"
	"github.com/alejandrodnm/statarb/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func candlesJSON(start time.Time, step time.Duration, closes []float64, incompleteLast bool) []byte {
	type mid struct {
		C string `json:"c"`
	}
	type c struct {
		Complete bool   `json:"complete"`
		Time     string `json:"time"`
		Mid      mid    `json:"mid"`
	}
	out := struct {
		Candles []c `json:"candles"`
	}{}
	for i, v := range closes {
		out.Candles = append(out.Candles, c{
			Complete: !(incompleteLast && i == len(closes)-1),
			Time:     start.Add(time.Duration(i) * step).Format("2006-01-02T15:04:05.000000000Z"),
			Mid:      mid{C: strconv.FormatFloat(v, 'f', 5, 64)},
		})
	}
	b, _ := json.Marshal(out)
	return b
}

func TestFetch_ParsesCompleteCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/instruments/EUR_USD/candles", r.URL.Path)
		assert.Equal(t, "D", r.URL.Query().Get("granularity"))
		assert.Equal(t, "M", r.URL.Query().Get("price"))
		assert.Equal(t, "5000", r.URL.Query().Get("count"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write(candlesJSON(t0, 24*time.Hour, []float64{1.08, 1.09, 1.1}, true))
	}))
	defer srv.Close()

	p, err := oanda.New(oanda.Config{APIKey: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	data, err := p.Fetch(context.Background(), "EUR_USD", t0, t0.AddDate(0, 0, 10), "1d")
	require.NoError(t, err)
	assert.Equal(t, "USD", data.Currency)
	assert.Equal(t, []float64{1.08, 1.09}, data.Series.Values(), "incomplete candle dropped")
	assert.Equal(t, t0, data.Series.Points[0].Time)
}

func TestFetch_PaginatesFullBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		assert.NoError(t, err)
		n := 5000
		if calls.Add(1) > 1 {
			n = 10
		}
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = 1 + float64(i)/1e5
		}
		w.Write(candlesJSON(from, time.Minute, closes, false))
	}))
	defer srv.Close()

	p, err := oanda.New(oanda.Config{APIKey: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	data, err := p.Fetch(context.Background(), "EUR_USD", t0, t0.Add(30*24*time.Hour), "1m")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 5010, data.Series.Len())
	assert.NoError(t, data.Series.Validate())
}

func TestFetch_NoCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candles": []}`)
	}))
	defer srv.Close()

	p, err := oanda.New(oanda.Config{APIKey: "tok", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Fetch(context.Background(), "EUR_USD", t0, t0.AddDate(0, 0, 1), "1h")
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestFetch_CurrencyOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(candlesJSON(t0, time.Hour, []float64{5000, 5001}, false))
	}))
	defer srv.Close()

	p, err := oanda.New(oanda.Config{
		APIKey:               "tok",
		BaseURL:              srv.URL,
		InstrumentCurrencies: map[string]string{"DE30_EUR": "eur", "SPX500": "usd"},
	})
	require.NoError(t, err)
	data, err := p.Fetch(context.Background(), "SPX500", t0, t0.AddDate(0, 0, 1), "H1")
	require.NoError(t, err)
	assert.Equal(t, "USD", data.Currency)
}

func TestNew_Validation(t *testing.T) {
	_, err := oanda.New(oanda.Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = oanda.New(oanda.Config{APIKey: "x", Environment: "sandbox"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = oanda.New(oanda.Config{APIKey: "x", Environment: "live"})
	assert.NoError(t, err)
}

func TestGranularity(t *testing.T) {
	for in, want := range map[string]string{"1d": "D", "1H": "H1", "m15": "M15", "w": "W"} {
		got, err := oanda.Granularity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := oanda.Granularity("2d")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
