package yahoo

// provider.go: cierres históricos desde el endpoint chart de Yahoo Finance.

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/statarb/internal/adapters/httpx"
	"github.com/alejandrodnm/statarb/internal/domain"
)

const (
	defaultBase = "https://query1.finance.yahoo.com"
	chartPath   = "/v8/finance/chart/"
	ratePerSec  = 2
	userAgent   = "Mozilla/5.0 (compatible; statarb/1.0)"
)

var intervals = map[string]string{
	"1m": "1m", "2m": "2m", "5m": "5m", "15m": "15m", "30m": "30m",
	"60m": "60m", "90m": "90m", "1h": "1h",
	"1d": "1d", "5d": "5d",
	"1w": "1wk", "1wk": "1wk",
	"1mo": "1mo", "3mo": "3mo",
}

// Config configura el Provider.
type Config struct {
	BaseURL    string
	AutoAdjust bool // usar adjclose cuando está disponible
	Timeout    time.Duration
}

// Provider implementa ports.PriceProvider contra Yahoo Finance.
type Provider struct {
	client     *httpx.Client
	base       string
	autoAdjust bool
}

// New crea un Provider. Si BaseURL está vacío usa el host público.
func New(cfg Config) *Provider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBase
	}
	return &Provider{
		client: httpx.New(httpx.Config{
			RatePerSec: ratePerSec,
			Burst:      2,
			Timeout:    cfg.Timeout,
			Headers:    map[string]string{"User-Agent": userAgent},
		}),
		base:       strings.TrimRight(base, "/"),
		autoAdjust: cfg.AutoAdjust,
	}
}

// Fetch devuelve los cierres de ticker en [start, end]. La moneda sale de meta.currency.
func (p *Provider) Fetch(ctx context.Context, ticker string, start, end time.Time, interval string) (domain.PriceData, error) {
	iv, ok := intervals[strings.ToLower(strings.TrimSpace(interval))]
	if !ok {
		return domain.PriceData{}, fmt.Errorf("yahoo.Fetch: unsupported interval %q: %w", interval, domain.ErrInvalidConfig)
	}
	start, end = start.UTC(), end.UTC()

	params := url.Values{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Unix(), 10)},
		"interval": {iv},
		"events":   {"div,splits"},
	}
	var resp chartResponse
	if err := p.client.GetJSON(ctx, p.base+chartPath+url.PathEscape(ticker), params, &resp); err != nil {
		return domain.PriceData{}, fmt.Errorf("yahoo.Fetch %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return domain.PriceData{}, fmt.Errorf("yahoo.Fetch %s: %s: %s", ticker, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return domain.PriceData{}, fmt.Errorf("yahoo.Fetch: no data for %s: %w", ticker, domain.ErrInsufficientData)
	}

	res := resp.Chart.Result[0]
	closes := res.closes(p.autoAdjust)
	points := make([]domain.Point, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		if t.Before(start) || t.After(end) {
			continue
		}
		points = append(points, domain.Point{Time: t, Value: *closes[i]})
	}
	if len(points) == 0 {
		return domain.PriceData{}, fmt.Errorf("yahoo.Fetch: no data for %s: %w", ticker, domain.ErrInsufficientData)
	}
	return domain.NewPriceData(ticker, res.Meta.Currency, points), nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Currency string `json:"currency"`
		Symbol   string `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// closes elige adjclose si se pidió y existe; si no, close.
func (r chartResult) closes(adjusted bool) []*float64 {
	if adjusted && len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) > 0 {
		return r.Indicators.AdjClose[0].AdjClose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}
