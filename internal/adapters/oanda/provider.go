package oanda

// provider.go: velas históricas desde la API REST v20 de OANDA.
//
// OANDA limita cada request a 5000 velas, así que Fetch pagina avanzando
// "from" hasta cubrir el rango pedido. Solo se usan velas completas y el
// cierre del precio mid.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/statarb/internal/adapters/httpx"
	"github.com/alejandrodnm/statarb/internal/domain"
)

const (
	practiceBase = "https://api-fxpractice.oanda.com"
	liveBase     = "https://api-fxtrade.oanda.com"

	maxBatch = 5000
	// OANDA documenta 120 req/s por conexión; usamos bastante menos.
	ratePerSec = 20
)

var granularities = map[string]string{
	"1m":  "M1",
	"5m":  "M5",
	"15m": "M15",
	"30m": "M30",
	"1h":  "H1",
	"4h":  "H4",
	"1d":  "D",
	"1w":  "W",
}

var granularityStep = map[string]time.Duration{
	"M1":  time.Minute,
	"M5":  5 * time.Minute,
	"M15": 15 * time.Minute,
	"M30": 30 * time.Minute,
	"H1":  time.Hour,
	"H4":  4 * time.Hour,
	"D":   24 * time.Hour,
	"W":   7 * 24 * time.Hour,
}

// Config configura el Provider.
type Config struct {
	APIKey               string
	Environment          string            // practice | live
	BaseURL              string            // override, usado en tests
	Timeout              time.Duration
	InstrumentCurrencies map[string]string // moneda de cotización por instrumento
}

// Provider implementa ports.PriceProvider contra OANDA.
type Provider struct {
	client     *httpx.Client
	base       string
	currencies map[string]string
}

// New crea un Provider. Falla si falta la API key o el environment es desconocido.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oanda.New: api key is required: %w", domain.ErrInvalidConfig)
	}
	base := cfg.BaseURL
	if base == "" {
		switch strings.ToLower(cfg.Environment) {
		case "", "practice":
			base = practiceBase
		case "live", "trade", "fxtrade":
			base = liveBase
		default:
			return nil, fmt.Errorf("oanda.New: environment %q must be practice or live: %w",
				cfg.Environment, domain.ErrInvalidConfig)
		}
	}

	currencies := make(map[string]string, len(cfg.InstrumentCurrencies))
	for k, v := range cfg.InstrumentCurrencies {
		currencies[k] = strings.ToUpper(v)
	}

	client := httpx.New(httpx.Config{
		RatePerSec: ratePerSec,
		Burst:      5,
		Timeout:    cfg.Timeout,
		Headers:    map[string]string{"Authorization": "Bearer " + cfg.APIKey},
	})
	return &Provider{client: client, base: strings.TrimRight(base, "/"), currencies: currencies}, nil
}

// Granularity traduce un intervalo ("1h", "1d", "H4", ...) a la granularidad de OANDA.
func Granularity(interval string) (string, error) {
	norm := strings.TrimSpace(interval)
	if g, ok := granularities[strings.ToLower(norm)]; ok {
		return g, nil
	}
	if _, ok := granularityStep[strings.ToUpper(norm)]; ok {
		return strings.ToUpper(norm), nil
	}
	return "", fmt.Errorf("oanda: unsupported interval %q: %w", interval, domain.ErrInvalidConfig)
}

// Fetch devuelve los cierres mid de las velas completas en [start, end].
func (p *Provider) Fetch(ctx context.Context, ticker string, start, end time.Time, interval string) (domain.PriceData, error) {
	gran, err := Granularity(interval)
	if err != nil {
		return domain.PriceData{}, err
	}
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return domain.PriceData{}, fmt.Errorf("oanda.Fetch: start %s not before end %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), domain.ErrInvalidConfig)
	}

	endpoint := fmt.Sprintf("%s/v3/instruments/%s/candles", p.base, url.PathEscape(ticker))
	step := granularityStep[gran]

	var points []domain.Point
	from := start
	for from.Before(end) {
		params := url.Values{
			"granularity": {gran},
			"from":        {from.Format(time.RFC3339)},
			"to":          {end.Format(time.RFC3339)},
			"price":       {"M"},
			"count":       {strconv.Itoa(maxBatch)},
		}
		var resp candlesResponse
		if err := p.client.GetJSON(ctx, endpoint, params, &resp); err != nil {
			return domain.PriceData{}, fmt.Errorf("oanda.Fetch %s: %w", ticker, err)
		}
		if len(resp.Candles) == 0 {
			break
		}

		var last time.Time
		for _, c := range resp.Candles {
			if !c.Complete || c.Mid == nil {
				continue
			}
			ts, err := time.Parse(time.RFC3339Nano, c.Time)
			if err != nil {
				continue
			}
			ts = ts.UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			if n := len(points); n > 0 && !ts.After(points[n-1].Time) {
				continue
			}
			closePx, err := strconv.ParseFloat(c.Mid.C, 64)
			if err != nil {
				continue
			}
			points = append(points, domain.Point{Time: ts, Value: closePx})
			last = ts
		}

		slog.Debug("oanda candles batch", "instrument", ticker, "batch", len(resp.Candles), "total", len(points))
		if last.IsZero() || len(resp.Candles) < maxBatch {
			break
		}
		from = last.Add(step)
	}

	if len(points) == 0 {
		return domain.PriceData{}, fmt.Errorf("oanda.Fetch: no candles for %s: %w", ticker, domain.ErrInsufficientData)
	}
	return domain.NewPriceData(ticker, p.currency(ticker), points), nil
}

// currency infiere la moneda de cotización: override, o el sufijo de XXX_YYY.
func (p *Provider) currency(instrument string) string {
	if c, ok := p.currencies[instrument]; ok {
		return c
	}
	if i := strings.LastIndex(instrument, "_"); i >= 0 {
		return strings.ToUpper(instrument[i+1:])
	}
	return "USD"
}

type candlesResponse struct {
	Instrument  string   `json:"instrument"`
	Granularity string   `json:"granularity"`
	Candles     []candle `json:"candles"`
}

type candle struct {
	Complete bool        `json:"complete"`
	Volume   int         `json:"volume"`
	Time     string      `json:"time"`
	Mid      *candleOHLC `json:"mid"`
}

type candleOHLC struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}
