package httpx

// client.go: HTTP client JSON con rate limiting y retries, compartido por los
// providers de precios (OANDA, Yahoo).

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseRetryWait  = 500 * time.Millisecond
)

// ErrClient es un 4xx distinto de 429: reintentar no sirve.
var ErrClient = errors.New("client error")

// Config controla un Client.
type Config struct {
	RatePerSec float64           // 0 = sin límite
	Burst      int               // tokens del bucket; 0 = 1
	Timeout    time.Duration     // 0 = 30s
	Headers    map[string]string // se agregan a cada request
}

// Client es un HTTP client con rate limiting y retries.
type Client struct {
	http          *http.Client
	limiter       *rate.Limiter
	headers       map[string]string
	baseRetryWait time.Duration
}

// New crea un Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		http:          &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(limit, burst),
		headers:       cfg.Headers,
		baseRetryWait: baseRetryWait,
	}
}

// WithRetryWait cambia la espera base del backoff. Pensado para tests.
func (c *Client) WithRetryWait(d time.Duration) *Client {
	c.baseRetryWait = d
	return c
}

// GetJSON hace un GET a rawURL con los query params dados y decodifica la
// respuesta JSON en out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w %d: %s", ErrClient, resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
