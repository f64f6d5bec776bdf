package csvdata

// provider.go: precios desde archivos CSV locales, para experimentos offline.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// FileSpec describe dónde está la serie de un ticker y cómo leerla.
type FileSpec struct {
	Path            string
	PriceColumn     string // default "close"
	TimestampColumn string // default "timestamp"
	Currency        string // default "USD"
}

// Provider implementa ports.PriceProvider sobre un mapa ticker -> archivo.
type Provider struct {
	files map[string]FileSpec
}

// New crea un Provider completando los defaults de cada FileSpec.
func New(files map[string]FileSpec) *Provider {
	out := make(map[string]FileSpec, len(files))
	for ticker, spec := range files {
		if spec.PriceColumn == "" {
			spec.PriceColumn = "close"
		}
		if spec.TimestampColumn == "" {
			spec.TimestampColumn = "timestamp"
		}
		if spec.Currency == "" {
			spec.Currency = "USD"
		}
		out[ticker] = spec
	}
	return &Provider{files: out}
}

// Fetch lee el archivo configurado para ticker y devuelve las filas en
// [start, end]. Un start o end en cero no filtra. interval se ignora: el
// archivo ya tiene la granularidad que tiene.
func (p *Provider) Fetch(ctx context.Context, ticker string, start, end time.Time, _ string) (domain.PriceData, error) {
	spec, ok := p.files[ticker]
	if !ok {
		return domain.PriceData{}, fmt.Errorf("csvdata.Fetch: ticker %q not configured: %w", ticker, domain.ErrInvalidConfig)
	}
	if err := ctx.Err(); err != nil {
		return domain.PriceData{}, err
	}

	f, err := os.Open(spec.Path)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("csvdata.Fetch: open %q: %w", spec.Path, err)
	}
	defer f.Close()

	points, err := readPoints(f, spec, start, end)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("csvdata.Fetch %s: %w", ticker, err)
	}
	return domain.NewPriceData(ticker, spec.Currency, points), nil
}

func readPoints(r io.Reader, spec FileSpec, start, end time.Time) ([]domain.Point, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	tsCol, priceCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case spec.TimestampColumn:
			tsCol = i
		case spec.PriceColumn:
			priceCol = i
		}
	}
	if tsCol < 0 {
		return nil, fmt.Errorf("column %q not found in %s: %w", spec.TimestampColumn, spec.Path, domain.ErrInvalidConfig)
	}
	if priceCol < 0 {
		return nil, fmt.Errorf("column %q not found in %s: %w", spec.PriceColumn, spec.Path, domain.ErrInvalidConfig)
	}

	var points []domain.Point
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		raw := strings.TrimSpace(record[priceCol])
		if raw == "" {
			continue
		}
		ts, err := ParseTimestamp(record[tsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if (!start.IsZero() && ts.Before(start)) || (!end.IsZero() && ts.After(end)) {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: price %q: %w", line, raw, err)
		}
		points = append(points, domain.Point{Time: ts, Value: v})
	}
	return points, nil
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp acepta RFC3339, fechas ISO con o sin hora, y epoch en segundos.
// Sin zona horaria se asume UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
