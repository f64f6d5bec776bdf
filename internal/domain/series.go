package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Point es una observación de una serie.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// PriceSeries es la secuencia ordenada de observaciones de una pata.
// Los timestamps deben ser estrictamente crecientes.
type PriceSeries struct {
	Name     string
	Currency string
	Points   []Point
}

// NewPriceSeries arma una serie a partir de slices paralelos de tiempos y valores.
func NewPriceSeries(name string, times []time.Time, values []float64) (PriceSeries, error) {
	if len(times) != len(values) {
		return PriceSeries{}, fmt.Errorf("domain.NewPriceSeries: %d times vs %d values: %w",
			len(times), len(values), ErrAlignment)
	}
	pts := make([]Point, len(times))
	for i := range times {
		pts[i] = Point{Time: times[i], Value: values[i]}
	}
	return PriceSeries{Name: name, Points: pts}, nil
}

// Len devuelve la cantidad de observaciones.
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Values devuelve una copia de los valores.
func (s PriceSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Times devuelve una copia de los timestamps.
func (s PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Time
	}
	return out
}

// Validate verifica que los timestamps sean estrictamente crecientes (sin duplicados).
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Time.After(s.Points[i-1].Time) {
			return fmt.Errorf("domain.PriceSeries.Validate: %q index %d (%s) not after %s: %w",
				s.Name, i, s.Points[i].Time.Format(time.RFC3339), s.Points[i-1].Time.Format(time.RFC3339), ErrAlignment)
		}
	}
	return nil
}

// SameIndex indica si ambas series tienen exactamente los mismos timestamps.
func (s PriceSeries) SameIndex(other PriceSeries) bool {
	if len(s.Points) != len(other.Points) {
		return false
	}
	for i := range s.Points {
		if !s.Points[i].Time.Equal(other.Points[i].Time) {
			return false
		}
	}
	return true
}

// Between devuelve las observaciones con start <= t <= end.
func (s PriceSeries) Between(start, end time.Time) PriceSeries {
	out := PriceSeries{Name: s.Name, Currency: s.Currency}
	for _, p := range s.Points {
		if p.Time.Before(start) || p.Time.After(end) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// PriceData es lo que devuelve un provider de datos para un ticker.
type PriceData struct {
	Series   PriceSeries
	Currency string
}

// NewPriceData normaliza la salida de un provider: timestamps en UTC y en orden
// ascendente, sin duplicados (gana el último), moneda en mayúsculas.
func NewPriceData(name, currency string, points []Point) PriceData {
	pts := make([]Point, len(points))
	for i, p := range points {
		pts[i] = Point{Time: p.Time.UTC(), Value: p.Value}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })

	dedup := pts[:0]
	for _, p := range pts {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(p.Time) {
			dedup[n-1] = p
			continue
		}
		dedup = append(dedup, p)
	}

	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = "USD"
	}
	return PriceData{
		Series:   PriceSeries{Name: name, Currency: cur, Points: dedup},
		Currency: cur,
	}
}
