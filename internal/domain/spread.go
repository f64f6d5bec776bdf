package domain

import "fmt"

// SpreadName es el nombre de serie que reciben los spreads calculados.
const SpreadName = "spread"

// Spread es la serie de residuos legA − ratio·legB − intercept, alineada con las patas.
type Spread = PriceSeries

// ComputeSpread aplica la relación de cobertura punto a punto.
func ComputeSpread(a, b PriceSeries, ratio, intercept float64) (Spread, error) {
	if !a.SameIndex(b) {
		return Spread{}, fmt.Errorf("domain.ComputeSpread: %q (%d points) vs %q (%d points): %w",
			a.Name, a.Len(), b.Name, b.Len(), ErrAlignment)
	}
	pts := make([]Point, a.Len())
	for i := range a.Points {
		pts[i] = Point{
			Time:  a.Points[i].Time,
			Value: a.Points[i].Value - ratio*b.Points[i].Value - intercept,
		}
	}
	return Spread{Name: SpreadName, Currency: a.Currency, Points: pts}, nil
}
