package backtest_test

import (
	"math/rand/v2"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func spreadOf(values ...float64) domain.Spread {
	pts := make([]domain.Point, len(values))
	for i, v := range values {
		pts[i] = domain.Point{Time: t0.AddDate(0, 0, i), Value: v}
	}
	return domain.Spread{Name: domain.SpreadName, Points: pts}
}

// ouSpread es un camino con reversión a la media y semilla fija, la entrada típica del simulador.
func ouSpread(seed uint64, n int) domain.Spread {
	r := rand.New(rand.NewPCG(seed, seed*31+7))
	v := make([]float64, n)
	for i := 1; i < n; i++ {
		v[i] = 0.8*v[i-1] + r.NormFloat64()
	}
	return spreadOf(v...)
}
