package domain

import (
	"math/rand/v2"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(name string, values ...float64) PriceSeries {
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{Time: t0.AddDate(0, 0, i), Value: v}
	}
	return PriceSeries{Name: name, Currency: "USD", Points: pts}
}

// randomWalk devuelve un random walk con semilla fija que arranca en start.
func randomWalk(seed uint64, n int, start, step float64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	out[0] = start
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + step*r.NormFloat64()
	}
	return out
}

func gaussian(seed uint64, n int, sigma float64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = sigma * r.NormFloat64()
	}
	return out
}
