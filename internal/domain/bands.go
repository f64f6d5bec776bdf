package domain

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// zeroTolerance es el umbral relativo por debajo del cual una dispersión cuenta como cero.
const zeroTolerance = 1e-12

// BandState guarda las estadísticas móviles de un timestamp.
// Defined es false durante el warm-up (los primeros Window-1 timestamps).
type BandState struct {
	Defined bool    `json:"defined"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	ZScore  float64 `json:"z_score"`
	Upper   float64 `json:"upper"`
	Lower   float64 `json:"lower"`
}

// Bands es la serie de bandas móviles para un par ventana/multiplicador.
type Bands struct {
	Window int
	NumStd float64
	Times  []time.Time
	States []BandState
}

// Defined devuelve cuántos timestamps tienen señal.
func (b Bands) Defined() int {
	n := 0
	for _, s := range b.States {
		if s.Defined {
			n++
		}
	}
	return n
}

// ComputeBands calcula media móvil, desvío estándar muestral, z-score y bandas
// media ± numStd·std sobre una ventana hacia atrás. Cada timestamp se recalcula
// desde su propio slice: no hay drift acumulado en series largas.
func ComputeBands(spread Spread, window int, numStd float64) (Bands, error) {
	n := spread.Len()
	if window < 2 || window > n {
		return Bands{}, fmt.Errorf("domain.ComputeBands: window %d for %d points: %w", window, n, ErrInvalidWindow)
	}
	if !(numStd > 0) || math.IsInf(numStd, 0) {
		return Bands{}, fmt.Errorf("domain.ComputeBands: num_std %v must be positive: %w", numStd, ErrInvalidConfig)
	}

	values := spread.Values()
	states := make([]BandState, n)
	for t := window - 1; t < n; t++ {
		mean, std := stat.MeanStdDev(values[t-window+1:t+1], nil)
		if std <= zeroTolerance*math.Max(1, math.Abs(mean)) {
			std = 0
		}
		z := 0.0
		if std > 0 {
			z = (values[t] - mean) / std
		}
		states[t] = BandState{
			Defined: true,
			Mean:    mean,
			Std:     std,
			ZScore:  z,
			Upper:   mean + numStd*std,
			Lower:   mean - numStd*std,
		}
	}

	return Bands{
		Window: window,
		NumStd: numStd,
		Times:  spread.Times(),
		States: states,
	}, nil
}

// ComputeMultiBands calcula bandas para varias ventanas con un mismo multiplicador.
func ComputeMultiBands(spread Spread, windows []int, numStd float64) (map[int]Bands, error) {
	out := make(map[int]Bands, len(windows))
	for _, w := range windows {
		b, err := ComputeBands(spread, w, numStd)
		if err != nil {
			return nil, err
		}
		out[w] = b
	}
	return out, nil
}
