package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// HedgeResult es la relación OLS legA ≈ Ratio·legB + Intercept.
// Se estima una sola vez sobre toda la muestra alineada.
type HedgeResult struct {
	Ratio       float64 `json:"ratio"`
	Intercept   float64 `json:"intercept"`
	RSquared    float64 `json:"r_squared"`
	ResidualStd float64 `json:"residual_std"`
	NObs        int     `json:"nobs"`
}

// EstimateHedgeRatio ajusta legA ≈ ratio·legB + intercept por mínimos cuadrados.
func EstimateHedgeRatio(a, b PriceSeries) (HedgeResult, error) {
	return estimateHedge(a, b, false)
}

// EstimateHedgeRatioThroughOrigin ajusta legA ≈ ratio·legB con intercept fijo en 0.
func EstimateHedgeRatioThroughOrigin(a, b PriceSeries) (HedgeResult, error) {
	return estimateHedge(a, b, true)
}

func estimateHedge(a, b PriceSeries, origin bool) (HedgeResult, error) {
	if a.Len() != b.Len() || !a.SameIndex(b) {
		return HedgeResult{}, fmt.Errorf("domain.EstimateHedgeRatio: legs of length %d and %d: %w",
			a.Len(), b.Len(), ErrAlignment)
	}
	n := a.Len()
	if n < 2 {
		return HedgeResult{}, fmt.Errorf("domain.EstimateHedgeRatio: %d observations, need at least 2: %w",
			n, ErrInsufficientData)
	}

	y := a.Values()
	x := b.Values()
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return HedgeResult{}, fmt.Errorf("domain.EstimateHedgeRatio: non-finite price at index %d: %w",
				i, ErrInsufficientData)
		}
	}

	if origin {
		var sxx float64
		for _, v := range x {
			sxx += v * v
		}
		if sxx == 0 {
			return HedgeResult{}, fmt.Errorf("domain.EstimateHedgeRatio: leg B is all zeros: %w", ErrInsufficientData)
		}
	} else if isConstant(x) {
		return HedgeResult{}, fmt.Errorf("domain.EstimateHedgeRatio: leg B is constant: %w", ErrInsufficientData)
	}

	// stat.LinearRegression ajusta y = alpha + beta·x.
	alpha, beta := stat.LinearRegression(x, y, nil, origin)
	if !isFinite(alpha) || !isFinite(beta) {
		return HedgeResult{}, fmt.Errorf("domain.EstimateHedgeRatio: degenerate fit: %w", ErrInsufficientData)
	}

	res := make([]float64, n)
	for i := range y {
		res[i] = y[i] - beta*x[i] - alpha
	}
	residStd := 0.0
	if n > 2 {
		var ssr float64
		for _, r := range res {
			ssr += r * r
		}
		residStd = math.Sqrt(ssr / float64(n-2))
	}

	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) {
		r2 = 0
	}

	return HedgeResult{
		Ratio:       beta,
		Intercept:   alpha,
		RSquared:    r2,
		ResidualStd: residStd,
		NObs:        n,
	}, nil
}

// isConstant indica si el slice tiene dispersión (numéricamente) nula.
func isConstant(x []float64) bool {
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi-lo <= zeroTolerance*math.Max(1, math.Max(math.Abs(lo), math.Abs(hi)))
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
