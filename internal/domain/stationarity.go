package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSignificance es el p-value por debajo del cual un spread cuenta como estacionario.
const DefaultSignificance = 0.05

// StationarityResult es el resultado de un test Dickey-Fuller aumentado sobre un spread.
type StationarityResult struct {
	Statistic      float64            `json:"statistic"`
	PValue         float64            `json:"p_value"`
	Lags           int                `json:"lags"`
	NObs           int                `json:"nobs"`
	CriticalValues map[string]float64 `json:"critical_values"`
	HalfLife       float64            `json:"half_life"` // en barras; 0 si no revierte a la media
	Stationary     bool               `json:"stationary"`
}

// StationaryAt reevalúa el veredicto con otro nivel de significancia.
func (r StationarityResult) StationaryAt(maxPValue float64) bool {
	return r.PValue <= maxPValue
}

// Superficie de respuesta de MacKinnon (1994), caso con constante, una variable.
const (
	tauMaxC  = 2.74
	tauMinC  = -18.83
	tauStarC = -1.61
)

var (
	tauSmallPC = []float64{2.1659, 1.4412, 0.038269}
	tauLargePC = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// Coeficientes de valores críticos de MacKinnon (2010), caso con constante.
var tauC2010 = map[string][4]float64{
	"1%":  {-3.43035, -6.5393, -16.786, -79.433},
	"5%":  {-2.86154, -2.8903, -4.234, -40.040},
	"10%": {-2.56677, -1.5384, -2.809, 0},
}

// ADFTest corre un test Dickey-Fuller aumentado con término constante.
// El orden de lags se elige por AIC hasta ceil(12·(n/100)^¼). Los valores no
// finitos se descartan antes del test.
func ADFTest(values []float64) (StationarityResult, error) {
	y := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			y = append(y, v)
		}
	}
	n := len(y)

	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 2; maxLag > limit {
		maxLag = limit
	}
	if maxLag < 0 || n < 6 {
		return StationarityResult{}, fmt.Errorf("domain.ADFTest: %d observations: %w", n, ErrInsufficientData)
	}
	if isConstant(y) {
		return StationarityResult{}, fmt.Errorf("domain.ADFTest: series is constant: %w", ErrInsufficientData)
	}

	dy := make([]float64, n-1)
	for i := 1; i < n; i++ {
		dy[i-1] = y[i] - y[i-1]
	}

	// Selección de lags sobre una muestra común: los AIC tienen que ser comparables.
	bestLag, bestAIC := 0, math.Inf(1)
	for p := 0; p <= maxLag; p++ {
		fit, err := adfRegression(y, dy, p, maxLag)
		if err != nil {
			continue
		}
		nobs := float64(fit.nobs)
		aic := nobs*math.Log(fit.ssr/nobs) + 2*float64(fit.k)
		if aic < bestAIC {
			bestAIC, bestLag = aic, p
		}
	}

	fit, err := adfRegression(y, dy, bestLag, bestLag)
	if err != nil {
		return StationarityResult{}, fmt.Errorf("domain.ADFTest: regression with %d lags: %w", bestLag, err)
	}

	tau := fit.gamma / fit.gammaSE
	crit := make(map[string]float64, len(tauC2010))
	for level, b := range tauC2010 {
		nobs := float64(fit.nobs)
		crit[level] = b[0] + b[1]/nobs + b[2]/(nobs*nobs) + b[3]/(nobs*nobs*nobs)
	}

	p := mackinnonP(tau)
	return StationarityResult{
		Statistic:      tau,
		PValue:         p,
		Lags:           bestLag,
		NObs:           fit.nobs,
		CriticalValues: crit,
		HalfLife:       HalfLife(y),
		Stationary:     p <= DefaultSignificance,
	}, nil
}

type adfFit struct {
	gamma   float64
	gammaSE float64
	ssr     float64
	nobs    int
	k       int
}

// adfRegression ajusta Δy_t = α + γ·y_{t-1} + Σ β_i·Δy_{t-i} con las filas t >= start.
func adfRegression(y, dy []float64, lags, start int) (adfFit, error) {
	rows := len(dy) - start
	k := lags + 2
	if rows <= k {
		return adfFit{}, ErrInsufficientData
	}

	X := mat.NewDense(rows, k, nil)
	resp := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := start + r
		X.Set(r, 0, 1)
		X.Set(r, 1, y[t])
		for i := 1; i <= lags; i++ {
			X.Set(r, 1+i, dy[t-i])
		}
		resp.SetVec(r, dy[t])
	}

	beta, se, ssr, err := olsFit(X, resp)
	if err != nil {
		return adfFit{}, err
	}
	return adfFit{gamma: beta[1], gammaSE: se[1], ssr: ssr, nobs: rows, k: k}, nil
}

// olsFit resuelve mínimos cuadrados por QR y devuelve los coeficientes, sus
// errores estándar y la suma de cuadrados de los residuos.
func olsFit(X *mat.Dense, y *mat.VecDense) (beta, se []float64, ssr float64, err error) {
	rows, cols := X.Dims()

	var qr mat.QR
	qr.Factorize(X)
	var b mat.VecDense
	if err := qr.SolveVecTo(&b, false, y); err != nil {
		return nil, nil, 0, fmt.Errorf("solve: %v: %w", err, ErrInsufficientData)
	}

	var fitted mat.VecDense
	fitted.MulVec(X, &b)
	for i := 0; i < rows; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		ssr += r * r
	}

	var xtx, inv mat.Dense
	xtx.Mul(X.T(), X)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, nil, 0, fmt.Errorf("invert: %v: %w", err, ErrInsufficientData)
	}

	sigma2 := ssr / float64(rows-cols)
	beta = make([]float64, cols)
	se = make([]float64, cols)
	for j := 0; j < cols; j++ {
		beta[j] = b.AtVec(j)
		se[j] = math.Sqrt(sigma2 * inv.At(j, j))
	}
	return beta, se, ssr, nil
}

// mackinnonP aproxima el p-value ADF para el caso con constante.
func mackinnonP(tau float64) float64 {
	switch {
	case math.IsNaN(tau):
		return 1
	case tau > tauMaxC:
		return 1
	case tau < tauMinC:
		return 0
	}
	coef := tauLargePC
	if tau <= tauStarC {
		coef = tauSmallPC
	}
	var poly, pow float64 = 0, 1
	for _, c := range coef {
		poly += c * pow
		pow *= tau
	}
	return distuv.UnitNormal.CDF(poly)
}

// HalfLife estima la vida media de reversión de una serie con un ajuste AR(1)
// Δy_t = c + λ·y_{t-1}. Devuelve 0 si la serie no revierte a la media.
func HalfLife(y []float64) float64 {
	if len(y) < 3 {
		return 0
	}
	lagged := y[:len(y)-1]
	delta := make([]float64, len(y)-1)
	for i := 1; i < len(y); i++ {
		delta[i-1] = y[i] - y[i-1]
	}
	if isConstant(lagged) {
		return 0
	}
	_, lambda := stat.LinearRegression(lagged, delta, nil, false)
	if lambda >= 0 || lambda <= -1 {
		return 0
	}
	hl := -math.Ln2 / math.Log(1+lambda)
	if !isFinite(hl) || hl < 0 {
		return 0
	}
	return hl
}
