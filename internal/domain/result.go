package domain

import "time"

// BacktestResult es el resultado de una configuración de ventana.
// No se modifica después de que el simulador lo devuelve.
type BacktestResult struct {
	Window      int
	NumStd      float64
	Fee         float64
	Bands       Bands
	EquityCurve []EquityPoint
	Trades      []Trade
	Stats       Stats
}

// FinalEquity devuelve el último valor de equity, 0 si la curva está vacía.
func (r BacktestResult) FinalEquity() float64 {
	if len(r.EquityCurve) == 0 {
		return 0
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Equity
}

// EquityValues devuelve la curva de equity como slice plano.
func (r BacktestResult) EquityValues() []float64 {
	out := make([]float64, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		out[i] = p.Equity
	}
	return out
}

// Run es una ejecución completa del pipeline sobre un par.
type Run struct {
	ID           string
	CreatedAt    time.Time
	LegA         string
	LegB         string
	Interval     string
	NumPoints    int
	Hedge        HedgeResult
	Stationarity StationarityResult
	Spread       Spread // solo en memoria; vacío en corridas leídas del storage
	Results      []BacktestResult
	WindowErrors []WindowError
}

// Best devuelve el resultado con mayor pnl total (el primero si hay empate).
func (r Run) Best() (BacktestResult, bool) {
	if len(r.Results) == 0 {
		return BacktestResult{}, false
	}
	best := r.Results[0]
	for _, res := range r.Results[1:] {
		if res.Stats.TotalPnL > best.Stats.TotalPnL {
			best = res
		}
	}
	return best, true
}

// RunSummary es la cabecera guardada de una corrida, para listados.
type RunSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LegA         string    `json:"leg_a"`
	LegB         string    `json:"leg_b"`
	Interval     string    `json:"interval"`
	NumPoints    int       `json:"num_points"`
	HedgeRatio   float64   `json:"hedge_ratio"`
	Intercept    float64   `json:"intercept"`
	ADFPValue    float64   `json:"adf_p_value"`
	Stationary   bool      `json:"stationary"`
	Windows      int       `json:"windows"`
	BestWindow   int       `json:"best_window"`
	BestTotalPnL float64   `json:"best_total_pnl"`
}
