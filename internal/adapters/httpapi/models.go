package httpapi

import (
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// BacktestRequest es el body de POST /api/v1/backtest.
type BacktestRequest struct {
	LegA                LegInput        `json:"leg_a"`
	LegB                LegInput        `json:"leg_b"`
	Windows             []int           `json:"windows"`
	NumStd              float64         `json:"num_std"`
	PerWindowNumStd     map[int]float64 `json:"per_window_num_std"`
	Fee                 *float64        `json:"fee"`
	Intercept           *bool           `json:"intercept"`
	MaxPValue           float64         `json:"max_p_value"`
	EnforceStationarity bool            `json:"enforce_stationarity"`
	Save                bool            `json:"save"`
	Detail              bool            `json:"detail"`
}

// LegInput es una pata enviada inline como [{time, value}].
type LegInput struct {
	Name   string         `json:"name"`
	Points []domain.Point `json:"points" binding:"required"`
}

// BacktestResponse describe una corrida, nueva o guardada.
type BacktestResponse struct {
	ID           string                    `json:"id"`
	CreatedAt    time.Time                 `json:"created_at"`
	LegA         string                    `json:"leg_a"`
	LegB         string                    `json:"leg_b"`
	Interval     string                    `json:"interval,omitempty"`
	NumPoints    int                       `json:"num_points"`
	Hedge        domain.HedgeResult        `json:"hedge"`
	Stationarity domain.StationarityResult `json:"stationarity"`
	BestWindow   int                       `json:"best_window"`
	Windows      []WindowSummary           `json:"windows"`
	WindowErrors []WindowErrorInfo         `json:"window_errors,omitempty"`
	Saved        bool                      `json:"saved"`
}

// WindowSummary tiene las stats de una ventana, y su ledger si se pidió.
type WindowSummary struct {
	Window int          `json:"window"`
	NumStd float64      `json:"num_std"`
	Fee    float64      `json:"fee"`
	Stats  domain.Stats `json:"stats"`
	Trades []TradeRow   `json:"trades,omitempty"`
	Equity []EquityRow  `json:"equity,omitempty"`
}

type TradeRow struct {
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
	Direction   string    `json:"direction"`
	EntrySpread float64   `json:"entry_spread"`
	ExitSpread  float64   `json:"exit_spread"`
	PnL         float64   `json:"pnl"`
	FeePaid     float64   `json:"fee_paid"`
	Forced      bool      `json:"forced"`
}

type EquityRow struct {
	Time     time.Time `json:"time"`
	Equity   float64   `json:"equity"`
	Position string    `json:"position"`
}

type WindowErrorInfo struct {
	Window int    `json:"window"`
	Error  string `json:"error"`
}

// RunsResponse es el body de GET /api/v1/runs.
type RunsResponse struct {
	Runs []domain.RunSummary `json:"runs"`
}

// ErrorResponse envuelve todo error que devuelve la API.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newBacktestResponse(run domain.Run, detail, saved bool) BacktestResponse {
	resp := BacktestResponse{
		ID:           run.ID,
		CreatedAt:    run.CreatedAt,
		LegA:         run.LegA,
		LegB:         run.LegB,
		Interval:     run.Interval,
		NumPoints:    run.NumPoints,
		Hedge:        run.Hedge,
		Stationarity: run.Stationarity,
		Windows:      make([]WindowSummary, 0, len(run.Results)),
		Saved:        saved,
	}
	if best, ok := run.Best(); ok {
		resp.BestWindow = best.Window
	}
	for _, res := range run.Results {
		ws := WindowSummary{Window: res.Window, NumStd: res.NumStd, Fee: res.Fee, Stats: res.Stats}
		if detail {
			ws.Trades = make([]TradeRow, len(res.Trades))
			for i, t := range res.Trades {
				ws.Trades[i] = TradeRow{
					EntryTime:   t.EntryTime,
					ExitTime:    t.ExitTime,
					Direction:   t.Direction.String(),
					EntrySpread: t.EntrySpread,
					ExitSpread:  t.ExitSpread,
					PnL:         t.PnL,
					FeePaid:     t.FeePaid,
					Forced:      t.Forced,
				}
			}
			ws.Equity = make([]EquityRow, len(res.EquityCurve))
			for i, p := range res.EquityCurve {
				ws.Equity[i] = EquityRow{Time: p.Time, Equity: p.Equity, Position: p.Position.String()}
			}
		}
		resp.Windows = append(resp.Windows, ws)
	}
	for _, we := range run.WindowErrors {
		msg := ""
		if we.Err != nil {
			msg = we.Err.Error()
		}
		resp.WindowErrors = append(resp.WindowErrors, WindowErrorInfo{Window: we.Window, Error: msg})
	}
	return resp
}
