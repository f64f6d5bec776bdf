package domain

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stats resume el backtest de una ventana.
type Stats struct {
	TotalPnL    float64 `json:"total_pnl"` // Σ raw pnl − Σ fees
	TotalFees   float64 `json:"total_fees"`
	NumTrades   int     `json:"num_trades"`
	WinRate     float64 `json:"win_rate"` // fracción de trades con pnl neto > 0
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	Sharpe      float64 `json:"sharpe"`       // media/std de los deltas de equity por período
	MaxDrawdown float64 `json:"max_drawdown"` // mayor caída pico a valle, >= 0
}

// ComputeStats calcula las estadísticas a partir de la curva de equity y el trade log.
func ComputeStats(equity []EquityPoint, trades []Trade) Stats {
	var s Stats
	s.NumTrades = len(trades)

	var raw, wins, losses float64
	var nWin, nLoss int
	for _, t := range trades {
		raw += t.PnL
		s.TotalFees += t.FeePaid
		net := t.NetPnL()
		switch {
		case net > 0:
			wins += net
			nWin++
		case net < 0:
			losses += net
			nLoss++
		}
	}
	s.TotalPnL = raw - s.TotalFees
	if s.NumTrades > 0 {
		s.WinRate = float64(nWin) / float64(s.NumTrades)
	}
	if nWin > 0 {
		s.AvgWin = wins / float64(nWin)
	}
	if nLoss > 0 {
		s.AvgLoss = losses / float64(nLoss)
	}

	s.Sharpe = sharpeRatio(equity)
	s.MaxDrawdown = maxDrawdown(equity)
	return s
}

// sharpeRatio es media/std (poblacional) de los cambios de equity entre períodos.
// Devuelve 0 con menos de dos deltas o si los deltas no varían.
func sharpeRatio(equity []EquityPoint) float64 {
	if len(equity) < 3 {
		return 0
	}
	deltas := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		deltas[i-1] = equity[i].Equity - equity[i-1].Equity
	}
	mean, std := stat.PopMeanStdDev(deltas, nil)
	if std <= zeroTolerance*math.Max(1, math.Abs(mean)) || !isFinite(std) {
		return 0
	}
	return mean / std
}

func maxDrawdown(equity []EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0].Equity
	dd := 0.0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if d := peak - p.Equity; d > dd {
			dd = d
		}
	}
	return dd
}
