package backtest

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// Simulator convierte las bandas móviles de un spread en un trade log y una
// curva de equity. No guarda estado entre corridas: cada Run arma su propio book.
type Simulator struct {
	window        int
	numStd        float64
	fee           float64
	reenterOnExit bool
}

// Option personaliza un Simulator.
type Option func(*Simulator)

// WithReentryOnExit controla si se puede abrir una entrada en la misma barra
// que cerró la posición anterior. Habilitado por defecto.
func WithReentryOnExit(enabled bool) Option {
	return func(s *Simulator) { s.reenterOnExit = enabled }
}

// NewSimulator crea un simulador para una configuración de ventana.
// fee es un costo fijo que se cobra en cada pata (entrada y salida).
func NewSimulator(window int, numStd, fee float64, opts ...Option) *Simulator {
	s := &Simulator{
		window:        window,
		numStd:        numStd,
		fee:           fee,
		reenterOnExit: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// book es el estado mutable de una corrida. Nunca sale de Run si hay error.
type book struct {
	pos        domain.Position
	entryIdx   int
	entryValue float64
	realized   float64
	trades     []domain.Trade
	equity     []domain.EquityPoint
}

// Run simula la regla de reversión a la media con bandas sobre spread.
//
// Por timestamp: las barras de warm-up no hacen nada; primero se cierra la
// posición abierta (short si spread <= media, long si spread >= media); después,
// si quedó flat, se abre una nueva (short en o sobre la banda superior, long en
// o bajo la inferior). Una posición abierta en la última barra se cierra ahí.
func (s *Simulator) Run(spread domain.Spread) (domain.BacktestResult, error) {
	if !validFee(s.fee) {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Simulator.Run: fee %v: %w", s.fee, domain.ErrInvalidConfig)
	}
	bands, err := domain.ComputeBands(spread, s.window, s.numStd)
	if err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Simulator.Run: %w", err)
	}

	n := spread.Len()
	b := &book{equity: make([]domain.EquityPoint, 0, n)}
	last := n - 1

	for t, p := range spread.Points {
		if !finite(p.Value) {
			return domain.BacktestResult{}, fmt.Errorf("backtest.Simulator.Run: spread at %s is %v: %w",
				p.Time.Format(time.RFC3339), p.Value, domain.ErrSimulation)
		}
		st := bands.States[t]

		if st.Defined {
			if !finite(st.Mean) || !finite(st.Std) || !finite(st.Upper) || !finite(st.Lower) {
				return domain.BacktestResult{}, fmt.Errorf("backtest.Simulator.Run: band at index %d not finite: %w",
					t, domain.ErrSimulation)
			}

			exited := false
			switch {
			case b.pos == domain.ShortSpread && p.Value <= st.Mean,
				b.pos == domain.LongSpread && p.Value >= st.Mean:
				s.close(b, spread, t, false)
				exited = true
			}

			canEnter := b.pos == domain.Flat && st.Std > 0 && t < last && (!exited || s.reenterOnExit)
			if canEnter {
				switch {
				case p.Value >= st.Upper:
					s.open(b, domain.ShortSpread, t, p.Value)
				case p.Value <= st.Lower:
					s.open(b, domain.LongSpread, t, p.Value)
				}
			}
		}

		if t == last && b.pos != domain.Flat {
			s.close(b, spread, t, true)
		}

		eq := b.realized
		if b.pos != domain.Flat {
			eq += b.pos.Sign() * (p.Value - b.entryValue)
		}
		if !finite(eq) {
			return domain.BacktestResult{}, fmt.Errorf("backtest.Simulator.Run: equity at index %d is %v: %w",
				t, eq, domain.ErrSimulation)
		}
		b.equity = append(b.equity, domain.EquityPoint{Time: p.Time, Equity: eq, Position: b.pos})
	}

	stats := domain.ComputeStats(b.equity, b.trades)
	slog.Debug("window simulated",
		"window", s.window,
		"num_std", s.numStd,
		"trades", stats.NumTrades,
		"total_pnl", stats.TotalPnL,
	)

	return domain.BacktestResult{
		Window:      s.window,
		NumStd:      s.numStd,
		Fee:         s.fee,
		Bands:       bands,
		EquityCurve: b.equity,
		Trades:      b.trades,
		Stats:       stats,
	}, nil
}

func (s *Simulator) open(b *book, dir domain.Position, t int, value float64) {
	b.pos = dir
	b.entryIdx = t
	b.entryValue = value
	b.realized -= s.fee
}

func (s *Simulator) close(b *book, spread domain.Spread, t int, forced bool) {
	exit := spread.Points[t].Value
	pnl := b.pos.Sign() * (exit - b.entryValue)
	b.realized += pnl - s.fee
	b.trades = append(b.trades, domain.Trade{
		EntryTime:   spread.Points[b.entryIdx].Time,
		ExitTime:    spread.Points[t].Time,
		Direction:   b.pos,
		EntrySpread: b.entryValue,
		ExitSpread:  exit,
		PnL:         pnl,
		FeePaid:     2 * s.fee,
		Forced:      forced,
	})
	b.pos = domain.Flat
}

func validFee(fee float64) bool {
	return fee >= 0 && finite(fee)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
