package backtest

// runner.go: worker pool que corre una simulación por ventana.
//
// Cada ventana es independiente: su propio Simulator, sus propias bandas y su
// propio trade log. El pool solo acelera; el resultado no depende del orden.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// WindowSpec es una configuración de ventana: lookback y multiplicador de bandas.
type WindowSpec struct {
	Window int
	NumStd float64
}

// SpecsFor construye specs con un multiplicador compartido, salvo que
// perWindow tenga uno propio para esa ventana.
func SpecsFor(windows []int, numStd float64, perWindow map[int]float64) []WindowSpec {
	specs := make([]WindowSpec, len(windows))
	for i, w := range windows {
		k := numStd
		if v, ok := perWindow[w]; ok {
			k = v
		}
		specs[i] = WindowSpec{Window: w, NumStd: k}
	}
	return specs
}

// RunnerConfig controla el runner multi-ventana.
type RunnerConfig struct {
	Workers     int  // 0 = runtime.NumCPU()
	SkipReentry bool // no abrir posición en la misma barra en que se cerró la anterior
}

// Runner ejecuta el backtest para varias ventanas en paralelo.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner crea un Runner. Si Workers <= 0 usa runtime.NumCPU().
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Runner{cfg: cfg}
}

// Run corre bands + simulator para cada spec y devuelve los resultados en el
// mismo orden que specs. Las ventanas que fallan se omiten del slice y se
// devuelven como *domain.WindowError dentro de un errors.Join.
//
// Un fee inválido falla la llamada completa con domain.ErrInvalidConfig.
func (r *Runner) Run(ctx context.Context, spread domain.Spread, specs []WindowSpec, fee float64) ([]domain.BacktestResult, error) {
	if !validFee(fee) {
		return nil, fmt.Errorf("backtest.Runner.Run: fee %v must be a non-negative number: %w", fee, domain.ErrInvalidConfig)
	}
	if len(specs) == 0 {
		return nil, nil
	}

	workers := r.cfg.Workers
	if workers > len(specs) {
		workers = len(specs)
	}

	type outcome struct {
		result domain.BacktestResult
		err    error
	}
	// Un slot por spec: cada worker escribe solo en el índice que recibió.
	slots := make([]outcome, len(specs))
	workCh := make(chan int, len(specs))

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				spec := specs[idx]
				if err := ctx.Err(); err != nil {
					slots[idx] = outcome{err: err}
					continue
				}
				sim := NewSimulator(spec.Window, spec.NumStd, fee, WithReentryOnExit(!r.cfg.SkipReentry))
				res, err := sim.Run(spread)
				if err != nil {
					slog.Debug("window failed", "window", spec.Window, "err", err)
					slots[idx] = outcome{err: err}
					continue
				}
				slots[idx] = outcome{result: res}
			}
		}()
	}

	for i := range specs {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	results := make([]domain.BacktestResult, 0, len(specs))
	var errs []error
	for i, o := range slots {
		if o.err != nil {
			errs = append(errs, &domain.WindowError{Window: specs[i].Window, Err: o.err})
			continue
		}
		results = append(results, o.result)
	}

	slog.Debug("multi-window backtest complete",
		"windows", len(specs),
		"ok", len(results),
		"failed", len(errs),
		"workers", workers,
		"elapsed", time.Since(start),
	)

	return results, errors.Join(errs...)
}

// RunMultiWindowBacktest corre una simulación por ventana con un num_std
// compartido, usando un worker por CPU.
func RunMultiWindowBacktest(ctx context.Context, spread domain.Spread, windows []int, numStd, fee float64) ([]domain.BacktestResult, error) {
	r := NewRunner(RunnerConfig{})
	return r.Run(ctx, spread, SpecsFor(windows, numStd, nil), fee)
}

// WindowErrors extrae los errores por ventana de un error devuelto por Run.
func WindowErrors(err error) []domain.WindowError {
	if err == nil {
		return nil
	}
	var out []domain.WindowError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			var we *domain.WindowError
			if errors.As(e, &we) {
				out = append(out, *we)
			}
		}
		return out
	}
	var we *domain.WindowError
	if errors.As(err, &we) {
		out = append(out, *we)
	}
	return out
}
