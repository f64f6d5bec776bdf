package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/statarb/internal/domain"
	"github.com/alejandrodnm/statarb/internal/ports"
)

// StationarityTest evalúa un spread antes de operarlo.
type StationarityTest func(values []float64) (domain.StationarityResult, error)

// PairSpec identifica las dos patas y cómo llevarlas a una misma moneda.
type PairSpec struct {
	LegA         string
	LegB         string
	FX           map[string]string // ticker de la pata -> ticker FX que la convierte
	BaseCurrency string
	Interval     string
	Start        time.Time
	End          time.Time
}

// PipelineConfig tiene todo lo que necesita una corrida además de sus colaboradores.
type PipelineConfig struct {
	Pair                PairSpec
	Intercept           bool
	MaxPValue           float64
	EnforceStationarity bool
	Specs               []WindowSpec
	Fee                 float64
	Runner              RunnerConfig
	Stationarity        StationarityTest // nil = domain.ADFTest
}

// Pipeline corre load -> hedge -> spread -> stationarity -> backtest -> persist -> report.
type Pipeline struct {
	provider ports.PriceProvider
	storage  ports.Storage
	notifier ports.Notifier
	runner   *Runner
	cfg      PipelineConfig
	now      func() time.Time
}

// NewPipeline crea un Pipeline. storage y notifier pueden ser nil.
func NewPipeline(provider ports.PriceProvider, storage ports.Storage, notifier ports.Notifier, cfg PipelineConfig) *Pipeline {
	if cfg.Stationarity == nil {
		cfg.Stationarity = domain.ADFTest
	}
	if cfg.MaxPValue <= 0 {
		cfg.MaxPValue = domain.DefaultSignificance
	}
	return &Pipeline{
		provider: provider,
		storage:  storage,
		notifier: notifier,
		runner:   NewRunner(cfg.Runner),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run ejecuta una pasada completa y devuelve la corrida resultante.
func (p *Pipeline) Run(ctx context.Context) (domain.Run, error) {
	pair, err := LoadPair(ctx, p.provider, p.cfg.Pair)
	if err != nil {
		return domain.Run{}, fmt.Errorf("backtest.Pipeline.Run: %w", err)
	}
	slog.Info("pair loaded",
		"leg_a", p.cfg.Pair.LegA,
		"leg_b", p.cfg.Pair.LegB,
		"points", pair.Len(),
		"currency_a", pair.CurrencyA,
		"currency_b", pair.CurrencyB,
	)

	run, err := p.Analyze(ctx, pair)
	if err != nil {
		return domain.Run{}, fmt.Errorf("backtest.Pipeline.Run: %w", err)
	}
	run.Interval = p.cfg.Pair.Interval

	if p.storage != nil {
		if err := p.storage.SaveRun(ctx, run); err != nil {
			slog.Warn("failed to save run", "run_id", run.ID, "err", err)
		}
	}
	if p.notifier != nil {
		if err := p.notifier.Report(ctx, run); err != nil {
			slog.Warn("failed to report run", "run_id", run.ID, "err", err)
		}
	}
	return run, nil
}

// Analyze corre el núcleo sobre un par ya alineado. No persiste ni reporta
// nada.
func (p *Pipeline) Analyze(ctx context.Context, pair domain.PairData) (domain.Run, error) {
	estimate := domain.EstimateHedgeRatio
	if !p.cfg.Intercept {
		estimate = domain.EstimateHedgeRatioThroughOrigin
	}
	hedge, err := estimate(pair.A, pair.B)
	if err != nil {
		return domain.Run{}, fmt.Errorf("hedge: %w", err)
	}

	spread, err := domain.ComputeSpread(pair.A, pair.B, hedge.Ratio, hedge.Intercept)
	if err != nil {
		return domain.Run{}, fmt.Errorf("spread: %w", err)
	}
	slog.Info("hedge estimated",
		"ratio", hedge.Ratio,
		"intercept", hedge.Intercept,
		"r_squared", hedge.RSquared,
	)

	adf, err := p.checkStationarity(spread)
	if err != nil {
		return domain.Run{}, err
	}

	results, err := p.runner.Run(ctx, spread, p.cfg.Specs, p.cfg.Fee)
	windowErrs := WindowErrors(err)
	switch {
	case err != nil && len(windowErrs) == 0:
		return domain.Run{}, fmt.Errorf("backtest: %w", err)
	case err != nil && len(results) == 0:
		return domain.Run{}, fmt.Errorf("backtest: every window failed: %w", err)
	}
	for _, we := range windowErrs {
		slog.Warn("window skipped", "window", we.Window, "err", we.Err)
	}

	run := domain.Run{
		ID:           uuid.New().String(),
		CreatedAt:    p.now().UTC(),
		LegA:         pair.A.Name,
		LegB:         pair.B.Name,
		NumPoints:    pair.Len(),
		Hedge:        hedge,
		Stationarity: adf,
		Spread:       spread,
		Results:      results,
		WindowErrors: windowErrs,
	}
	if best, ok := run.Best(); ok {
		slog.Info("backtest complete",
			"run_id", run.ID,
			"windows", len(results),
			"best_window", best.Window,
			"best_total_pnl", best.Stats.TotalPnL,
		)
	}
	return run, nil
}

// checkStationarity aplica el filtro. Si el test falla solo se loguea un warning,
// salvo que el pipeline exija estacionariedad.
func (p *Pipeline) checkStationarity(spread domain.Spread) (domain.StationarityResult, error) {
	res, err := p.cfg.Stationarity(spread.Values())
	if err != nil {
		if p.cfg.EnforceStationarity {
			return domain.StationarityResult{}, fmt.Errorf("stationarity: %w", err)
		}
		slog.Warn("stationarity test failed, continuing", "err", err)
		return domain.StationarityResult{PValue: 1}, nil
	}
	res.Stationary = res.StationaryAt(p.cfg.MaxPValue)
	if res.Stationary {
		slog.Info("spread stationary", "adf", res.Statistic, "p_value", res.PValue, "half_life", res.HalfLife)
		return res, nil
	}
	if p.cfg.EnforceStationarity {
		return domain.StationarityResult{}, fmt.Errorf("stationarity: p-value %.4f > %.4f: %w",
			res.PValue, p.cfg.MaxPValue, domain.ErrNotStationary)
	}
	slog.Warn("spread may not be stationary", "adf", res.Statistic, "p_value", res.PValue, "max_p_value", p.cfg.MaxPValue)
	return res, nil
}

// LoadPair trae las dos patas (y la serie FX de cada pata que no cotiza en la
// moneda base) y las alinea sobre sus timestamps comunes.
func LoadPair(ctx context.Context, provider ports.PriceProvider, spec PairSpec) (domain.PairData, error) {
	if spec.LegA == "" || spec.LegB == "" {
		return domain.PairData{}, fmt.Errorf("backtest.LoadPair: both legs are required: %w", domain.ErrInvalidConfig)
	}
	base := strings.ToUpper(spec.BaseCurrency)
	if base == "" {
		base = "USD"
	}

	a, err := provider.Fetch(ctx, spec.LegA, spec.Start, spec.End, spec.Interval)
	if err != nil {
		return domain.PairData{}, fmt.Errorf("backtest.LoadPair: fetch %s: %w", spec.LegA, err)
	}
	b, err := provider.Fetch(ctx, spec.LegB, spec.Start, spec.End, spec.Interval)
	if err != nil {
		return domain.PairData{}, fmt.Errorf("backtest.LoadPair: fetch %s: %w", spec.LegB, err)
	}

	cache := make(map[string]domain.PriceSeries)
	fxFor := func(ticker string, data domain.PriceData) (*domain.FXLeg, error) {
		if data.Currency == base {
			return nil, nil
		}
		fxTicker, ok := spec.FX[ticker]
		if !ok || fxTicker == "" {
			return nil, fmt.Errorf("backtest.LoadPair: %s is quoted in %s but no FX ticker converts it to %s: %w",
				ticker, data.Currency, base, domain.ErrInvalidConfig)
		}
		if s, ok := cache[fxTicker]; ok {
			return &domain.FXLeg{Ticker: fxTicker, Series: s}, nil
		}
		fx, err := provider.Fetch(ctx, fxTicker, spec.Start, spec.End, spec.Interval)
		if err != nil {
			return nil, fmt.Errorf("backtest.LoadPair: fetch FX %s: %w", fxTicker, err)
		}
		cache[fxTicker] = fx.Series
		return &domain.FXLeg{Ticker: fxTicker, Series: fx.Series}, nil
	}

	fxA, err := fxFor(spec.LegA, a)
	if err != nil {
		return domain.PairData{}, err
	}
	fxB, err := fxFor(spec.LegB, b)
	if err != nil {
		return domain.PairData{}, err
	}

	pair, err := domain.AlignPair(a, b, base, fxA, fxB)
	if err != nil {
		return domain.PairData{}, fmt.Errorf("backtest.LoadPair: align: %w", err)
	}
	if pair.Len() < 2 {
		return domain.PairData{}, fmt.Errorf("backtest.LoadPair: %d common timestamps: %w",
			pair.Len(), domain.ErrInsufficientData)
	}
	return pair, nil
}

// IsInputError indica si err viene de un input inválido y no de una falla de
// un colaborador.
func IsInputError(err error) bool {
	return errors.Is(err, domain.ErrInsufficientData) ||
		errors.Is(err, domain.ErrAlignment) ||
		errors.Is(err, domain.ErrInvalidWindow) ||
		errors.Is(err, domain.ErrInvalidConfig) ||
		errors.Is(err, domain.ErrNotStationary)
}
