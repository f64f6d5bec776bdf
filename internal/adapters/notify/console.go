package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out    io.Writer
	trades bool
}

// NewConsole crea un notificador que escribe a stdout. Con trades=true imprime
// además el trade log de la mejor ventana.
func NewConsole(trades bool) *Console {
	return &Console{out: os.Stdout, trades: trades}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, trades bool) *Console {
	return &Console{out: w, trades: trades}
}

// Report imprime el resumen de una corrida: cabecera, tabla por ventana y la
// mejor ventana.
func (c *Console) Report(_ context.Context, run domain.Run) error {
	c.printHeader(run)

	if len(run.Results) == 0 {
		fmt.Fprintln(c.out, "  no window produced a result")
		c.printWindowErrors(run.WindowErrors)
		return nil
	}

	c.printWindows(run)
	c.printWindowErrors(run.WindowErrors)

	best, _ := run.Best()
	fmt.Fprintf(c.out, "\n  best window: %d (k=%.2f) total pnl %s, sharpe %.2f, max dd %.4f\n",
		best.Window, best.NumStd, signed(best.Stats.TotalPnL), best.Stats.Sharpe, best.Stats.MaxDrawdown)

	if c.trades {
		c.printTrades(best)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *Console) printHeader(run domain.Run) {
	fmt.Fprintf(c.out, "\n[%s] %s / %s  %d bars", run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		run.LegA, run.LegB, run.NumPoints)
	if run.Interval != "" {
		fmt.Fprintf(c.out, " (%s)", run.Interval)
	}
	fmt.Fprintf(c.out, "  run %s\n", shortID(run.ID))

	h := run.Hedge
	fmt.Fprintf(c.out, "  hedge: A = %.4f·B + %.4f  R²=%.3f  resid σ=%.4f\n",
		h.Ratio, h.Intercept, h.RSquared, h.ResidualStd)

	adf := run.Stationarity
	verdict := "stationary"
	if !adf.Stationary {
		verdict = "NOT stationary"
	}
	fmt.Fprintf(c.out, "  ADF: stat=%.3f p=%.4f lags=%d  %s", adf.Statistic, adf.PValue, adf.Lags, verdict)
	if cv, ok := adf.CriticalValues["5%"]; ok {
		fmt.Fprintf(c.out, "  (5%% cv %.3f)", cv)
	}
	if adf.HalfLife > 0 {
		fmt.Fprintf(c.out, "  half-life %.1f bars", adf.HalfLife)
	}
	fmt.Fprintln(c.out)
}

// printWindows imprime una fila por ventana, en el orden configurado.
func (c *Console) printWindows(run domain.Run) {
	best, _ := run.Best()

	table := tablewriter.NewWriter(c.out)
	table.Header("Window", "k", "Trades", "Total PnL", "Fees", "Win%", "Avg win", "Avg loss", "Sharpe", "Max DD", "")

	for _, res := range run.Results {
		st := res.Stats
		mark := ""
		if res.Window == best.Window && res.NumStd == best.NumStd {
			mark = "*"
		}
		table.Append(
			fmt.Sprintf("%d", res.Window),
			fmt.Sprintf("%.2f", res.NumStd),
			fmt.Sprintf("%d", st.NumTrades),
			signed(st.TotalPnL),
			fmt.Sprintf("%.4f", st.TotalFees),
			fmt.Sprintf("%.1f", st.WinRate*100),
			fmt.Sprintf("%.4f", st.AvgWin),
			fmt.Sprintf("%.4f", st.AvgLoss),
			fmt.Sprintf("%.2f", st.Sharpe),
			fmt.Sprintf("%.4f", st.MaxDrawdown),
			mark,
		)
	}
	table.Render()
}

func (c *Console) printWindowErrors(errs []domain.WindowError) {
	if len(errs) == 0 {
		return
	}
	sorted := append([]domain.WindowError(nil), errs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Window < sorted[j].Window })
	for _, we := range sorted {
		fmt.Fprintf(c.out, "  ⚠ window %d skipped: %v\n", we.Window, we.Err)
	}
}

// printTrades imprime el trade log de una ventana.
func (c *Console) printTrades(res domain.BacktestResult) {
	if len(res.Trades) == 0 {
		fmt.Fprintf(c.out, "\n  window %d: no trades\n", res.Window)
		return
	}
	fmt.Fprintf(c.out, "\n  trade log, window %d\n", res.Window)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Side", "Entry", "Exit", "Entry spread", "Exit spread", "PnL", "Fees", "Net", "")
	for i, tr := range res.Trades {
		forced := ""
		if tr.Forced {
			forced = "forced"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			sideLabel(tr.Direction),
			formatTime(tr.EntryTime),
			formatTime(tr.ExitTime),
			fmt.Sprintf("%.4f", tr.EntrySpread),
			fmt.Sprintf("%.4f", tr.ExitSpread),
			signed(tr.PnL),
			fmt.Sprintf("%.4f", tr.FeePaid),
			signed(tr.NetPnL()),
			forced,
		)
	}
	table.Render()
}

// PrintHistory imprime las corridas guardadas.
func (c *Console) PrintHistory(runs []domain.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "no stored runs")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Run", "Created", "Pair", "Bars", "Hedge", "ADF p", "Windows", "Best", "Best PnL")
	for _, r := range runs {
		p := fmt.Sprintf("%.4f", r.ADFPValue)
		if !r.Stationary {
			p += " !"
		}
		table.Append(
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.LegA+"/"+r.LegB,
			fmt.Sprintf("%d", r.NumPoints),
			fmt.Sprintf("%.4f", r.HedgeRatio),
			p,
			fmt.Sprintf("%d", r.Windows),
			fmt.Sprintf("%d", r.BestWindow),
			signed(r.BestTotalPnL),
		)
	}
	table.Render()
}

// --- helpers internos ---

func signed(v float64) string {
	if math.Abs(v) < 5e-5 {
		v = 0
	}
	return fmt.Sprintf("%+.4f", v)
}

func sideLabel(p domain.Position) string {
	switch p {
	case domain.LongSpread:
		return "LONG"
	case domain.ShortSpread:
		return "SHORT"
	default:
		return "-"
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

// shortID acorta un UUID a su primer bloque.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
