package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// pricePlaces es la cantidad fija de decimales para valores de spread y pnl.
const pricePlaces = 8

var tradeHeader = []string{
	"entry_time", "exit_time", "direction",
	"entry_spread", "exit_spread", "pnl", "fee_paid", "net_pnl", "forced",
}

// WriteTradesCSV escribe un trade log, una fila por trade cerrado.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("export.WriteTradesCSV: header: %w", err)
	}
	for i, t := range trades {
		row := []string{
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			t.Direction.String(),
			fixed(t.EntrySpread),
			fixed(t.ExitSpread),
			fixed(t.PnL),
			fixed(t.FeePaid),
			fixed(t.NetPnL()),
			fmt.Sprintf("%t", t.Forced),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export.WriteTradesCSV: row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export.WriteTradesCSV: flush: %w", err)
	}
	return nil
}

// WriteEquityCSV escribe la curva de equity con la posición de cada barra.
func WriteEquityCSV(w io.Writer, curve []domain.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "equity", "position"}); err != nil {
		return fmt.Errorf("export.WriteEquityCSV: header: %w", err)
	}
	for i, p := range curve {
		if err := cw.Write([]string{p.Time.UTC().Format(time.RFC3339), fixed(p.Equity), p.Position.String()}); err != nil {
			return fmt.Errorf("export.WriteEquityCSV: row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export.WriteEquityCSV: flush: %w", err)
	}
	return nil
}

// fixed formatea v con pricePlaces decimales, sin ruido de float tipo 0.30000000000000004.
func fixed(v float64) string {
	return decimal.NewFromFloat(v).Round(pricePlaces).StringFixed(pricePlaces)
}
