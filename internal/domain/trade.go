package domain

import "time"

// Trade es una ida y vuelta completa sobre el spread.
type Trade struct {
	EntryTime   time.Time
	ExitTime    time.Time
	Direction   Position
	EntrySpread float64
	ExitSpread  float64
	PnL         float64 // bruto: sign · (exit − entry)
	FeePaid     float64 // fee de entrada + fee de salida
	Forced      bool    // cerrado por el mark-to-market de fin de serie
}

// NetPnL es el resultado del trade neto de fees.
func (t Trade) NetPnL() float64 {
	return t.PnL - t.FeePaid
}

// Duration es el tiempo que se mantuvo la posición.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// EquityPoint es una muestra de la curva de equity.
type EquityPoint struct {
	Time     time.Time
	Equity   float64
	Position Position
}
