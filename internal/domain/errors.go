package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData: muy pocos puntos para estimar, o un regresor degenerado.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrAlignment: las dos patas no comparten el mismo índice de timestamps.
	ErrAlignment = errors.New("series not aligned")
	// ErrInvalidWindow: ventana móvil fuera de rango para el largo de la serie.
	ErrInvalidWindow = errors.New("invalid window")
	// ErrSimulation: un valor no finito llegó al simulador de posiciones.
	ErrSimulation = errors.New("simulation error")
	// ErrInvalidConfig: multiplicador de bandas, fee u otro parámetro fuera de rango.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNotStationary: el spread no pasó el test de estacionariedad.
	ErrNotStationary = errors.New("spread not stationary")
	// ErrRunNotFound: no hay corrida guardada con ese ID.
	ErrRunNotFound = errors.New("run not found")
)

// WindowError registra la falla de una ventana en una corrida multi-ventana.
type WindowError struct {
	Window int
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %d: %v", e.Window, e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}
