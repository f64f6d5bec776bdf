package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// Storage persiste cada corrida del pipeline con sus resultados por ventana.
type Storage interface {
	// SaveRun persiste la corrida completa: cabecera, stats por ventana,
	// trade log y equity curve.
	SaveRun(ctx context.Context, run domain.Run) error

	// ListRuns devuelve las últimas corridas, más recientes primero.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// GetRun reconstruye una corrida guardada. Devuelve domain.ErrRunNotFound
	// si el ID no existe.
	GetRun(ctx context.Context, id string) (domain.Run, error)

	// Prune borra las corridas creadas antes de cutoff y devuelve cuántas borró.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
