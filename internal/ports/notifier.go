package ports

import (
	"context"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// Notifier presenta el resultado de una corrida al usuario.
type Notifier interface {
	// Report muestra el resumen de la corrida.
	// En la implementación de consola, imprime tablas formateadas.
	Report(ctx context.Context, run domain.Run) error
}
