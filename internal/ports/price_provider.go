package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// PriceProvider obtiene la serie de cierres de un ticker.
type PriceProvider interface {
	// Fetch devuelve los cierres en [start, end] a la granularidad interval
	// ("1d", "1h", ...), normalizados con domain.NewPriceData.
	Fetch(ctx context.Context, ticker string, start, end time.Time, interval string) (domain.PriceData, error)
}
