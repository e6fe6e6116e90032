package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// PriceProvider obtiene las dos series del par ya alineadas por fecha.
type PriceProvider interface {
	// FetchPair devuelve los cierres diarios de Y y X en [from, to),
	// unidos por fecha y en orden ascendente.
	FetchPair(ctx context.Context, pair domain.Pair, from, to time.Time) ([]domain.PricePoint, error)
}
