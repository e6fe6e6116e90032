package estimator

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// OLSPrior estima un hedge ratio estático por mínimos cuadrados sobre los
// primeros n puntos, sin intercepto (mismo modelo Y = β·X que el filtro).
// Sirve como InitialBeta; mira n muestras antes de filtrarlas, así que es opcional.
func OLSPrior(points []domain.PricePoint, n int) (float64, error) {
	if n < 2 {
		return 0, fmt.Errorf("estimator.OLSPrior: warmup must be >= 2, got %d", n)
	}
	if len(points) < n {
		return 0, fmt.Errorf("estimator.OLSPrior: need %d points, got %d", n, len(points))
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = points[i].PriceX
		ys[i] = points[i].PriceY
	}
	_, beta := stat.LinearRegression(xs, ys, nil, true)
	return beta, nil
}
