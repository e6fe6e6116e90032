package yahoo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// Align hace el inner join de dos series diarias por fecha y devuelve
// PricePoints ascendentes. Las fechas presentes en una sola serie se descartan.
func Align(y, x []DailyClose) []domain.PricePoint {
	xs := make(map[time.Time]float64, len(x))
	for _, c := range x {
		xs[c.Date] = c.Close
	}

	seen := make(map[time.Time]bool, len(y))
	out := make([]domain.PricePoint, 0, min(len(x), len(y)))
	for _, c := range y {
		px, ok := xs[c.Date]
		if !ok || seen[c.Date] {
			continue
		}
		seen[c.Date] = true
		out = append(out, domain.PricePoint{Time: c.Date, PriceY: c.Close, PriceX: px})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// FetchPair implementa ports.PriceProvider: descarga Y y X y las alinea.
func (c *Client) FetchPair(ctx context.Context, pair domain.Pair, from, to time.Time) ([]domain.PricePoint, error) {
	y, err := c.FetchDaily(ctx, pair.TickerY, from, to)
	if err != nil {
		return nil, err
	}
	x, err := c.FetchDaily(ctx, pair.TickerX, from, to)
	if err != nil {
		return nil, err
	}
	if len(y) == 0 || len(x) == 0 {
		return nil, fmt.Errorf("yahoo.FetchPair: no data for %s or %s", pair.TickerY, pair.TickerX)
	}

	points := Align(y, x)
	slog.Info("pair aligned",
		"y", pair.TickerY,
		"x", pair.TickerX,
		"rows", len(points),
		"dropped", max(len(y), len(x))-len(points),
	)

	points, err = domain.NewPriceSeries(points)
	if err != nil {
		return nil, fmt.Errorf("yahoo.FetchPair: %w", err)
	}
	return points, nil
}
