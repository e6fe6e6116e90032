package yahoo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

// DailyClose es un cierre diario de un ticker, fechado a medianoche UTC del día de mercado.
type DailyClose struct {
	Date  time.Time
	Close float64
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// FetchDaily descarga los cierres diarios de ticker en [from, to).
// Prefiere el cierre ajustado; si no viene usa el cierre simple.
func (c *Client) FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]DailyClose, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.base, url.PathEscape(ticker), q.Encode())

	var resp chartResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("yahoo.FetchDaily %s: %w", ticker, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo.FetchDaily %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo.FetchDaily %s: empty result", ticker)
	}

	closes := mapChartResult(resp.Chart.Result[0])
	slog.Debug("fetched daily closes",
		"ticker", ticker,
		"points", len(closes),
	)
	return closes, nil
}

// mapChartResult convierte el DTO del chart a cierres diarios.
// Los precios null (días sin cotización) se descartan.
func mapChartResult(r chartResult) []DailyClose {
	var prices []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) > 0 {
		prices = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 {
		prices = r.Indicators.Quote[0].Close
	}

	out := make([]DailyClose, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(prices) || prices[i] == nil {
			continue
		}
		out = append(out, DailyClose{
			Date:  marketDate(ts, r.Meta.GMTOffset),
			Close: *prices[i],
		})
	}
	return out
}

// marketDate lleva un timestamp unix al día de mercado local, en UTC a medianoche.
func marketDate(ts, gmtOffset int64) time.Time {
	t := time.Unix(ts+gmtOffset, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
