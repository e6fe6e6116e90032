package yahoo

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestMapChartResult_FallsBackToClose(t *testing.T) {
	var r chartResult
	r.Timestamp = []int64{1704205800, 1704292200}
	r.Indicators.Quote = []struct {
		Close []*float64 `json:"close"`
	}{{Close: []*float64{ptr(10), nil}}}

	got := mapChartResult(r)
	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].Close)
}

func TestMapChartResult_PrefersAdjClose(t *testing.T) {
	var r chartResult
	r.Timestamp = []int64{1704205800}
	r.Indicators.Quote = []struct {
		Close []*float64 `json:"close"`
	}{{Close: []*float64{ptr(10)}}}
	r.Indicators.AdjClose = []struct {
		AdjClose []*float64 `json:"adjclose"`
	}{{AdjClose: []*float64{ptr(9.5)}}}

	got := mapChartResult(r)
	require.Len(t, got, 1)
	assert.Equal(t, 9.5, got[0].Close)
}

func TestMarketDate(t *testing.T) {
	// 2024-01-02 14:30 UTC en Nueva York sigue siendo el 2 de enero
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), marketDate(1704205800, -18000))
	// Tokio (+9h): 2024-01-02 00:00 UTC es el 2 de enero a las 09:00 local
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), marketDate(1704153600, 32400))
}

func TestAlign_SortsAndDedups(t *testing.T) {
	d := func(i int) time.Time { return time.Date(2024, 1, i, 0, 0, 0, 0, time.UTC) }
	y := []DailyClose{{d(3), 3}, {d(1), 1}, {d(2), 2}, {d(2), 2.5}}
	x := []DailyClose{{d(1), 10}, {d(2), 20}, {d(3), 30}}

	got := Align(y, x)
	require.Len(t, got, 3)
	assert.Equal(t, d(1), got[0].Time)
	assert.Equal(t, 2.0, got[1].PriceY)
	assert.Equal(t, 30.0, got[2].PriceX)
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Duration(-1), retryAfter("", now))
	assert.Equal(t, time.Duration(-1), retryAfter("soon", now))
	assert.Equal(t, time.Duration(-1), retryAfter("-3", now))
	assert.Equal(t, time.Duration(0), retryAfter("0", now))
	assert.Equal(t, 2*time.Second, retryAfter(" 2 ", now))
	assert.Equal(t, maxRetryAfter, retryAfter("3600", now))

	date := now.Add(4 * time.Second).Format(http.TimeFormat)
	assert.Equal(t, 4*time.Second, retryAfter(date, now))
	past := now.Add(-time.Minute).Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), retryAfter(past, now))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, backoff(0))
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
}
