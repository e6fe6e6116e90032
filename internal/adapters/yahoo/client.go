package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBase = "https://query1.finance.yahoo.com"

	// Yahoo no documenta límites; 2 req/s con ráfaga de 4 evita los 429 en la práctica.
	chartRatePerSec = 2
	chartBurst      = 4

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
	maxRetryAfter = 10 * time.Second

	// sin un User-Agent de navegador el endpoint responde 429 de inmediato
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Client es el HTTP client del chart API de Yahoo con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient crea un Client. Si base está vacío usa el host de producción.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(chartRatePerSec, chartBurst),
	}
}

// get hace un GET con rate limiting y retries. 429, 5xx y errores de red se
// reintentan; el resto de 4xx y los errores de decode cortan de inmediato.
func (c *Client) get(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		wait, err := c.fetch(ctx, url, out)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}

		if wait < 0 {
			wait = backoff(attempt)
		}
		slog.Debug("retrying Yahoo request", "attempt", attempt+1, "wait", wait, "err", err)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("giving up after %d retries: %w", maxRetries, lastErr)
}

// permanentError marca un fallo que no tiene sentido reintentar.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

// fetch hace un único intento. Devuelve la espera pedida por el servidor
// (-1 si no pidió ninguna) y el error del intento.
func (c *Client) fetch(ctx context.Context, url string, out any) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &permanentError{err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, &permanentError{ctx.Err()}
		}
		return -1, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfter(resp.Header.Get("Retry-After"), time.Now())
		slog.Warn("rate limited by Yahoo", "retry_after", wait)
		return wait, errors.New("rate limited (429)")
	case resp.StatusCode >= 500:
		return -1, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &permanentError{fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, &permanentError{fmt.Errorf("decode response: %w", err)}
	}
	return 0, nil
}

// retryAfter interpreta Retry-After en segundos o como fecha HTTP, acotado a
// maxRetryAfter. Devuelve -1 si falta o no se puede leer.
func retryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return -1
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return -1
		}
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = max(t.Sub(now), 0)
	} else {
		return -1
	}
	return min(d, maxRetryAfter)
}

// backoff devuelve la espera exponencial del intento: 500ms, 1s, 2s...
func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
