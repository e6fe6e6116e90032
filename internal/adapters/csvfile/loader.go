// Package csvfile lee series de precios desde CSV y exporta corridas a CSV.
//
// Formato de entrada: date,y,x. La cabecera es opcional; las fechas pueden
// venir como 2006-01-02 o RFC3339.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

const dateLayout = "2006-01-02"

// Load lee path y devuelve la serie validada.
func Load(path string) ([]domain.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvfile.Load: %w", err)
	}
	defer f.Close()

	points, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("csvfile.Load %s: %w", path, err)
	}
	return points, nil
}

// Read parsea filas date,y,x desde r.
func Read(r io.Reader) ([]domain.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var points []domain.PricePoint
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}

		t, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: y: %w", line, err)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: x: %w", line, err)
		}
		points = append(points, domain.PricePoint{Time: t, PriceY: y, PriceX: x})
	}

	if len(points) == 0 {
		return nil, domain.ErrInsufficientData
	}
	return domain.NewPriceSeries(points)
}

func isHeader(rec []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	return err != nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want %s or RFC3339", s, dateLayout)
	}
	return t.UTC(), nil
}

// Source es un ports.PriceProvider respaldado por un CSV local.
// El par se ignora: el archivo ya contiene las dos columnas.
type Source struct {
	path string
}

// NewSource crea un Source sobre path.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// FetchPair carga el archivo y filtra [from, to). Un from o to cero no filtra.
func (s *Source) FetchPair(ctx context.Context, _ domain.Pair, from, to time.Time) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	points, err := Load(s.path)
	if err != nil {
		return nil, err
	}

	out := points[:0:0]
	for _, p := range points {
		if !from.IsZero() && p.Time.Before(from) {
			continue
		}
		if !to.IsZero() && !p.Time.Before(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
