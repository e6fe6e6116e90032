package domain

import (
	"fmt"
	"math"
	"time"
)

// PricePoint es una observación alineada de los dos activos del par.
// PriceY es el activo que se compra (dependiente), PriceX el de cobertura.
type PricePoint struct {
	Time   time.Time
	PriceY float64
	PriceX float64
}

// Ratio devuelve el ratio implícito Y/X de la observación.
func (p PricePoint) Ratio() float64 {
	if p.PriceX == 0 {
		return 0
	}
	return p.PriceY / p.PriceX
}

// NewPriceSeries valida que la secuencia sea apta para el filtro:
// precios finitos y estrictamente positivos, timestamps estrictamente crecientes.
// Nunca reordena ni trunca: el primer índice inválido se reporta tal cual.
func NewPriceSeries(points []PricePoint) ([]PricePoint, error) {
	for i, p := range points {
		if !validPrice(p.PriceY) {
			return nil, &MisalignmentError{Index: i, Reason: fmt.Sprintf("priceY must be finite and > 0, got %v", p.PriceY)}
		}
		if !validPrice(p.PriceX) {
			return nil, &MisalignmentError{Index: i, Reason: fmt.Sprintf("priceX must be finite and > 0, got %v", p.PriceX)}
		}
		if i > 0 && !p.Time.After(points[i-1].Time) {
			return nil, &MisalignmentError{
				Index:  i,
				Reason: fmt.Sprintf("timestamp %s not after %s", p.Time.Format(time.RFC3339), points[i-1].Time.Format(time.RFC3339)),
			}
		}
	}
	return points, nil
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Zip combina tres secuencias paralelas (tiempos, Y, X) en PricePoints validados.
// Las longitudes distintas se rechazan indicando el primer índice sin pareja.
func Zip(times []time.Time, ys, xs []float64) ([]PricePoint, error) {
	if len(ys) != len(xs) || len(times) != len(ys) {
		n := min(len(times), len(ys), len(xs))
		return nil, &MisalignmentError{
			Index:  n,
			Reason: fmt.Sprintf("length mismatch: times=%d y=%d x=%d", len(times), len(ys), len(xs)),
		}
	}
	points := make([]PricePoint, len(ys))
	for i := range ys {
		points[i] = PricePoint{Time: times[i], PriceY: ys[i], PriceX: xs[i]}
	}
	return NewPriceSeries(points)
}
