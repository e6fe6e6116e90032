package domain

import "fmt"

// Position es el estado de la máquina de señales.
type Position int

const (
	Flat  Position = 0
	Long  Position = 1  // largo 1 Y, corto β X
	Short Position = -1 // corto 1 Y, largo β X
)

// Multiplier devuelve el multiplicador con signo usado en el PnL.
func (p Position) Multiplier() float64 {
	return float64(p)
}

// String implementa fmt.Stringer.
func (p Position) String() string {
	switch p {
	case Flat:
		return "FLAT"
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

// ParsePosition es la inversa de String; se usa al leer de storage.
func ParsePosition(s string) (Position, error) {
	switch s {
	case "FLAT":
		return Flat, nil
	case "LONG":
		return Long, nil
	case "SHORT":
		return Short, nil
	}
	return Flat, fmt.Errorf("domain.ParsePosition: unknown position %q", s)
}

// Thresholds son los umbrales de entrada (θ) y salida (τ) sobre el z-score.
type Thresholds struct {
	Entry float64
	Exit  float64
}

// Transition es una arista de la máquina: si Cond(z, th) se cumple, se pasa a To.
type Transition struct {
	To   Position
	Cond func(z float64, th Thresholds) bool
}

// Transitions es la tabla de transiciones indexada por estado.
// Las aristas se evalúan en orden; si ninguna aplica el estado se mantiene.
// No existe arista Long→Short ni Short→Long: siempre se pasa por Flat.
var Transitions = map[Position][]Transition{
	Flat: {
		{To: Long, Cond: func(z float64, th Thresholds) bool { return z < -th.Entry }},
		{To: Short, Cond: func(z float64, th Thresholds) bool { return z > th.Entry }},
	},
	Long: {
		{To: Flat, Cond: func(z float64, th Thresholds) bool { return z >= th.Exit }},
	},
	Short: {
		{To: Flat, Cond: func(z float64, th Thresholds) bool { return z <= th.Exit }},
	},
}

// Next aplica la tabla de transiciones al estado previo.
func Next(prev Position, z float64, th Thresholds) Position {
	for _, tr := range Transitions[prev] {
		if tr.Cond(z, th) {
			return tr.To
		}
	}
	return prev
}
