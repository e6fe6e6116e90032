package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateInnovation indica que la varianza de innovación S cayó bajo epsilon.
	ErrDegenerateInnovation = errors.New("innovation variance at or below epsilon")

	// ErrNonPositiveVariance se devuelve al normalizar una innovación con S <= 0.
	ErrNonPositiveVariance = errors.New("innovation variance must be > 0")

	// ErrInsufficientData se devuelve cuando no hay registros suficientes para estadísticas.
	ErrInsufficientData = errors.New("at least 2 records required")

	// ErrMisaligned es el error base de MisalignmentError, útil con errors.Is.
	ErrMisaligned = errors.New("misaligned input")
)

// MisalignmentError identifica el primer índice donde dos secuencias dejan de
// estar alineadas (longitud, timestamps o precios inválidos).
type MisalignmentError struct {
	Index  int
	Reason string
}

func (e *MisalignmentError) Error() string {
	return fmt.Sprintf("misaligned input at index %d: %s", e.Index, e.Reason)
}

func (e *MisalignmentError) Unwrap() error { return ErrMisaligned }
