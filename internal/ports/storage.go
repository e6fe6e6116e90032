package ports

import (
	"context"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// RunStore persiste las corridas del pipeline y los barridos de parámetros.
type RunStore interface {
	// SaveRun persiste la corrida completa: parámetros, resumen y un registro por paso.
	SaveRun(ctx context.Context, run domain.RunResult) error

	// GetRun devuelve una corrida con todos sus pasos.
	GetRun(ctx context.Context, id string) (domain.RunResult, error)

	// ListRuns devuelve las últimas corridas (sin pasos), más recientes primero.
	ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error)

	// SaveSweep persiste los resultados de un barrido bajo un mismo ID.
	SaveSweep(ctx context.Context, sweepID string, pair domain.Pair, results []domain.SweepResult) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
