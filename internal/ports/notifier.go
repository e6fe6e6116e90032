package ports

import (
	"context"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// Reporter presenta el resultado de una corrida al usuario.
type Reporter interface {
	Report(ctx context.Context, run domain.RunResult) error
}
