package main

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/kalarb/internal/adapters/notify"
	"github.com/alejandrodnm/kalarb/internal/ports"
)

// runHistory imprime las últimas corridas guardadas.
func runHistory(ctx context.Context, store ports.RunStore, console *notify.Console, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	console.PrintHistory(runs)
	return nil
}
