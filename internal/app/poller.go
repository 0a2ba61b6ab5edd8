package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/olhovivo/internal/logging"
	"github.com/five82/olhovivo/internal/sptrans"
	"github.com/five82/olhovivo/internal/state"
)

const defaultPollInterval = 15 * time.Second

// StartPoller launches a background goroutine that refreshes the vehicle
// positions of the tracked line at a fixed cadence. It returns immediately
// and stops when ctx is cancelled. A failed poll is not retried; the next
// tick tries again.
func StartPoller(ctx context.Context, store *state.Store, fetcher sptrans.Fetcher, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			refresh(ctx, store, fetcher)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func refresh(ctx context.Context, store *state.Store, fetcher sptrans.Fetcher) {
	line, ok := store.Tracked()
	if !ok {
		return
	}
	vehicles, err := fetcher.VehiclePositions(ctx, line.Code)
	if ctx.Err() != nil {
		return
	}
	if !store.Update(line.Code, vehicles, err) {
		return
	}
	if err != nil {
		logging.LogError(logging.FromContext(ctx), "vehicle poll failed", err,
			slog.Int("line", line.Code),
			slog.String("kind", sptrans.KindOf(err).String()))
	}
}
