package desim

import (
	"context"
	"time"
)

// pace blocks for d, or until ctx is cancelled, whichever comes first. It is
// the runner's only time-based suspension point (see Concurrency model):
// step handlers themselves never sleep.
func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
