package chrono

import (
	"context"
	"sync"
	"time"
)

// Sleeper is the interface anything that paces itself (retry backoff, courtesy delays)
// should wait through, so that waits can be cancelled and faked in tests.
type Sleeper interface {
	// Sleep blocks for `d` or until `ctx` is done, whichever comes first. It returns
	// ctx.Err() when it was interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

// StandardSleeper waits on a real timer.
type StandardSleeper struct{}

func (StandardSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordingSleeper returns immediately and remembers every requested duration.
type RecordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Slept returns a copy of every recorded duration in call order.
func (r *RecordingSleeper) Slept() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.slept...)
}

// Total is the sum of every recorded sleep.
func (r *RecordingSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Slept() {
		total += d
	}
	return total
}
