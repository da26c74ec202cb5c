package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raine/resale-appraiser/internal/common"
)

// DefaultMinInterval is the minimum spacing between marketplace requests.
const DefaultMinInterval = time.Second

// RateGate enforces a minimum interval between requests across all callers.
// The mutex is held while waiting, so concurrent callers queue up and each
// one starts at least interval after the previous.
type RateGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    common.Sleeper
}

// NewRateGate creates a gate. Nil now/sleep use the real clock.
func NewRateGate(interval time.Duration, now func() time.Time, sleep common.Sleeper) *RateGate {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = common.Sleep
	}
	return &RateGate{interval: interval, now: now, sleep: sleep}
}

// Wait blocks until the interval since the previous request has elapsed,
// then records the current time as the latest request.
func (g *RateGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() {
		if wait := g.interval - g.now().Sub(g.last); wait > 0 {
			if err := g.sleep(ctx, wait); err != nil {
				return fmt.Errorf("rate gate: %w", err)
			}
		}
	}
	g.last = g.now()
	return nil
}
