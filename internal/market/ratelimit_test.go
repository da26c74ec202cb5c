package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateGate_WaitsRemainingInterval(t *testing.T) {
	clock := &fakeClock{t: fixedTime}
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock.Advance(d)
		return nil
	}
	g := NewRateGate(time.Second, clock.Now, sleep)

	require.NoError(t, g.Wait(context.Background()))
	assert.Empty(t, slept, "first request does not wait")

	clock.Advance(300 * time.Millisecond)
	require.NoError(t, g.Wait(context.Background()))
	assert.Equal(t, []time.Duration{700 * time.Millisecond}, slept)

	clock.Advance(2 * time.Second)
	require.NoError(t, g.Wait(context.Background()))
	assert.Len(t, slept, 1, "no wait once the interval has passed")
}

func TestRateGate_Cancelled(t *testing.T) {
	g := NewRateGate(time.Hour, nil, nil)
	require.NoError(t, g.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateGate_ConcurrentCallersAreSpaced(t *testing.T) {
	const interval = 20 * time.Millisecond
	g := NewRateGate(interval, nil, nil)

	var (
		mu     sync.Mutex
		starts []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, g.Wait(context.Background()))
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, starts, 4)
	first, last := starts[0], starts[0]
	for _, s := range starts {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 3*interval-5*time.Millisecond)
}
