package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, clock Clock, sink AlertSink) *Registry {
	t.Helper()
	return NewRegistry(RegistryConfig{FailureThreshold: 3, Cooldown: 30 * time.Minute}, clock, sink, nil)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	sink := &fakeSink{}
	reg := newTestRegistry(t, clock, sink)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Acquire("example.org"))
		reg.RecordFailure(ctx, "example.org")
	}

	err := reg.Acquire("example.org")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCircuitOpen)

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "example.org", openErr.Domain)
	require.Equal(t, clock.Now().Add(30*time.Minute), openErr.OpenUntil)
}

func TestBreakerAlertsOnceOnOpen(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	sink := &fakeSink{}
	reg := newTestRegistry(t, clock, sink)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		reg.RecordFailure(ctx, "example.org")
	}

	require.Equal(t, 1, sink.count(), "only the closed-to-open transition should alert")
	require.Equal(t, AlertError, sink.levels[0])
	require.Contains(t, sink.messages[0], "example.org")
}

func TestBreakerHalfOpenAdmitsExactlyOne(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	reg := newTestRegistry(t, clock, &fakeSink{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reg.RecordFailure(ctx, "example.org")
	}
	clock.Advance(31 * time.Minute)

	const goroutines = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.Acquire("example.org") == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, admitted, "half-open must admit exactly one trial")
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	reg := newTestRegistry(t, clock, &fakeSink{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reg.RecordFailure(ctx, "example.org")
	}
	clock.Advance(31 * time.Minute)

	require.NoError(t, reg.Acquire("example.org"))
	reg.RecordSuccess("example.org", 100*time.Millisecond)

	snap := reg.Snapshot()["example.org"]
	require.False(t, snap.CircuitOpen)
	require.False(t, snap.HalfOpen)
	require.Zero(t, snap.FailureCount)
	require.NoError(t, reg.Acquire("example.org"))
}

func TestBreakerHalfOpenFailureExtendsCooldown(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	sink := &fakeSink{}
	reg := newTestRegistry(t, clock, sink)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reg.RecordFailure(ctx, "example.org")
	}
	clock.Advance(31 * time.Minute)

	require.NoError(t, reg.Acquire("example.org"))
	reg.RecordFailure(ctx, "example.org")

	// Still blocked for another full cooldown.
	require.ErrorIs(t, reg.Acquire("example.org"), ErrCircuitOpen)
	clock.Advance(29 * time.Minute)
	require.ErrorIs(t, reg.Acquire("example.org"), ErrCircuitOpen)
	clock.Advance(2 * time.Minute)
	require.NoError(t, reg.Acquire("example.org"))

	require.Equal(t, 1, sink.count(), "the re-open from half-open must not alert again")
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	reg := newTestRegistry(t, clock, &fakeSink{})
	ctx := context.Background()

	reg.RecordFailure(ctx, "example.org")
	reg.RecordFailure(ctx, "example.org")
	reg.RecordSuccess("example.org", time.Second)
	reg.RecordFailure(ctx, "example.org")
	reg.RecordFailure(ctx, "example.org")

	require.NoError(t, reg.Acquire("example.org"), "non-consecutive failures must not trip the breaker")
}

func TestBreakerLatencyRollingAverage(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	reg := newTestRegistry(t, clock, &fakeSink{})

	reg.RecordSuccess("example.org", 2*time.Second)
	reg.RecordSuccess("example.org", 4*time.Second)

	snap := reg.Snapshot()["example.org"]
	require.InDelta(t, 3.0, snap.AvgLatency, 1e-9)
	require.Equal(t, 2, snap.SuccessCount)
}

func TestBreakerDoRecordsOutcome(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	reg := newTestRegistry(t, clock, &fakeSink{})
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := reg.Do(ctx, "example.org", func(context.Context) (time.Duration, error) {
		return 0, sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, reg.Snapshot()["example.org"].FailureCount)

	require.NoError(t, reg.Do(ctx, "example.org", func(context.Context) (time.Duration, error) {
		return time.Second, nil
	}))
	snap := reg.Snapshot()["example.org"]
	require.Zero(t, snap.FailureCount)
	require.Equal(t, 1, snap.SuccessCount)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	reg := newTestRegistry(t, clock, &fakeSink{})

	reg.RecordSuccess("example.org", time.Second)
	snap := reg.Snapshot()["example.org"]
	require.NotNil(t, snap.LastSuccess)
	*snap.LastSuccess = snap.LastSuccess.Add(time.Hour)

	again := reg.Snapshot()["example.org"]
	require.NotEqual(t, *snap.LastSuccess, *again.LastSuccess, "mutating a snapshot must not touch the registry")
}
