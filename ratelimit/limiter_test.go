package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmauer/krakenlimit/config"
)

// eventRecorder captures notifications for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// newTestLimiter parks the decay loop on an hour-long interval so no
// tick interferes, and shrinks the cooldown so throttled checks return
// quickly.
func newTestLimiter(t *testing.T, tierName string, opts ...Option) (*Limiter, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	base := []Option{
		WithInterval(time.Hour),
		WithCooldown(5 * time.Millisecond),
		WithNotifier(rec),
	}
	l, err := New(tierName, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, rec
}

func TestNewUnknownTier(t *testing.T) {
	l, err := New("platinum")
	require.Error(t, err)
	assert.Nil(t, l)
}

func TestGeneralCheckBackpressure(t *testing.T) {
	l, rec := newTestLimiter(t, "starter", WithCooldown(30*time.Millisecond))
	ctx := context.Background()

	// starter allows 15 general calls before throttling
	for i := 0; i < 15; i++ {
		require.Equal(t, Proceed, l.GeneralCheck(ctx), "call %d", i+1)
	}
	assert.Empty(t, rec.all())

	start := time.Now()
	out := l.GeneralCheck(ctx)
	elapsed := time.Since(start)

	assert.Equal(t, Throttled, out)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond, "the 16th call must actually wait")

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, CategoryGeneral, events[0].Category)
	assert.Equal(t, SeverityWarning, events[0].Severity)
}

func TestGeneralCheckReleasedByClose(t *testing.T) {
	l, _ := newTestLimiter(t, "starter", WithCooldown(time.Hour))
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.Equal(t, Proceed, l.GeneralCheck(ctx))
	}

	out := make(chan Outcome, 1)
	go func() { out <- l.GeneralCheck(ctx) }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Close())

	select {
	case got := <-out:
		assert.Equal(t, Cancelled, got)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by Close")
	}
}

func TestGeneralCheckReleasedByContext(t *testing.T) {
	l, _ := newTestLimiter(t, "starter", WithCooldown(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 15; i++ {
		require.Equal(t, Proceed, l.GeneralCheck(ctx))
	}

	out := make(chan Outcome, 1)
	go func() { out <- l.GeneralCheck(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case got := <-out:
		assert.Equal(t, Cancelled, got)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by context cancellation")
	}
}

func TestWaitsAfterCloseReturnImmediately(t *testing.T) {
	l, _ := newTestLimiter(t, "starter", WithCooldown(time.Hour))
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.Equal(t, Proceed, l.GeneralCheck(ctx))
	}
	require.NoError(t, l.Close())

	start := time.Now()
	out := l.GeneralCheck(ctx)
	assert.Equal(t, Cancelled, out)
	assert.Less(t, time.Since(start), time.Second, "new waits must not block after Close")
}

func TestOrderAdmission(t *testing.T) {
	l, rec := newTestLimiter(t, "starter")
	const sym = "XBT/USD"

	// starter allows up to 59 open orders; the 60th admission is rejected
	for i := 0; i < 59; i++ {
		require.NoError(t, l.OrderAdmissionCheck(sym), "order %d", i+1)
	}

	err := l.OrderAdmissionCheck(sym)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, CategoryOrders, events[0].Category)
	assert.Equal(t, SeverityError, events[0].Severity)

	// closing one order frees one slot, the next one trips again
	l.OrderClosedDecay(sym)
	assert.Equal(t, 59, l.store.Orders(sym))
	err = l.OrderAdmissionCheck(sym)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
}

func TestOrderAdmissionTracksPerSymbol(t *testing.T) {
	l, _ := newTestLimiter(t, "starter")

	for i := 0; i < 5; i++ {
		require.NoError(t, l.OrderAdmissionCheck("XBT/USD"))
	}
	require.NoError(t, l.OrderAdmissionCheck("ETH/USD"))

	assert.Equal(t, 5, l.store.Orders("XBT/USD"))
	assert.Equal(t, 1, l.store.Orders("ETH/USD"))

	l.OrderClosedDecay("XBT/USD")
	assert.Equal(t, 4, l.store.Orders("XBT/USD"))

	// closing an order for an untracked symbol is harmless
	l.OrderClosedDecay("SOL/USD")
	assert.Equal(t, 0, l.store.Orders("SOL/USD"))
}

func TestOrderAdmissionConcurrent(t *testing.T) {
	l, _ := newTestLimiter(t, "starter")
	const sym = "XBT/USD"

	// 60 admissions total across 6 workers: exactly one must fail,
	// the one that pushes the count to the limit.
	const workers = 6
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := l.OrderAdmissionCheck(sym); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		assert.True(t, errors.Is(err, ErrRateLimitExceeded))
		failures++
	}
	assert.Equal(t, 1, failures, "exactly one admission may cross the limit")
	assert.Equal(t, 60, l.store.Orders(sym))
}

func TestCancelAdmission(t *testing.T) {
	l, rec := newTestLimiter(t, "starter")
	ctx := context.Background()
	const sym = "XBT/USD"

	// cancelling a fresh order costs 8; starter's cancel limit is 60,
	// so seven cancels (56) pass and the eighth (64) throttles.
	placed := time.Now()
	for i := 0; i < 7; i++ {
		require.Equal(t, Proceed, l.CancelAdmissionCheck(ctx, sym, placed), "cancel %d", i+1)
	}
	assert.Empty(t, rec.all())

	out := l.CancelAdmissionCheck(ctx, sym, placed)
	assert.Equal(t, Throttled, out)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, CategoryCancel, events[0].Category)
	assert.Equal(t, SeverityWarning, events[0].Severity)
}

func TestCancelAdmissionOldOrdersAreFree(t *testing.T) {
	l, _ := newTestLimiter(t, "starter")
	ctx := context.Background()

	placed := time.Now().Add(-time.Hour)
	for i := 0; i < 100; i++ {
		require.Equal(t, Proceed, l.CancelAdmissionCheck(ctx, "XBT/USD", placed))
	}
	assert.Equal(t, 0.0, l.store.CancelWeight("XBT/USD"))
}

func TestCancelAdmissionIsPerSymbol(t *testing.T) {
	l, _ := newTestLimiter(t, "starter")
	ctx := context.Background()
	placed := time.Now()

	for i := 0; i < 7; i++ {
		require.Equal(t, Proceed, l.CancelAdmissionCheck(ctx, "XBT/USD", placed))
	}
	// a different symbol has its own accumulator
	require.Equal(t, Proceed, l.CancelAdmissionCheck(ctx, "ETH/USD", placed))
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Root{}
	cfg.Limiter.Tier = "pro"
	cfg.Limiter.DecayIntervalMS = 3_600_000
	cfg.Limiter.CooldownMS = 5

	l, err := FromConfig(cfg)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, 225, l.Tier().Limits.Orders)
	assert.Equal(t, 1.0, l.Tier().Decay.General)
	assert.Equal(t, 5*time.Millisecond, l.cooldown)
}

func TestFromConfigUnknownTier(t *testing.T) {
	cfg := &config.Root{}
	cfg.Limiter.Tier = "vip"

	l, err := FromConfig(cfg)
	require.Error(t, err)
	assert.Nil(t, l)
}

func TestCloseIsIdempotent(t *testing.T) {
	l, _ := newTestLimiter(t, "intermediate")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "proceed", Proceed.String())
	assert.Equal(t, "throttled", Throttled.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
