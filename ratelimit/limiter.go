package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmauer/krakenlimit/config"
	"github.com/kmauer/krakenlimit/tier"
)

// ErrRateLimitExceeded is returned when an order admission is rejected.
// The caller must close or cancel open orders before retrying; the
// limiter never retries or blocks on this category.
var ErrRateLimitExceeded = errors.New("ratelimit: limit exceeded")

// Outcome reports how a check that may block resolved.
type Outcome int

const (
	// Proceed: admitted without waiting.
	Proceed Outcome = iota
	// Throttled: the limit was crossed and the call sat out the cooldown.
	Throttled
	// Cancelled: a cooldown wait was cut short by the context or Close.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case Throttled:
		return "throttled"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

const (
	DefaultInterval = time.Second
	DefaultCooldown = 20 * time.Second
)

// Limiter enforces the exchange's three rate-limit classes for one
// trading session: a decaying general API counter, open orders per
// instrument, and decaying cancellation weight per instrument.
//
// General and cancel overruns apply backpressure: the offending call
// blocks for a cooldown and then proceeds. Order overruns are hard
// failures, because open-order counts only drop by explicit action.
//
// All checks are safe for concurrent use; the decay loop runs in the
// background from construction until Close.
type Limiter struct {
	tier     tier.Tier
	store    *Store
	decay    *decayLoop
	interval time.Duration
	cooldown time.Duration

	notifier Notifier
	obs      Observer
	log      zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

type Option func(*Limiter)

// WithInterval overrides the decay tick interval. Meant for accelerated
// tests; production keeps the default one tick per second.
func WithInterval(d time.Duration) Option {
	return func(l *Limiter) { l.interval = d }
}

// WithCooldown overrides the blocking wait applied after a general or
// cancel overrun.
func WithCooldown(d time.Duration) Option {
	return func(l *Limiter) { l.cooldown = d }
}

// WithNotifier sets the host sink for warning/error events.
func WithNotifier(n Notifier) Option {
	return func(l *Limiter) { l.notifier = n }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// WithObserver attaches counter-level telemetry (see obs.Metrics).
func WithObserver(o Observer) Option {
	return func(l *Limiter) { l.obs = o }
}

// New resolves the verification tier and starts the decay loop. An
// unrecognized tier fails construction; limits are never defaulted.
// The caller owns the limiter for the session and must Close it at
// shutdown.
func New(tierName string, opts ...Option) (*Limiter, error) {
	t, err := tier.Resolve(tierName)
	if err != nil {
		return nil, err
	}
	l := &Limiter{
		tier:     t,
		store:    NewStore(),
		interval: DefaultInterval,
		cooldown: DefaultCooldown,
		notifier: noopNotifier{},
		obs:      nopObserver{},
		log:      zerolog.Nop(),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.decay = newDecayLoop(l.store, t.Decay, l.interval, l.log, l.obs)
	l.decay.Start()
	return l, nil
}

// FromConfig builds a limiter from a loaded config file. Extra options
// are applied after the config-derived ones so callers can still attach
// a notifier or override timing.
func FromConfig(cfg *config.Root, opts ...Option) (*Limiter, error) {
	base := []Option{
		WithInterval(cfg.Limiter.DecayInterval()),
		WithCooldown(cfg.Limiter.Cooldown()),
	}
	return New(cfg.Limiter.Tier, append(base, opts...)...)
}

// Tier returns the resolved tier tables for this session.
func (l *Limiter) Tier() tier.Tier { return l.tier }

// GeneralCheck admits one general API request. When the decaying counter
// overruns the tier limit the call emits a warning and blocks for the
// cooldown; it still proceeds afterwards. The wait ends early when ctx
// is done or the limiter is closed.
func (l *Limiter) GeneralCheck(ctx context.Context) Outcome {
	v := l.store.IncrementGeneral()
	l.obs.Check(CategoryGeneral)
	l.obs.GeneralLevel(v)
	if v <= l.tier.Limits.General {
		return Proceed
	}
	l.warn(CategoryGeneral, fmt.Sprintf(
		"general API counter at %.2f exceeds the %s tier limit of %.0f, easing off for %s",
		v, l.tier.Name, l.tier.Limits.General, l.cooldown))
	l.obs.Throttled(CategoryGeneral)
	return l.wait(ctx)
}

// OrderAdmissionCheck counts a new order against the symbol's open-order
// allowance. On overrun it fails with ErrRateLimitExceeded instead of
// blocking: waiting would never help, open orders only drop when the
// caller closes some.
func (l *Limiter) OrderAdmissionCheck(symbol string) error {
	n := l.store.IncrementOrders(symbol)
	l.obs.Check(CategoryOrders)
	if n < l.tier.Limits.Orders {
		return nil
	}
	msg := fmt.Sprintf(
		"open order limit reached for %s (%d of %d), close or cancel orders before placing more",
		symbol, n, l.tier.Limits.Orders)
	l.fail(CategoryOrders, msg)
	l.obs.Rejected(CategoryOrders)
	return fmt.Errorf("%w: %s", ErrRateLimitExceeded, msg)
}

// OrderClosedDecay releases one open-order slot for the symbol. Call it
// whenever an order terminates: filled, cancelled, expired or rejected.
func (l *Limiter) OrderClosedDecay(symbol string) {
	l.store.DecrementOrders(symbol)
}

// CancelAdmissionCheck charges a cancellation against the symbol's
// penalty accumulator. Cancelling young orders costs more (see
// cancelWeight). On overrun the call emits a warning and blocks for the
// cooldown, same as GeneralCheck.
func (l *Limiter) CancelAdmissionCheck(ctx context.Context, symbol string, placedAt time.Time) Outcome {
	w := cancelWeight(time.Since(placedAt))
	v := l.store.AddCancelWeight(symbol, w)
	l.obs.Check(CategoryCancel)
	if v < l.tier.Limits.Cancel {
		return Proceed
	}
	l.warn(CategoryCancel, fmt.Sprintf(
		"cancellation weight for %s at %.2f exceeds the %s tier limit of %.0f, easing off for %s",
		symbol, v, l.tier.Name, l.tier.Limits.Cancel, l.cooldown))
	l.obs.Throttled(CategoryCancel)
	return l.wait(ctx)
}

// wait sits out the cooldown with no locks held, so it never stalls
// other checks or the decay loop. Once the limiter is closed or the
// context is done, waits return Cancelled immediately.
func (l *Limiter) wait(ctx context.Context) Outcome {
	select {
	case <-l.closed:
		return Cancelled
	case <-ctx.Done():
		return Cancelled
	default:
	}
	t := time.NewTimer(l.cooldown)
	defer t.Stop()
	select {
	case <-l.closed:
		return Cancelled
	case <-ctx.Done():
		return Cancelled
	case <-t.C:
		return Throttled
	}
}

func (l *Limiter) warn(cat Category, msg string) {
	l.log.Warn().Str("category", string(cat)).Msg(msg)
	l.notifier.Notify(Event{Category: cat, Severity: SeverityWarning, Message: msg})
}

func (l *Limiter) fail(cat Category, msg string) {
	l.log.Error().Str("category", string(cat)).Msg(msg)
	l.notifier.Notify(Event{Category: cat, Severity: SeverityError, Message: msg})
}

// Close tears the session down: the decay loop stops and every blocked
// cooldown wait returns Cancelled. Calling Close again is a no-op.
func (l *Limiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.decay.Stop()
	})
	return nil
}
