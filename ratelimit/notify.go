package ratelimit

// Category identifies which limit class an event refers to.
type Category string

const (
	CategoryGeneral Category = "general"
	CategoryOrders  Category = "orders"
	CategoryCancel  Category = "cancel"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is delivered to the host whenever a limit is crossed: a warning
// for the backpressure categories (general, cancel), an error when an
// order admission is rejected outright.
type Event struct {
	Category Category
	Severity Severity
	Message  string
}

// Notifier is the host-supplied sink for limit events. Events are
// delivered inline from the check path, before any cooldown wait, so
// implementations should hand off quickly rather than block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type noopNotifier struct{}

func (noopNotifier) Notify(Event) {}

// Observer receives counter-level telemetry from the limiter and the
// decay loop. obs.Metrics satisfies it.
type Observer interface {
	Check(Category)
	Throttled(Category)
	Rejected(Category)
	GeneralLevel(float64)
	DecayTick()
}

type nopObserver struct{}

func (nopObserver) Check(Category)       {}
func (nopObserver) Throttled(Category)   {}
func (nopObserver) Rejected(Category)    {}
func (nopObserver) GeneralLevel(float64) {}
func (nopObserver) DecayTick()           {}
