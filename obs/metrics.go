package obs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kmauer/krakenlimit/ratelimit"
)

// Metrics exposes the limiter's counters to Prometheus. It implements
// ratelimit.Observer; attach it with ratelimit.WithObserver.
type Metrics struct {
	ChecksTotal    *prometheus.CounterVec
	ThrottledTotal *prometheus.CounterVec
	RejectedTotal  *prometheus.CounterVec
	DecayTicks     prometheus.Counter
	GeneralCounter prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krakenlimit_checks_total",
				Help: "Admission checks performed, by limit category",
			},
			[]string{"category"},
		),
		ThrottledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krakenlimit_throttled_total",
				Help: "Checks that crossed a limit and sat out the cooldown",
			},
			[]string{"category"},
		),
		RejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krakenlimit_rejected_total",
				Help: "Order admissions rejected outright",
			},
			[]string{"category"},
		),
		DecayTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krakenlimit_decay_ticks_total",
			Help: "Scheduler ticks applied to the decaying counters",
		}),
		GeneralCounter: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "krakenlimit_general_counter",
			Help: "Current value of the decaying general API counter",
		}),
	}

	reg.MustRegister(m.ChecksTotal, m.ThrottledTotal, m.RejectedTotal, m.DecayTicks, m.GeneralCounter)
	return m
}

func (m *Metrics) Check(c ratelimit.Category) {
	m.ChecksTotal.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) Throttled(c ratelimit.Category) {
	m.ThrottledTotal.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) Rejected(c ratelimit.Category) {
	m.RejectedTotal.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) GeneralLevel(v float64) {
	m.GeneralCounter.Set(v)
}

func (m *Metrics) DecayTick() {
	m.DecayTicks.Inc()
}
