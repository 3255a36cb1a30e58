package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "retail"
	subsystem = "recalc"

	ordersName   = namespace + "_" + subsystem + "_orders_total"
	durationName = namespace + "_" + subsystem + "_order_duration_seconds"
)

// Outcome labels one order of a recompute run.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

var outcomes = []Outcome{OutcomeUpdated, OutcomeUnchanged, OutcomeFailed}

// Batch collects the metrics of one recompute run on its own registry, so
// concurrent runs and tests never share series. Safe for concurrent use.
type Batch struct {
	registry *prometheus.Registry
	orders   *prometheus.CounterVec
	duration prometheus.Histogram
	start    time.Time
}

func NewBatch() *Batch {
	b := &Batch{
		registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_total",
				Help:      "Orders processed by a recompute run, by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_duration_seconds",
				Help:      "Time spent recomputing a single order.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		),
		start: time.Now(),
	}
	b.registry.MustRegister(b.orders, b.duration)

	// Zero-valued series so every outcome shows up in Gather.
	for _, o := range outcomes {
		b.orders.WithLabelValues(string(o))
	}
	return b
}

// Record counts one order under outcome and observes how long it took.
func (b *Batch) Record(outcome Outcome, took time.Duration) {
	b.orders.WithLabelValues(string(outcome)).Inc()
	b.duration.Observe(took.Seconds())
}

// Registry exposes the run's collectors, e.g. for a push gateway or a
// text-format dump.
func (b *Batch) Registry() *prometheus.Registry {
	return b.registry
}

type BatchReport struct {
	Updated   uint64
	Unchanged uint64
	Failed    uint64
	// Busy is the summed per-order recompute time; with parallel workers it
	// can exceed Elapsed.
	Busy    time.Duration
	Elapsed time.Duration
}

// Report reads the current values back from the registry.
func (b *Batch) Report() BatchReport {
	r := BatchReport{Elapsed: time.Since(b.start)}

	families, err := b.registry.Gather()
	if err != nil {
		return r
	}

	for _, mf := range families {
		switch mf.GetName() {
		case ordersName:
			for _, m := range mf.GetMetric() {
				n := uint64(m.GetCounter().GetValue())
				for _, lp := range m.GetLabel() {
					if lp.GetName() != "outcome" {
						continue
					}
					switch Outcome(lp.GetValue()) {
					case OutcomeUpdated:
						r.Updated = n
					case OutcomeUnchanged:
						r.Unchanged = n
					case OutcomeFailed:
						r.Failed = n
					}
				}
			}
		case durationName:
			for _, m := range mf.GetMetric() {
				r.Busy += time.Duration(m.GetHistogram().GetSampleSum() * float64(time.Second))
			}
		}
	}
	return r
}
