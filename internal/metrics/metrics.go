// internal/metrics/metrics.go
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tamzrod/zentec-bridge/internal/coordinator"
	"github.com/tamzrod/zentec-bridge/internal/status"
)

const namespace = "zentec"

// Source is the read side of the coordinator.
type Source interface {
	State() coordinator.State
	Subscribe() (<-chan coordinator.State, func())
}

// Metrics holds the Prometheus view of one controller.
// It implements coordinator.Observer.
type Metrics struct {
	reg *prometheus.Registry

	value *prometheus.GaugeVec
	known *prometheus.GaugeVec

	health         prometheus.Gauge
	hasData        prometheus.Gauge
	secondsInError prometheus.Gauge
	lastSuccess    prometheus.Gauge

	polls         *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	fieldFailures prometheus.Counter
	writes        *prometheus.CounterVec
}

// New registers every collector on a private registry.
// deviceID becomes the constant "device" label.
func New(deviceID string) *Metrics {
	labels := prometheus.Labels{"device": deviceID}

	m := &Metrics{
		reg: prometheus.NewRegistry(),

		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "value",
			Help:        "Last known value of a controller field.",
			ConstLabels: labels,
		}, []string{"field"}),
		known: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "value_known",
			Help:        "1 when the field has ever been read, 0 while unknown.",
			ConstLabels: labels,
		}, []string{"field"}),

		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "health",
			Help:        "Device health code: 0 unknown, 1 ok, 2 error, 3 stale.",
			ConstLabels: labels,
		}),
		hasData: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "has_data",
			Help:        "1 once the first poll succeeded.",
			ConstLabels: labels,
		}),
		secondsInError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "seconds_in_error",
			Help:        "Seconds since polling started failing (saturates at 65535).",
			ConstLabels: labels,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help:        "Unix time of the last successful poll.",
			ConstLabels: labels,
		}),

		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "polls_total",
			Help:        "Poll cycles by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "poll_duration_seconds",
			Help:        "Duration of one poll cycle.",
			ConstLabels: labels,
			Buckets:     []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		fieldFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "field_read_failures_total",
			Help:        "Fields left absent by a failed register read.",
			ConstLabels: labels,
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "writes_total",
			Help:        "Register writes by operation and result.",
			ConstLabels: labels,
		}, []string{"op", "result"}),
	}

	m.reg.MustRegister(
		m.value, m.known,
		m.health, m.hasData, m.secondsInError, m.lastSuccess,
		m.polls, m.pollDuration, m.fieldFailures, m.writes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// pre-create the result series so rates start at zero
	for _, r := range []string{"ok", "error"} {
		m.polls.WithLabelValues(r)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ---- coordinator.Observer ----

func (m *Metrics) ObservePoll(took time.Duration, failedFields int, err error) {
	m.pollDuration.Observe(took.Seconds())
	m.fieldFailures.Add(float64(failedFields))
	m.polls.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveWrite(op string, err error) {
	m.writes.WithLabelValues(op, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ---- state ----

// Update mirrors one coordinator state.
func (m *Metrics) Update(st coordinator.State, now time.Time) {
	for _, v := range status.Encode(st.Snapshot) {
		if !v.OK {
			m.known.WithLabelValues(v.Name).Set(0)
			continue
		}
		m.known.WithLabelValues(v.Name).Set(1)
		m.value.WithLabelValues(v.Name).Set(v.Value)
	}

	m.health.Set(float64(st.Health))
	m.hasData.Set(boolFloat(st.HasData))
	m.secondsInError.Set(float64(st.SecondsInError(now)))
	if !st.LastSuccess.IsZero() {
		m.lastSuccess.Set(float64(st.LastSuccess.Unix()))
	}
}

// Run mirrors every published state, and refreshes seconds_in_error
// once a second while polling is failing.
func (m *Metrics) Run(ctx context.Context, src Source) {
	states, unsubscribe := src.Subscribe()
	defer unsubscribe()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			m.Update(st, time.Now())
		case now := <-tick.C:
			m.secondsInError.Set(float64(src.State().SecondsInError(now)))
		}
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
