package trail

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the work the trail pipeline records. A nil *Metrics is valid and records nothing.
type Metrics struct {
	frames     prometheus.Counter
	samples    prometheus.Counter
	dispatches *prometheus.CounterVec
	draws      *prometheus.CounterVec
	state      *prometheus.GaugeVec
}

// NewMetrics registers the trail metrics on reg.
//
// Parameters:
//   - reg: the registry to register on
//
// Returns:
//   - *Metrics: the metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "oxy",
			Subsystem: "trail",
			Name:      "frames_total",
			Help:      "Frames processed by the trail pipeline.",
		}),
		samples: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "oxy",
			Subsystem: "trail",
			Name:      "staged_samples_total",
			Help:      "Input samples uploaded for append, before the kernel drops samples under the minimum node distance or at the origin.",
		}),
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oxy",
			Subsystem: "trail",
			Name:      "dispatches_total",
			Help:      "Compute dispatches recorded, by kernel.",
		}, []string{"kernel"}),
		draws: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oxy",
			Subsystem: "trail",
			Name:      "draws_total",
			Help:      "Indirect draws recorded, by material.",
		}, []string{"material"}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "oxy",
			Subsystem: "trail",
			Name:      "state",
			Help:      "Current orchestrator state, by trail set.",
		}, []string{"set"}),
	}
}

func (m *Metrics) frame() {
	if m != nil {
		m.frames.Inc()
	}
}

func (m *Metrics) staged(n int) {
	if m != nil {
		m.samples.Add(float64(n))
	}
}

func (m *Metrics) dispatched(k Kernel) {
	if m != nil {
		m.dispatches.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) drew(material string) {
	if m != nil {
		m.draws.WithLabelValues(material).Inc()
	}
}

func (m *Metrics) setState(set string, s State) {
	if m != nil {
		m.state.WithLabelValues(set).Set(float64(s))
	}
}

type instrumentedBackend struct {
	Backend
	metrics *Metrics
}

// InstrumentBackend wraps a backend so every successful dispatch and draw is counted.
//
// Parameters:
//   - backend: the backend to wrap
//   - metrics: the metrics to record into; nil returns backend unchanged
//
// Returns:
//   - Backend: the instrumented backend
func InstrumentBackend(backend Backend, metrics *Metrics) Backend {
	if metrics == nil {
		return backend
	}
	return &instrumentedBackend{Backend: backend, metrics: metrics}
}

func (b *instrumentedBackend) Dispatch(kernel Kernel, bindings []Binding, x, y, z uint32) error {
	if err := b.Backend.Dispatch(kernel, bindings, x, y, z); err != nil {
		return err
	}
	b.metrics.dispatched(kernel)
	return nil
}

func (b *instrumentedBackend) DispatchIndirect(kernel Kernel, bindings []Binding, args Buffer, offset uint64) error {
	if err := b.Backend.DispatchIndirect(kernel, bindings, args, offset); err != nil {
		return err
	}
	b.metrics.dispatched(kernel)
	return nil
}

func (b *instrumentedBackend) DrawIndirect(call DrawCall) error {
	if err := b.Backend.DrawIndirect(call); err != nil {
		return err
	}
	b.metrics.drew(call.Material)
	return nil
}
