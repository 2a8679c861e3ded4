package profiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval sets how often statistics are logged and the gauges refreshed.
//
// Parameters:
//   - interval: the update interval, values <= 0 update on every tick
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithUpdateInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = max(interval, 0)
	}
}

// WithRegistry registers the profiler gauges on reg instead of a private registry.
//
// Parameters:
//   - reg: the registry to use
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithRegistry(reg *prometheus.Registry) ProfilerBuilderOption {
	return func(p *Profiler) {
		if reg != nil {
			p.registry = reg
		}
	}
}
